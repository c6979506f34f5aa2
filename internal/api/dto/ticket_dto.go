package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload. Category, priority and status are optional;
// missing category/priority triggers the advisory categorization.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	AssignedTo  *int64 `json:"assigned_to"`
}

// UpdateTicketRequest payload for PATCH. Pointer fields distinguish absent
// from empty; assigned_to presence is detected separately so null clears it.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	AssignedTo  *int64  `json:"assigned_to"`
}

// CreateResponseRequest payload for manual replies.
type CreateResponseRequest struct {
	ResponseText string `json:"response_text"`
}

// TicketResponseBody serializes one thread entry.
type TicketResponseBody struct {
	ID            int64       `json:"id"`
	ResponseText  string      `json:"response_text"`
	IsAIGenerated bool        `json:"is_ai_generated"`
	CreatedBy     UserSummary `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TicketBody serializes a full ticket with nested users and thread.
type TicketBody struct {
	ID                  int64                  `json:"id"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	Category            string                 `json:"category"`
	Priority            domain.TicketPriority  `json:"priority"`
	Status              domain.TicketStatus    `json:"status"`
	CreatedBy           UserSummary            `json:"created_by"`
	AssignedTo          *UserSummary           `json:"assigned_to"`
	AISuggestedCategory *string                `json:"ai_suggested_category"`
	AISuggestedPriority *domain.TicketPriority `json:"ai_suggested_priority"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Responses           []TicketResponseBody   `json:"responses"`
}

// TicketSummary serializes a listing row (no thread).
type TicketSummary struct {
	ID                  int64                  `json:"id"`
	Title               string                 `json:"title"`
	Category            string                 `json:"category"`
	Priority            domain.TicketPriority  `json:"priority"`
	Status              domain.TicketStatus    `json:"status"`
	CreatedBy           UserSummary            `json:"created_by"`
	AssignedTo          *UserSummary           `json:"assigned_to"`
	AISuggestedCategory *string                `json:"ai_suggested_category"`
	AISuggestedPriority *domain.TicketPriority `json:"ai_suggested_priority"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// TicketListResponse is the paginated listing envelope.
type TicketListResponse struct {
	Count   int             `json:"count"`
	Results []TicketSummary `json:"results"`
}
