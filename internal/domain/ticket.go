package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// DefaultCategory is stored when neither the requester nor the advisory
// client produced a category.
const DefaultCategory = "一般諮詢"

// ParsePriority normalizes input to a closed enum value.
func ParsePriority(raw string) (TicketPriority, bool) {
	switch TicketPriority(strings.ToLower(strings.TrimSpace(raw))) {
	case TicketPriorityLow:
		return TicketPriorityLow, true
	case TicketPriorityMedium:
		return TicketPriorityMedium, true
	case TicketPriorityHigh:
		return TicketPriorityHigh, true
	case TicketPriorityUrgent:
		return TicketPriorityUrgent, true
	}
	return "", false
}

// ParseStatus normalizes input to a closed enum value.
func ParseStatus(raw string) (TicketStatus, bool) {
	switch TicketStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case TicketStatusOpen:
		return TicketStatusOpen, true
	case TicketStatusInProgress:
		return TicketStatusInProgress, true
	case TicketStatusResolved:
		return TicketStatusResolved, true
	case TicketStatusClosed:
		return TicketStatusClosed, true
	}
	return "", false
}

// Ticket is the aggregate for support requests. CreatedByID is set once at
// creation and never mutated; the AISuggested fields are written only by the
// advisory categorization step.
type Ticket struct {
	ID                  int64
	Title               string
	Description         string
	Category            string
	Priority            TicketPriority
	Status              TicketStatus
	CreatedByID         int64
	AssignedToID        *int64
	AISuggestedCategory *string
	AISuggestedPriority *TicketPriority
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
