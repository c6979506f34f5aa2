package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/advisory"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ResponseService coordinates the manual and AI reply workflows. Both
// persist the same entity shape; they differ in authorization and in where
// the text comes from.
type ResponseService struct {
	tickets    repository.TicketRepository
	responses  repository.ResponseRepository
	advisor    advisory.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ResponseDependencies bundles collaborators for the response service.
type ResponseDependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	Advisor      advisory.Client
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewResponseService constructs the service.
func NewResponseService(deps ResponseDependencies) *ResponseService {
	return &ResponseService{
		tickets:    deps.TicketRepo,
		responses:  deps.ResponseRepo,
		advisor:    deps.Advisor,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// AddManualReply appends a human reply to a ticket.
func (s *ResponseService) AddManualReply(ctx context.Context, requester *domain.User, ticketID int64, text string) (*ResponseView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, apperrors.NewFieldError("response_text", "回覆內容不得為空。")
	}

	response := &domain.TicketResponse{
		TicketID:      ticket.ID,
		ResponseText:  trimmed,
		IsAIGenerated: false,
		CreatedByID:   requester.ID,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventResponseAdded,
		TicketID: ticket.ID,
		ActorID:  requester.ID,
		Payload: events.ResponseAddedPayload{
			ResponseID:    response.ID,
			IsAIGenerated: false,
		},
	})

	return &ResponseView{Response: *response, Author: *requester}, nil
}

// GenerateAIReply drafts a reply via the advisory client and persists it
// attributed to the requesting human. The ticket is resolved under the
// AI-reply scope: out-of-scope tickets read as not found, never forbidden.
// A degraded or empty draft fails the request instead of persisting filler.
func (s *ResponseService) GenerateAIReply(ctx context.Context, requester *domain.User, ticketID int64) (*ResponseView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanRequestAIReply(requester, ticket) {
		return nil, apperrors.NewNotFound("ticket", nil)
	}

	draft := s.advisor.DraftReply(ctx, ticket)
	if draft.Degraded || strings.TrimSpace(draft.Text) == "" || draft.Text == advisory.FallbackReply {
		s.logger.Warn("ai reply unavailable",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("reason", draft.Reason))
		return nil, apperrors.NewAIUnavailable("AI助手暫時無法提供回覆建議，請稍後再試。")
	}

	response := &domain.TicketResponse{
		TicketID:      ticket.ID,
		ResponseText:  draft.Text,
		IsAIGenerated: true,
		CreatedByID:   requester.ID,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventResponseAdded,
		TicketID: ticket.ID,
		ActorID:  requester.ID,
		Payload: events.ResponseAddedPayload{
			ResponseID:    response.ID,
			IsAIGenerated: true,
		},
	})

	return &ResponseView{Response: *response, Author: *requester}, nil
}

func (s *ResponseService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	return ticket, nil
}

func (s *ResponseService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
