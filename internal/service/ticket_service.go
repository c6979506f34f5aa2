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

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	responses  repository.ResponseRepository
	users      repository.UserRepository
	advisor    advisory.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	UserRepo     repository.UserRepository
	Advisor      advisory.Client
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		responses:  deps.ResponseRepo,
		users:      deps.UserRepo,
		advisor:    deps.Advisor,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes the creation payload. Priority and Status are
// raw strings so that absence and invalid values are distinguishable.
type TicketCreateInput struct {
	Title        string
	Description  string
	Category     string
	Priority     string
	Status       string
	AssignedToID *int64
}

// TicketUpdateInput describes a partial update. Nil pointers leave fields
// untouched; AssignedToSet distinguishes "clear assignee" from "not sent".
type TicketUpdateInput struct {
	Title         *string
	Description   *string
	Category      *string
	Priority      *string
	Status        *string
	AssignedTo    *int64
	AssignedToSet bool
}

// TicketListInput describes listing filters inside the viewer scope.
type TicketListInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// ResponseView pairs a response with its author.
type ResponseView struct {
	Response domain.TicketResponse
	Author   domain.User
}

// TicketView pairs a ticket with its related users and thread.
type TicketView struct {
	Ticket     domain.Ticket
	CreatedBy  domain.User
	AssignedTo *domain.User
	Responses  []ResponseView
}

// Create validates input, consults the advisory client when category or
// priority is missing, and persists the ticket with the requester as its
// immutable creator.
func (s *TicketService) Create(ctx context.Context, requester *domain.User, input TicketCreateInput) (*TicketView, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, apperrors.NewFieldError("title", "title is required")
	}
	if description == "" {
		return nil, apperrors.NewFieldError("description", "description is required")
	}

	var priority domain.TicketPriority
	havePriority := false
	if strings.TrimSpace(input.Priority) != "" {
		parsed, ok := domain.ParsePriority(input.Priority)
		if !ok {
			return nil, apperrors.NewFieldError("priority", "priority must be one of: low, medium, high, urgent")
		}
		priority = parsed
		havePriority = true
	}

	status := domain.TicketStatusOpen
	if strings.TrimSpace(input.Status) != "" {
		parsed, ok := domain.ParseStatus(input.Status)
		if !ok {
			return nil, apperrors.NewFieldError("status", "status must be one of: open, in_progress, resolved, closed")
		}
		status = parsed
	}

	var assignedTo *domain.User
	if input.AssignedToID != nil {
		user, err := s.users.GetByID(ctx, *input.AssignedToID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewFieldError("assigned_to", "assigned user does not exist")
			}
			return nil, err
		}
		assignedTo = user
	}

	category := strings.TrimSpace(input.Category)

	// The remote model is consulted only when the requester left category or
	// priority blank; a fully specified ticket never costs an AI call.
	var suggestion *advisory.Suggestion
	if category == "" || !havePriority {
		result := s.advisor.Categorize(ctx, title, description)
		suggestion = &result
		if result.Degraded {
			s.logger.Warn("advisory categorization degraded",
				zap.String("reason", result.Reason))
		}
	}

	if category == "" {
		if suggestion != nil && suggestion.Category != "" {
			category = suggestion.Category
		} else {
			category = domain.DefaultCategory
		}
	}
	if !havePriority {
		if suggestion != nil && suggestion.Priority != "" {
			priority = suggestion.Priority
		} else {
			priority = domain.TicketPriorityMedium
		}
	}

	ticket := &domain.Ticket{
		Title:        title,
		Description:  description,
		Category:     category,
		Priority:     priority,
		Status:       status,
		CreatedByID:  requester.ID,
		AssignedToID: input.AssignedToID,
	}
	if suggestion != nil {
		suggestedCategory := suggestion.Category
		suggestedPriority := suggestion.Priority
		ticket.AISuggestedCategory = &suggestedCategory
		ticket.AISuggestedPriority = &suggestedPriority
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  requester.ID,
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			Category:   ticket.Category,
			Priority:   ticket.Priority,
			AIAssisted: suggestion != nil,
		},
	})

	return &TicketView{
		Ticket:     *ticket,
		CreatedBy:  *requester,
		AssignedTo: assignedTo,
		Responses:  []ResponseView{},
	}, nil
}

// List returns tickets visible to the requester along with the total count.
func (s *TicketService) List(ctx context.Context, requester *domain.User, input TicketListInput) ([]TicketView, int, error) {
	filter := repository.TicketFilter{
		ViewerID:   auth.ListScope(requester),
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		SearchTerm: input.SearchTerm,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	userIDs := make([]int64, 0, len(tickets)*2)
	for _, ticket := range tickets {
		userIDs = append(userIDs, ticket.CreatedByID)
		if ticket.AssignedToID != nil {
			userIDs = append(userIDs, *ticket.AssignedToID)
		}
	}
	usersByID, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, 0, err
	}

	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		view := TicketView{Ticket: ticket, CreatedBy: usersByID[ticket.CreatedByID]}
		if ticket.AssignedToID != nil {
			if assignee, ok := usersByID[*ticket.AssignedToID]; ok {
				view.AssignedTo = &assignee
			}
		}
		views = append(views, view)
	}
	return views, total, nil
}

// Get fetches a single ticket with its thread, enforcing the read scope.
func (s *TicketService) Get(ctx context.Context, requester *domain.User, ticketID int64) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewTicket(requester, ticket) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}
	return s.buildView(ctx, ticket)
}

// Update applies a partial update after the ownership check. The creator and
// the advisory suggestion fields are never touched.
func (s *TicketService) Update(ctx context.Context, requester *domain.User, ticketID int64, input TicketUpdateInput) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanModifyTicket(requester, ticket) {
		return nil, apperrors.NewForbidden("not allowed to modify this ticket")
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewFieldError("title", "title cannot be empty")
		}
		ticket.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewFieldError("description", "description cannot be empty")
		}
		ticket.Description = description
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, apperrors.NewFieldError("category", "category cannot be empty")
		}
		ticket.Category = category
	}
	if input.Priority != nil {
		parsed, ok := domain.ParsePriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewFieldError("priority", "priority must be one of: low, medium, high, urgent")
		}
		ticket.Priority = parsed
	}
	if input.Status != nil {
		parsed, ok := domain.ParseStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewFieldError("status", "status must be one of: open, in_progress, resolved, closed")
		}
		ticket.Status = parsed
	}
	if input.AssignedToSet {
		if input.AssignedTo != nil {
			if _, err := s.users.GetByID(ctx, *input.AssignedTo); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperrors.NewFieldError("assigned_to", "assigned user does not exist")
				}
				return nil, err
			}
		}
		ticket.AssignedToID = input.AssignedTo
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  requester.ID,
		Payload: events.TicketUpdatedPayload{
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})

	return s.buildView(ctx, ticket)
}

// Delete removes a ticket; responses go with it via the cascade.
func (s *TicketService) Delete(ctx context.Context, requester *domain.User, ticketID int64) error {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !auth.CanModifyTicket(requester, ticket) {
		return apperrors.NewForbidden("not allowed to delete this ticket")
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		ActorID:  requester.ID,
	})
	return nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) buildView(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	view := &TicketView{Ticket: *ticket, Responses: []ResponseView{}}

	responses, err := s.responses.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	userIDs := []int64{ticket.CreatedByID}
	if ticket.AssignedToID != nil {
		userIDs = append(userIDs, *ticket.AssignedToID)
	}
	for _, response := range responses {
		userIDs = append(userIDs, response.CreatedByID)
	}
	usersByID, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	view.CreatedBy = usersByID[ticket.CreatedByID]
	if ticket.AssignedToID != nil {
		if assignee, ok := usersByID[*ticket.AssignedToID]; ok {
			view.AssignedTo = &assignee
		}
	}
	for _, response := range responses {
		view.Responses = append(view.Responses, ResponseView{
			Response: response,
			Author:   usersByID[response.CreatedByID],
		})
	}
	return view, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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
