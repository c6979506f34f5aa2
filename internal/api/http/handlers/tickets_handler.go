package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket CRUD endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// Create POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.tickets.Create(c.Context(), requester, service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Priority:     req.Priority,
		Status:       req.Status,
		AssignedToID: req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ticketBody(view))
}

// List GET /api/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	views, total, err := h.tickets.List(c.Context(), requester, parseListQuery(c))
	if err != nil {
		return err
	}
	results := make([]dto.TicketSummary, 0, len(views))
	for i := range views {
		results = append(results, ticketSummary(&views[i]))
	}
	return c.JSON(dto.TicketListResponse{Count: total, Results: results})
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.Get(c.Context(), requester, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(ticketBody(view))
}

// Update PATCH /api/tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	}
	// A pointer field cannot tell "assigned_to": null apart from the key
	// being absent, so presence is checked against the raw body.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err == nil {
		_, input.AssignedToSet = raw["assigned_to"]
	}

	view, err := h.tickets.Update(c.Context(), requester, ticketID, input)
	if err != nil {
		return err
	}
	return c.JSON(ticketBody(view))
}

// Delete DELETE /api/tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.Context(), requester, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("ticket", nil)
	}
	return id, nil
}

func parseListQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if status, ok := domain.ParseStatus(part); ok {
				input.Statuses = append(input.Statuses, status)
			}
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			if priority, ok := domain.ParsePriority(part); ok {
				input.Priorities = append(input.Priorities, priority)
			}
		}
	}
	if search := c.Query("search"); search != "" {
		input.SearchTerm = &search
	}
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parsePositiveInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func userSummary(user *domain.User) dto.UserSummary {
	return dto.UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
}

func ticketSummary(view *service.TicketView) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:                  view.Ticket.ID,
		Title:               view.Ticket.Title,
		Category:            view.Ticket.Category,
		Priority:            view.Ticket.Priority,
		Status:              view.Ticket.Status,
		CreatedBy:           userSummary(&view.CreatedBy),
		AISuggestedCategory: view.Ticket.AISuggestedCategory,
		AISuggestedPriority: view.Ticket.AISuggestedPriority,
		CreatedAt:           view.Ticket.CreatedAt,
		UpdatedAt:           view.Ticket.UpdatedAt,
	}
	if view.AssignedTo != nil {
		assignee := userSummary(view.AssignedTo)
		summary.AssignedTo = &assignee
	}
	return summary
}

func ticketBody(view *service.TicketView) dto.TicketBody {
	body := dto.TicketBody{
		ID:                  view.Ticket.ID,
		Title:               view.Ticket.Title,
		Description:         view.Ticket.Description,
		Category:            view.Ticket.Category,
		Priority:            view.Ticket.Priority,
		Status:              view.Ticket.Status,
		CreatedBy:           userSummary(&view.CreatedBy),
		AISuggestedCategory: view.Ticket.AISuggestedCategory,
		AISuggestedPriority: view.Ticket.AISuggestedPriority,
		CreatedAt:           view.Ticket.CreatedAt,
		UpdatedAt:           view.Ticket.UpdatedAt,
		Responses:           make([]dto.TicketResponseBody, 0, len(view.Responses)),
	}
	if view.AssignedTo != nil {
		assignee := userSummary(view.AssignedTo)
		body.AssignedTo = &assignee
	}
	for i := range view.Responses {
		body.Responses = append(body.Responses, responseBody(&view.Responses[i]))
	}
	return body
}

func responseBody(view *service.ResponseView) dto.TicketResponseBody {
	return dto.TicketResponseBody{
		ID:            view.Response.ID,
		ResponseText:  view.Response.ResponseText,
		IsAIGenerated: view.Response.IsAIGenerated,
		CreatedBy:     userSummary(&view.Author),
		CreatedAt:     view.Response.CreatedAt,
	}
}
