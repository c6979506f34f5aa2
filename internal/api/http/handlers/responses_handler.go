package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ResponsesHandler manages manual and AI reply endpoints.
type ResponsesHandler struct {
	responses *service.ResponseService
}

// NewResponsesHandler constructs handler.
func NewResponsesHandler(responseService *service.ResponseService) *ResponsesHandler {
	return &ResponsesHandler{responses: responseService}
}

// Reply POST /api/tickets/:id/reply.
func (h *ResponsesHandler) Reply(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.responses.AddManualReply(c.Context(), requester, ticketID, req.ResponseText)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(responseBody(view))
}

// AIResponse POST /api/tickets/:id/ai-response.
func (h *ResponsesHandler) AIResponse(c *fiber.Ctx) error {
	requester, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}

	view, err := h.responses.GenerateAIReply(c.Context(), requester, ticketID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(responseBody(view))
}
