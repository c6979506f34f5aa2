package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/advisory"
	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type stubUserRepo struct {
	users  map[int64]domain.User
	nextID int64
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) ListByIDs(_ context.Context, ids []int64) (map[int64]domain.User, error) {
	result := make(map[int64]domain.User, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			result[id] = user
		}
	}
	return result, nil
}

type stubTicketRepo struct {
	tickets map[int64]domain.Ticket
	order   []int64
	nextID  int64
}

func (r *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *stubTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *stubTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *stubTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	var matched []domain.Ticket
	for i := len(r.order) - 1; i >= 0; i-- {
		ticket := r.tickets[r.order[i]]
		if filter.ViewerID != nil {
			visible := ticket.CreatedByID == *filter.ViewerID ||
				(ticket.AssignedToID != nil && *ticket.AssignedToID == *filter.ViewerID)
			if !visible {
				continue
			}
		}
		matched = append(matched, ticket)
	}
	total := len(matched)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *stubTicketRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

type stubResponseRepo struct {
	responses []domain.TicketResponse
	nextID    int64
}

func (r *stubResponseRepo) Create(_ context.Context, response *domain.TicketResponse) error {
	r.nextID++
	response.ID = r.nextID
	response.CreatedAt = time.Now()
	r.responses = append(r.responses, *response)
	return nil
}

func (r *stubResponseRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketResponse, error) {
	var result []domain.TicketResponse
	for _, response := range r.responses {
		if response.TicketID == ticketID {
			result = append(result, response)
		}
	}
	return result, nil
}

type stubAdvisor struct {
	suggestion advisory.Suggestion
	draft      advisory.ReplyDraft
}

func (a *stubAdvisor) Categorize(_ context.Context, _, _ string) advisory.Suggestion {
	return a.suggestion
}

func (a *stubAdvisor) DraftReply(_ context.Context, _ *domain.Ticket) advisory.ReplyDraft {
	return a.draft
}

type apiFixture struct {
	app     *fiber.App
	users   *stubUserRepo
	tickets *stubTicketRepo
	advisor *stubAdvisor
	tokens  *auth.TokenManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		users:   &stubUserRepo{users: make(map[int64]domain.User)},
		tickets: &stubTicketRepo{tickets: make(map[int64]domain.Ticket)},
		advisor: &stubAdvisor{},
	}
	responses := &stubResponseRepo{}
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, f.users)
	f.tokens = authService.TokenManager()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   f.tickets,
		ResponseRepo: responses,
		UserRepo:     f.users,
		Advisor:      f.advisor,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	responseService := service.NewResponseService(service.ResponseDependencies{
		TicketRepo:   f.tickets,
		ResponseRepo: responses,
		Advisor:      f.advisor,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	f.app = fiber.New()
	httptransport.RegisterMiddlewares(f.app, logger, observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(f.app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Responses:      handlers.NewResponsesHandler(responseService),
		AuthMiddleware: auth.NewAuthMiddleware(f.tokens, f.users),
	})
	return f
}

func (f *apiFixture) addUser(t *testing.T, username string, staff bool) (domain.User, string) {
	t.Helper()
	f.users.nextID++
	user := domain.User{ID: f.users.nextID, Username: username, IsStaff: staff}
	f.users.users[user.ID] = user

	token, _, err := f.tokens.GenerateToken(user.ID, user.IsStaff)
	require.NoError(t, err)
	return user, token
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *apiFixture) requestRaw(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func errorDetails(t *testing.T, payload map[string]any) (string, map[string]any) {
	t.Helper()
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", payload)
	code, _ := errObj["code"].(string)
	details, _ := errObj["details"].(map[string]any)
	return code, details
}
