package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/advisory"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]domain.User)}
}

func (r *fakeUserRepo) add(user domain.User) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	} else if user.ID > r.nextID {
		r.nextID = user.ID
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []int64) (map[int64]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[int64]domain.User, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			result[id] = user
		}
	}
	return result, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[int64]domain.Ticket
	order   []int64
	nextID  int64
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[int64]domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]domain.Ticket, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		ticket := r.tickets[r.order[i]]
		if filter.ViewerID != nil {
			visible := ticket.CreatedByID == *filter.ViewerID ||
				(ticket.AssignedToID != nil && *ticket.AssignedToID == *filter.ViewerID)
			if !visible {
				continue
			}
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		matched = append(matched, ticket)
	}

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, p := range list {
		if p == priority {
			return true
		}
	}
	return false
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses []domain.TicketResponse
	nextID    int64
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{}
}

func (r *fakeResponseRepo) Create(_ context.Context, response *domain.TicketResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	response.ID = r.nextID
	response.CreatedAt = time.Now()
	r.responses = append(r.responses, *response)
	return nil
}

func (r *fakeResponseRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketResponse
	for _, response := range r.responses {
		if response.TicketID == ticketID {
			result = append(result, response)
		}
	}
	return result, nil
}

type fakeAdvisor struct {
	mu              sync.Mutex
	suggestion      advisory.Suggestion
	draft           advisory.ReplyDraft
	categorizeCalls int
	draftCalls      int
}

func (a *fakeAdvisor) Categorize(_ context.Context, _, _ string) advisory.Suggestion {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.categorizeCalls++
	return a.suggestion
}

func (a *fakeAdvisor) DraftReply(_ context.Context, _ *domain.Ticket) advisory.ReplyDraft {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.draftCalls++
	return a.draft
}

type serviceFixture struct {
	users     *fakeUserRepo
	tickets   *fakeTicketRepo
	responses *fakeResponseRepo
	advisor   *fakeAdvisor

	ticketSvc   *service.TicketService
	responseSvc *service.ResponseService
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		users:     newFakeUserRepo(),
		tickets:   newFakeTicketRepo(),
		responses: newFakeResponseRepo(),
		advisor:   &fakeAdvisor{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	f.ticketSvc = service.NewTicketService(service.TicketDependencies{
		TicketRepo:   f.tickets,
		ResponseRepo: f.responses,
		UserRepo:     f.users,
		Advisor:      f.advisor,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	f.responseSvc = service.NewResponseService(service.ResponseDependencies{
		TicketRepo:   f.tickets,
		ResponseRepo: f.responses,
		Advisor:      f.advisor,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	return f
}

func asDomainError(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr
}
