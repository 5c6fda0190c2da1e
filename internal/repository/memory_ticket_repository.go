package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paperplay/sticker-service/internal/domain"
)

// MemoryTicketRepository is the fallback store used when POSTGRES_DSN is
// not configured, and the store behind the service tests. A single mutex
// makes every write conditional and every bulk operation atomic.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

var _ TicketRepository = (*MemoryTicketRepository)(nil)

// NewMemoryTicketRepository constructs an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.Code]; exists {
		return domain.NewTicketError("create", ticket.Code, domain.ErrDuplicateCode, nil)
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.Code] = cloneTicket(ticket)
	return nil
}

func (r *MemoryTicketRepository) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(tickets))
	for _, ticket := range tickets {
		if _, exists := r.tickets[ticket.Code]; exists {
			return domain.NewTicketError("issue batch", ticket.Code, domain.ErrDuplicateCode, nil)
		}
		if _, dup := seen[ticket.Code]; dup {
			return domain.NewTicketError("issue batch", ticket.Code, domain.ErrDuplicateCode, nil)
		}
		seen[ticket.Code] = struct{}{}
	}
	for _, ticket := range tickets {
		ticket.UpdatedAt = ticket.CreatedAt
		r.tickets[ticket.Code] = cloneTicket(ticket)
	}
	return nil
}

func (r *MemoryTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[code]
	if !ok {
		return nil, domain.NewTicketError("get", code, domain.ErrNotFound, nil)
	}
	return cloneTicket(ticket), nil
}

func (r *MemoryTicketRepository) BindContent(ctx context.Context, code string, binding ContentBinding) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[code]
	if !ok {
		return nil, domain.NewTicketError("bind", code, domain.ErrNotFound, nil)
	}
	if ticket.IsBound() {
		return nil, domain.NewTicketError("bind", code, domain.ErrAlreadyBound, nil)
	}
	content := binding.Content
	ticket.Content = cloneContent(&content)
	ticket.UnlockAt = cloneTime(binding.UnlockAt)
	ticket.Visible = binding.Visible
	ticket.UpdatedAt = binding.At
	return cloneTicket(ticket), nil
}

func (r *MemoryTicketRepository) ClearContent(ctx context.Context, code string, at time.Time) (*domain.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[code]
	if !ok {
		return nil, domain.NewTicketError("clear", code, domain.ErrNotFound, nil)
	}
	previous := ticket.Content
	if previous != nil {
		ticket.UpdatedAt = at
	}
	ticket.Content = nil
	ticket.UnlockAt = nil
	ticket.Visible = true
	return previous, nil
}

func (r *MemoryTicketRepository) Delete(ctx context.Context, code string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[code]
	if !ok {
		return nil, nil
	}
	delete(r.tickets, code)
	return ticket, nil
}

func (r *MemoryTicketRepository) DeleteWhere(ctx context.Context, predicate domain.TicketPredicate) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := predicateClause(predicate); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []domain.Ticket
	for code, ticket := range r.tickets {
		if predicate.Matches(ticket) {
			removed = append(removed, *ticket)
			delete(r.tickets, code)
		}
	}
	return removed, nil
}

func (r *MemoryTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	predicate := filter.Predicate
	if predicate == "" {
		predicate = domain.PredicateAll
	}
	if _, err := predicateClause(predicate); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if !predicate.Matches(ticket) {
			continue
		}
		if filter.BatchID != nil && (ticket.BatchID == nil || *ticket.BatchID != *filter.BatchID) {
			continue
		}
		matched = append(matched, *cloneTicket(ticket))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Code < matched[j].Code
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryTicketRepository) ListUnlockedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !ticket.IsBound() || ticket.UnlockAt == nil {
			continue
		}
		if ticket.UnlockAt.After(from) && !ticket.UnlockAt.After(to) {
			result = append(result, *cloneTicket(ticket))
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].UnlockAt.Before(*result[j].UnlockAt) })
	return result, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.BatchID != nil {
		batch := *t.BatchID
		out.BatchID = &batch
	}
	out.UnlockAt = cloneTime(t.UnlockAt)
	out.Content = cloneContent(t.Content)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneContent(c *domain.Content) *domain.Content {
	if c == nil {
		return nil
	}
	out := *c
	if c.Video != nil {
		video := *c.Video
		out.Video = &video
	}
	if c.Letter != nil {
		letter := *c.Letter
		if c.Letter.Image != nil {
			image := *c.Letter.Image
			letter.Image = &image
		}
		out.Letter = &letter
	}
	return &out
}
