package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/config"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/storage"
)

// TicketService owns the ticket registry and bulk issuing.
type TicketService struct {
	tickets    repository.TicketRepository
	store      storage.Store
	clock      clock.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.IssueConfig
}

// TicketDependencies bundles collaborators shared by the ticket services.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	OrderRepo  repository.OrderRepository
	Store      storage.Store
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Issue      config.IssueConfig
}

func (d TicketDependencies) withDefaults() TicketDependencies {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Issue.MaxBatchSize <= 0 {
		d.Issue.MaxBatchSize = 500
	}
	if d.Issue.RandomCodeLength <= 0 {
		d.Issue.RandomCodeLength = 8
	}
	if d.Issue.MaxCodeAttempts <= 0 {
		d.Issue.MaxCodeAttempts = 5
	}
	return d
}

// Batch is the result of IssueBatch.
type Batch struct {
	ID      string
	Tickets []domain.Ticket
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	deps = deps.withDefaults()
	return &TicketService{
		tickets:    deps.TicketRepo,
		store:      deps.Store,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Issue,
	}
}

// CreateTicket issues a single unbound ticket. An empty code gets a random
// one; a supplied code that already exists fails with ErrDuplicateCode and
// must not be retried blindly.
func (s *TicketService) CreateTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	code = strings.TrimSpace(code)
	now := s.clock.Now()
	build := func(c string) *domain.Ticket {
		return &domain.Ticket{Code: c, Visible: true, CreatedAt: now}
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if code != "" {
		if err := validateCode(code); err != nil {
			return nil, err
		}
		ticket = build(code)
		err = s.tickets.Create(ctx, ticket)
	} else {
		ticket, err = insertWithGeneratedCode(ctx, s.tickets, s.cfg.MaxCodeAttempts, func(int) (string, error) {
			return randomCode(s.cfg.RandomCodeLength)
		}, build)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.TicketsIssued("single", 1)
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketIssued, ticket.Code, actorFrom(ctx), now,
		events.TicketIssuedPayload{Origin: "single"}))
	return ticket, nil
}

// IssueBatch creates count tickets named <batchId>-1..<batchId>-count in
// one transaction. Any conflict aborts the whole batch.
func (s *TicketService) IssueBatch(ctx context.Context, count int, prefix string) (*Batch, error) {
	if count < 1 || count > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidInput, s.cfg.MaxBatchSize)
	}
	now := s.clock.Now()
	batchID := strings.TrimSpace(prefix)
	if batchID == "" {
		batchID = defaultBatchID(now)
	}
	if err := validateCode(batchID); err != nil {
		return nil, err
	}

	tickets := make([]*domain.Ticket, 0, count)
	codes := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		id := batchID
		code := fmt.Sprintf("%s-%d", batchID, i)
		if err := validateCode(code); err != nil {
			return nil, err
		}
		tickets = append(tickets, &domain.Ticket{Code: code, BatchID: &id, Visible: true, CreatedAt: now})
		codes = append(codes, code)
	}
	if err := s.tickets.CreateBatch(ctx, tickets); err != nil {
		return nil, err
	}

	batch := &Batch{ID: batchID, Tickets: make([]domain.Ticket, 0, count)}
	for _, t := range tickets {
		batch.Tickets = append(batch.Tickets, *t)
	}
	s.metrics.TicketsIssued("batch", count)
	s.logger.Info("batch issued", zap.String("batch_id", batchID), zap.Int("count", count))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventBatchIssued, "", actorFrom(ctx), now,
		events.BatchIssuedPayload{BatchID: batchID, Codes: codes}))
	return batch, nil
}

// GetTicket returns the ticket or an ErrNotFound error.
func (s *TicketService) GetTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	return s.tickets.GetByCode(ctx, strings.TrimSpace(code))
}

// Exists reports whether a ticket with code is registered.
func (s *TicketService) Exists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetTicket(ctx, code)
	if domain.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// IsBound reports whether the ticket carries content. Missing tickets are
// reported as ErrNotFound.
func (s *TicketService) IsBound(ctx context.Context, code string) (bool, error) {
	ticket, err := s.GetTicket(ctx, code)
	if err != nil {
		return false, err
	}
	return ticket.IsBound(), nil
}

// ListTickets returns the operator inventory.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

// DeleteTicket removes the ticket and then its stored assets. Deleting a
// missing ticket succeeds.
func (s *TicketService) DeleteTicket(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	removed, err := s.tickets.Delete(ctx, code)
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}
	purgeAssets(ctx, s.store, s.logger, removed.Content)
	s.metrics.TicketsDeleted(1)
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketDeleted, code, actorFrom(ctx), s.clock.Now(), nil))
	return nil
}

// DeleteWhere removes every ticket matching predicate in a single statement
// and returns how many were removed. It is not isolated from a bind racing
// on the same rows: a ticket bound mid-sweep may or may not be removed by a
// DeleteWhere(PredicateUnbound).
func (s *TicketService) DeleteWhere(ctx context.Context, predicate domain.TicketPredicate) (int, error) {
	removed, err := s.tickets.DeleteWhere(ctx, predicate)
	if err != nil {
		return 0, err
	}
	for i := range removed {
		purgeAssets(ctx, s.store, s.logger, removed[i].Content)
	}
	s.metrics.TicketsDeleted(len(removed))
	s.logger.Info("tickets purged", zap.String("predicate", string(predicate)), zap.Int("count", len(removed)))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketsPurged, "", actorFrom(ctx), s.clock.Now(),
		events.TicketsPurgedPayload{Predicate: predicate, Count: len(removed)}))
	return len(removed), nil
}

// ShareLink is the public path-based link for code.
func (s *TicketService) ShareLink(code string) string {
	return ShareLink(s.cfg.PublicBaseURL, code)
}

// ShareLink joins base and code as <base>/<code>.
func ShareLink(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(code)
}

// ViewerStatus projects the ticket for a generic viewer at the current time.
func (s *TicketService) ViewerStatus(ctx context.Context, code string) (ViewerStatus, error) {
	ticket, err := s.GetTicket(ctx, code)
	if err != nil && !domain.IsNotFound(err) {
		return ViewerStatus{}, err
	}
	status := Project(ticket, s.clock.Now())
	if ticket == nil {
		status.Code = strings.TrimSpace(code)
	}
	s.metrics.ViewerStatus(string(status.State))
	return status, nil
}

// OperatorStatus projects the ticket for inventory management.
func (s *TicketService) OperatorStatus(ctx context.Context, code string) (OperatorStatus, error) {
	ticket, err := s.GetTicket(ctx, code)
	if err != nil {
		return OperatorStatus{}, err
	}
	return ProjectOperator(ticket, s.clock.Now()), nil
}

// Now exposes the service clock to callers that project lists.
func (s *TicketService) Now() time.Time { return s.clock.Now() }

func purgeAssets(ctx context.Context, store storage.Store, logger *zap.Logger, content *domain.Content) int {
	if store == nil || content == nil {
		return 0
	}
	purged := 0
	for _, ref := range content.Assets() {
		if err := store.Delete(ctx, ref.StorageKey); err != nil {
			logger.Warn("asset cleanup failed", zap.String("key", ref.StorageKey), zap.Error(err))
			continue
		}
		purged++
	}
	return purged
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.String("code", event.Code), zap.Error(err))
	}
}
