package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/storage"
)

// OrderService manages fulfillment requests. An order shares its code with
// a ticket but the two are written independently.
type OrderService struct {
	orders     repository.OrderRepository
	tickets    repository.TicketRepository
	store      storage.Store
	clock      clock.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	attempts   int
}

// SubmitRequestInput is a customer's request for a crafted letter.
type SubmitRequestInput struct {
	CustomerName string
	ContactLink  string
	Category     string
	LetterType   string
	Video        *Upload
}

// OrderView is an order together with the state of its ticket.
type OrderView struct {
	Order        domain.Order
	TicketExists bool
	TicketBound  bool
}

// NewOrderService constructs the service.
func NewOrderService(deps TicketDependencies) *OrderService {
	deps = deps.withDefaults()
	return &OrderService{
		orders:     deps.OrderRepo,
		tickets:    deps.TicketRepo,
		store:      deps.Store,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		attempts:   deps.Issue.MaxCodeAttempts,
	}
}

// SubmitRequest registers a ticket for the request (bound to the video when
// one is supplied) and then the Pending order. If the order insert fails the
// ticket and its asset are removed again.
func (s *OrderService) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*OrderView, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.ContactLink = strings.TrimSpace(in.ContactLink)
	if in.CustomerName == "" || in.ContactLink == "" {
		return nil, fmt.Errorf("%w: customer_name and contact_link are required", domain.ErrInvalidInput)
	}
	now := s.clock.Now()

	var content *domain.Content
	if in.Video != nil {
		if err := checkMedia(*in.Video, "video/"); err != nil {
			return nil, err
		}
		if s.store == nil {
			return nil, domain.NewTicketError("submit request", "", domain.ErrUploadFailed, fmt.Errorf("no asset store configured"))
		}
		obj, err := s.store.Put(ctx, storage.PutInput{
			Prefix:      "videos/requests",
			FileName:    in.Video.FileName,
			ContentType: in.Video.ContentType,
			Body:        in.Video.Body,
		})
		if err != nil {
			s.metrics.UploadFailed(string(domain.ContentKindVideo))
			return nil, domain.NewTicketError("submit request", "", domain.ErrUploadFailed, err)
		}
		content = &domain.Content{Kind: domain.ContentKindVideo, Video: &domain.AssetReference{
			StorageKey: obj.Key,
			URL:        obj.URL,
			FileName:   in.Video.FileName,
			MimeType:   in.Video.ContentType,
			SizeBytes:  obj.Size,
			Checksum:   obj.Checksum,
		}}
	}

	ticket, err := insertWithGeneratedCode(ctx, s.tickets, s.attempts, requestCodes(now), func(code string) *domain.Ticket {
		return &domain.Ticket{Code: code, Content: content, Visible: true, CreatedAt: now}
	})
	if err != nil {
		purgeAssets(ctx, s.store, s.logger, content)
		return nil, err
	}

	order := &domain.Order{
		ID:           ulid.Make().String(),
		Code:         ticket.Code,
		CustomerName: in.CustomerName,
		ContactLink:  in.ContactLink,
		Category:     strings.TrimSpace(in.Category),
		LetterType:   strings.TrimSpace(in.LetterType),
		Status:       domain.OrderStatusPending,
		CreatedAt:    now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if _, delErr := s.tickets.Delete(ctx, ticket.Code); delErr != nil {
			s.logger.Error("orphaned request ticket", zap.String("code", ticket.Code), zap.Error(delErr))
		}
		purgeAssets(ctx, s.store, s.logger, content)
		return nil, err
	}

	s.metrics.TicketsIssued("request", 1)
	if content != nil {
		s.metrics.ContentBound(string(content.Kind))
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventOrderSubmitted, order.Code, actorFrom(ctx), now,
		events.OrderSubmittedPayload{Category: order.Category, LetterType: order.LetterType}))
	return &OrderView{Order: *order, TicketExists: true, TicketBound: ticket.IsBound()}, nil
}

// GetStatus returns the order and whether its ticket exists and is bound.
func (s *OrderService) GetStatus(ctx context.Context, code string) (*OrderView, error) {
	code = strings.TrimSpace(code)
	order, err := s.orders.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	view := &OrderView{Order: *order}
	ticket, err := s.tickets.GetByCode(ctx, code)
	switch {
	case err == nil:
		view.TicketExists = true
		view.TicketBound = ticket.IsBound()
	case !domain.IsNotFound(err):
		return nil, err
	}
	return view, nil
}

// UpdateStatus moves an order forward. Backward or repeated moves fail
// with ErrInvalidOrderTx.
func (s *OrderService) UpdateStatus(ctx context.Context, code string, next domain.OrderStatus) (*domain.Order, error) {
	code = strings.TrimSpace(code)
	current, err := s.orders.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(next) {
		return nil, domain.NewTicketError("update order", code, domain.ErrInvalidOrderTx,
			fmt.Errorf("%s -> %s", current.Status, next))
	}
	now := s.clock.Now()
	updated, err := s.orders.UpdateStatus(ctx, code, current.Status, next, now)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventOrderStatusChanged, code, actorFrom(ctx), now,
		events.OrderStatusChangedPayload{OldStatus: current.Status, NewStatus: next}))
	return updated, nil
}

// List returns orders for the operator dashboard.
func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, filter)
}
