package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/persistence"
)

// CacheClient is the subset of Redis used by the ticket cache.
type CacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Version(ctx context.Context, key string) (int64, error)
	SetIfVersion(ctx context.Context, key string, value []byte, ttl time.Duration, versionKey string, version int64) (bool, error)
	Bump(ctx context.Context, ttl time.Duration, keys ...string) error
	Del(ctx context.Context, keys ...string) error
}

var _ CacheClient = (*persistence.Redis)(nil)

// cachedTicketRepository is a read-through cache in front of the ticket
// store. Only the stored record is cached; time-gate evaluation happens on
// every read in the projector. Writes go to the inner store first, then bump
// the code's version and drop the record. A reader only fills the cache if
// the version it saw before reading the store is still current, so a fill
// racing a write is discarded instead of outliving it.
type cachedTicketRepository struct {
	inner   TicketRepository
	cache   CacheClient
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCachedTicketRepository wraps inner with a Redis read-through cache.
func NewCachedTicketRepository(inner TicketRepository, cache CacheClient, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) TicketRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedTicketRepository{inner: inner, cache: cache, ttl: ttl, logger: logger, metrics: metrics}
}

// cachedTicket is the cache wire form; domain.Ticket has no JSON tags.
type cachedTicket struct {
	Code      string          `json:"code"`
	BatchID   *string         `json:"batch_id,omitempty"`
	Content   *domain.Content `json:"content,omitempty"`
	UnlockAt  *time.Time      `json:"unlock_at,omitempty"`
	Visible   bool            `json:"visible"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func ticketCacheKey(code string) string { return "ticket:" + code }

func ticketVersionKey(code string) string { return "ticket:ver:" + code }

func (d *cachedTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	key := ticketCacheKey(code)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var cached cachedTicket
		if json.Unmarshal([]byte(val), &cached) == nil {
			d.metrics.CacheRequest("ticket", "hit")
			return &domain.Ticket{
				Code:      cached.Code,
				BatchID:   cached.BatchID,
				Content:   cached.Content,
				UnlockAt:  cached.UnlockAt,
				Visible:   cached.Visible,
				CreatedAt: cached.CreatedAt,
				UpdatedAt: cached.UpdatedAt,
			}, nil
		}
	} else if !errors.Is(err, persistence.ErrCacheMiss) {
		d.logger.Warn("ticket cache read failed", zap.String("code", code), zap.Error(err))
	}

	d.metrics.CacheRequest("ticket", "miss")
	version, verErr := d.cache.Version(ctx, ticketVersionKey(code))
	if verErr != nil {
		d.logger.Warn("ticket cache version read failed", zap.String("code", code), zap.Error(verErr))
	}
	ticket, err := d.inner.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cachedTicket{
		Code:      ticket.Code,
		BatchID:   ticket.BatchID,
		Content:   ticket.Content,
		UnlockAt:  ticket.UnlockAt,
		Visible:   ticket.Visible,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	})
	if err == nil && verErr == nil {
		stored, err := d.cache.SetIfVersion(ctx, key, payload, d.ttl, ticketVersionKey(code), version)
		if err != nil {
			d.logger.Warn("ticket cache write failed", zap.String("code", code), zap.Error(err))
		} else if !stored {
			d.logger.Debug("ticket cache fill skipped after concurrent write", zap.String("code", code))
		}
	}
	return ticket, nil
}

func (d *cachedTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := d.inner.Create(ctx, ticket); err != nil {
		return err
	}
	d.invalidate(ctx, ticket.Code)
	return nil
}

func (d *cachedTicketRepository) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	if err := d.inner.CreateBatch(ctx, tickets); err != nil {
		return err
	}
	codes := make([]string, 0, len(tickets))
	for _, t := range tickets {
		codes = append(codes, t.Code)
	}
	d.invalidate(ctx, codes...)
	return nil
}

func (d *cachedTicketRepository) BindContent(ctx context.Context, code string, binding ContentBinding) (*domain.Ticket, error) {
	ticket, err := d.inner.BindContent(ctx, code, binding)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, code)
	return ticket, nil
}

func (d *cachedTicketRepository) ClearContent(ctx context.Context, code string, at time.Time) (*domain.Content, error) {
	previous, err := d.inner.ClearContent(ctx, code, at)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, code)
	return previous, nil
}

func (d *cachedTicketRepository) Delete(ctx context.Context, code string) (*domain.Ticket, error) {
	ticket, err := d.inner.Delete(ctx, code)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, code)
	return ticket, nil
}

func (d *cachedTicketRepository) DeleteWhere(ctx context.Context, predicate domain.TicketPredicate) ([]domain.Ticket, error) {
	removed, err := d.inner.DeleteWhere(ctx, predicate)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(removed))
	for _, t := range removed {
		codes = append(codes, t.Code)
	}
	d.invalidate(ctx, codes...)
	return removed, nil
}

func (d *cachedTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	return d.inner.List(ctx, filter)
}

func (d *cachedTicketRepository) ListUnlockedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	return d.inner.ListUnlockedBetween(ctx, from, to)
}

func (d *cachedTicketRepository) invalidate(ctx context.Context, codes ...string) {
	if len(codes) == 0 {
		return
	}
	keys := make([]string, 0, len(codes))
	versions := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, ticketCacheKey(code))
		versions = append(versions, ticketVersionKey(code))
	}
	// The bump must land before the delete: a fill that read the store
	// before this write either sees the new version or is deleted here.
	if err := d.cache.Bump(ctx, d.versionTTL(), versions...); err != nil {
		d.logger.Warn("ticket cache version bump failed", zap.Strings("keys", versions), zap.Error(err))
	}
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.logger.Warn("ticket cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// versionTTL outlives any record filled under the previous version.
func (d *cachedTicketRepository) versionTTL() time.Duration {
	if d.ttl <= 0 {
		return 10 * time.Minute
	}
	return 2 * d.ttl
}
