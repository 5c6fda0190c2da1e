package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/service"
)

// UnlockWatcher periodically announces content whose time gate opened since
// the previous sweep. It only emits events; viewer state never depends on it.
type UnlockWatcher struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	interval   time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

// NewUnlockWatcher creates a watcher whose first window starts now, so gates
// that opened before startup are not re-announced.
func NewUnlockWatcher(tickets repository.TicketRepository, dispatcher events.Dispatcher, clk clock.Clock, interval time.Duration, logger *zap.Logger) *UnlockWatcher {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &UnlockWatcher{
		tickets:    tickets,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
		interval:   interval,
		lastSweep:  clk.Now(),
	}
}

// Sweep publishes content_unlocked for every ticket unlocked in
// (lastSweep, now] and returns how many were announced.
func (w *UnlockWatcher) Sweep(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if !now.After(w.lastSweep) {
		return 0, nil
	}
	tickets, err := w.tickets.ListUnlockedBetween(ctx, w.lastSweep, now)
	if err != nil {
		return 0, err
	}
	for i := range tickets {
		t := &tickets[i]
		if t.Content == nil || t.UnlockAt == nil {
			continue
		}
		event := events.New(events.EventContentUnlocked, t.Code, events.Actor{}, now, events.ContentUnlockedPayload{
			Kind:     t.Content.Kind,
			UnlockAt: *t.UnlockAt,
		})
		if w.dispatcher != nil {
			if err := w.dispatcher.Publish(ctx, event); err != nil {
				w.logger.Warn("unlock event handler failed", zap.String("code", t.Code), zap.Error(err))
			}
		}
	}
	w.lastSweep = now
	return len(tickets), nil
}

// Start runs sweeps until ctx is cancelled.
func (w *UnlockWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("unlock watcher started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("unlock watcher stopped")
			return
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				w.logger.Error("unlock sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				w.logger.Info("unlock sweep", zap.Int("unlocked", n))
			}
		}
	}
}

// StartEventRelay registers the relay's event handlers.
func StartEventRelay(relay *service.EventRelay) {
	if relay == nil {
		return
	}
	relay.RegisterHandlers()
}
