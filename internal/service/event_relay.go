package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/mq"
)

// EventRelay logs lifecycle events and forwards them to the broker as
// sticker.<type>.
type EventRelay struct {
	dispatcher events.Dispatcher
	publisher  mq.Publisher
	logger     *zap.Logger
}

// NewEventRelay creates the relay. A nil publisher only logs.
func NewEventRelay(dispatcher events.Dispatcher, publisher mq.Publisher, logger *zap.Logger) *EventRelay {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{dispatcher: dispatcher, publisher: publisher, logger: logger}
}

// RegisterHandlers subscribes to every lifecycle event.
func (r *EventRelay) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		r.dispatcher.Subscribe(eventType, r.handle)
	}
}

func (r *EventRelay) handle(ctx context.Context, event events.Event) error {
	r.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("code", event.Code),
		zap.Any("payload", event.Payload))
	if err := r.publisher.Publish(ctx, RoutingKey(event.Type), event); err != nil {
		r.logger.Warn("event relay publish failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}

// RoutingKey is the broker routing key for an event type.
func RoutingKey(t events.EventType) string {
	return "sticker." + string(t)
}
