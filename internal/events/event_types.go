package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/paperplay/sticker-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIssued       EventType = "ticket_issued"
	EventBatchIssued        EventType = "batch_issued"
	EventContentBound       EventType = "content_bound"
	EventContentCleared     EventType = "content_cleared"
	EventTicketDeleted      EventType = "ticket_deleted"
	EventTicketsPurged      EventType = "tickets_purged"
	EventContentUnlocked    EventType = "content_unlocked"
	EventOrderSubmitted     EventType = "order_submitted"
	EventOrderStatusChanged EventType = "order_status_changed"
)

// AllEventTypes lists every type the relay subscribes to.
var AllEventTypes = []EventType{
	EventTicketIssued,
	EventBatchIssued,
	EventContentBound,
	EventContentCleared,
	EventTicketDeleted,
	EventTicketsPurged,
	EventContentUnlocked,
	EventOrderSubmitted,
	EventOrderStatusChanged,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type,omitempty"`
	Subject string             `json:"subject,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Code      string    `json:"code,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, code string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Code:      code,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketIssuedPayload payload.
type TicketIssuedPayload struct {
	BatchID *string `json:"batch_id,omitempty"`
	Origin  string  `json:"origin"`
}

// BatchIssuedPayload payload.
type BatchIssuedPayload struct {
	BatchID string   `json:"batch_id"`
	Codes   []string `json:"codes"`
}

// ContentBoundPayload payload.
type ContentBoundPayload struct {
	Kind     domain.ContentKind `json:"kind"`
	UnlockAt *time.Time         `json:"unlock_at,omitempty"`
	Visible  bool               `json:"visible"`
}

// ContentClearedPayload payload.
type ContentClearedPayload struct {
	Kind         domain.ContentKind `json:"kind,omitempty"`
	AssetsPurged int                `json:"assets_purged"`
}

// TicketsPurgedPayload payload.
type TicketsPurgedPayload struct {
	Predicate domain.TicketPredicate `json:"predicate"`
	Count     int                    `json:"count"`
}

// ContentUnlockedPayload payload.
type ContentUnlockedPayload struct {
	Kind     domain.ContentKind `json:"kind"`
	UnlockAt time.Time          `json:"unlock_at"`
}

// OrderStatusChangedPayload payload.
type OrderStatusChangedPayload struct {
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
}

// OrderSubmittedPayload payload.
type OrderSubmittedPayload struct {
	Category   string `json:"category,omitempty"`
	LetterType string `json:"letter_type,omitempty"`
}
