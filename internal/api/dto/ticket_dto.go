package dto

import (
	"time"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/timegate"
)

// CreateTicketRequest payload. An empty code asks for a generated one.
type CreateTicketRequest struct {
	Code string `json:"code"`
}

// IssueBatchRequest payload.
type IssueBatchRequest struct {
	Count  int    `json:"count"`
	Prefix string `json:"prefix"`
}

// BindContentRequest binds an already stored video reference or a letter.
type BindContentRequest struct {
	Kind     domain.ContentKind     `json:"kind"`
	Video    *domain.AssetReference `json:"video"`
	Letter   *LetterRequest         `json:"letter"`
	UnlockAt *time.Time             `json:"unlock_at"`
	Visible  *bool                  `json:"visible"`
}

// LetterRequest is the letter body for binds and compose.
type LetterRequest struct {
	SenderName string     `json:"sender_name"`
	Body       string     `json:"body"`
	Theme      string     `json:"theme"`
	UnlockAt   *time.Time `json:"unlock_at,omitempty"`
	Visible    *bool      `json:"visible,omitempty"`
}

// TicketResponse is the operator/issuer view of a ticket record.
type TicketResponse struct {
	Code      string              `json:"code"`
	BatchID   *string             `json:"batch_id,omitempty"`
	Link      string              `json:"link"`
	Bound     bool                `json:"bound"`
	Kind      *domain.ContentKind `json:"kind,omitempty"`
	UnlockAt  *time.Time          `json:"unlock_at,omitempty"`
	Visible   bool                `json:"visible"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// BatchResponse lists the tickets created by one issue call.
type BatchResponse struct {
	BatchID string           `json:"batch_id"`
	Count   int              `json:"count"`
	Tickets []TicketResponse `json:"tickets"`
}

// ViewerStatusResponse is what the public viewer renders.
type ViewerStatusResponse struct {
	Code             string              `json:"code"`
	State            string              `json:"state"`
	UnlockAt         *time.Time          `json:"unlock_at,omitempty"`
	RemainingSeconds int64               `json:"remaining_seconds,omitempty"`
	Countdown        *timegate.Countdown `json:"countdown,omitempty"`
	CountdownText    string              `json:"countdown_text,omitempty"`
	Content          *domain.Content     `json:"content,omitempty"`
}

// OperatorStatusResponse is the inventory view of one ticket.
type OperatorStatusResponse struct {
	Code      string              `json:"code"`
	Link      string              `json:"link"`
	State     string              `json:"state"`
	Binding   domain.BindingState `json:"binding"`
	Bound     bool                `json:"bound"`
	Locked    bool                `json:"locked"`
	Kind      domain.ContentKind  `json:"kind,omitempty"`
	UnlockAt  *time.Time          `json:"unlock_at,omitempty"`
	Visible   bool                `json:"visible"`
	BatchID   *string             `json:"batch_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Preview   *domain.Content     `json:"preview,omitempty"`
}

// PurgeResponse reports a bulk delete.
type PurgeResponse struct {
	State   domain.TicketPredicate `json:"state"`
	Deleted int                    `json:"deleted"`
}
