package dto

import (
	"time"

	"github.com/paperplay/sticker-service/internal/domain"
)

// UpdateOrderStatusRequest payload.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderResponse is an order plus the state of its ticket.
type OrderResponse struct {
	Code         string             `json:"code"`
	CustomerName string             `json:"customer_name"`
	ContactLink  string             `json:"contact_link"`
	Category     string             `json:"category,omitempty"`
	LetterType   string             `json:"letter_type,omitempty"`
	Status       domain.OrderStatus `json:"status"`
	Link         string             `json:"link,omitempty"`
	TicketExists *bool              `json:"ticket_exists,omitempty"`
	TicketBound  *bool              `json:"ticket_bound,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
