package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus enumerates fulfillment workflow states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDone       OrderStatus = "Done"
)

// ParseOrderStatus accepts a status name in any case.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusDone} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, raw)
}

// CanTransition allows forward moves only: Pending -> Processing -> Done.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusDone
	case OrderStatusProcessing:
		return next == OrderStatusDone
	}
	return false
}

// Order is a human fulfillment request sharing its code with a ticket.
type Order struct {
	ID           string
	Code         string
	CustomerName string
	ContactLink  string
	Category     string
	LetterType   string
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
