package service

import (
	"time"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/timegate"
)

// ViewerState is what a code holder is shown.
type ViewerState string

const (
	ViewerNotFound ViewerState = "NOT_FOUND"
	ViewerEmpty    ViewerState = "EMPTY"
	ViewerLocked   ViewerState = "LOCKED"
	ViewerReady    ViewerState = "READY"
)

// ViewerStatus is the viewer-facing projection. Content is set only when
// State is READY; Countdown and UnlockAt only when LOCKED.
type ViewerStatus struct {
	Code      string
	State     ViewerState
	UnlockAt  *time.Time
	Remaining time.Duration
	Countdown *timegate.Countdown
	Content   *domain.Content
}

// OperatorState is the inventory view of a ticket.
type OperatorState string

const (
	OperatorAvailable OperatorState = "AVAILABLE"
	OperatorUsed      OperatorState = "USED"
)

// OperatorStatus is the inventory projection. It reports the raw binding
// regardless of the time gate; Preview is only filled when the ticket
// allows it (visible) and the gate is open.
type OperatorStatus struct {
	Code      string
	State     OperatorState
	Binding   domain.BindingState
	Bound     bool
	Locked    bool
	Kind      domain.ContentKind
	UnlockAt  *time.Time
	Visible   bool
	BatchID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
	Preview   *domain.Content
}

// Project derives the viewer status at now. A nil ticket is NOT_FOUND.
func Project(ticket *domain.Ticket, now time.Time) ViewerStatus {
	if ticket == nil {
		return ViewerStatus{State: ViewerNotFound}
	}
	status := ViewerStatus{Code: ticket.Code}
	if !ticket.IsBound() {
		status.State = ViewerEmpty
		return status
	}
	gate := timegate.Evaluate(now, ticket.UnlockAt)
	if !gate.Open {
		countdown := gate.Countdown
		status.State = ViewerLocked
		status.UnlockAt = ticket.UnlockAt
		status.Remaining = gate.Remaining
		status.Countdown = &countdown
		return status
	}
	status.State = ViewerReady
	status.Content = ticket.Content
	return status
}

// ProjectOperator derives the operator status at now.
func ProjectOperator(ticket *domain.Ticket, now time.Time) OperatorStatus {
	gate := timegate.Evaluate(now, ticket.UnlockAt)
	status := OperatorStatus{
		Code:      ticket.Code,
		State:     OperatorAvailable,
		Binding:   domain.BindingStateUnbound,
		Bound:     ticket.IsBound(),
		UnlockAt:  ticket.UnlockAt,
		Visible:   ticket.Visible,
		BatchID:   ticket.BatchID,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
	if !status.Bound {
		return status
	}
	status.State = OperatorUsed
	status.Kind = ticket.Content.Kind
	status.Locked = !gate.Open
	if status.Locked {
		status.Binding = domain.BindingStateBoundLocked
	} else {
		status.Binding = domain.BindingStateBoundOpen
	}
	if ticket.Visible && gate.Open {
		status.Preview = ticket.Content
	}
	return status
}
