package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds returned by the ticket core. Match them with errors.Is.
var (
	ErrDuplicateCode  = errors.New("ticket code already exists")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyBound   = errors.New("ticket already has content bound")
	ErrUploadFailed   = errors.New("asset upload failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidOrderTx = errors.New("invalid order status transition")
)

// TicketError carries the operation and code alongside a sentinel kind.
type TicketError struct {
	Op   string
	Code string
	Kind error
	Err  error
}

func (e *TicketError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Code, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *TicketError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewTicketError builds a TicketError.
func NewTicketError(op, code string, kind, cause error) error {
	return &TicketError{Op: op, Code: code, Kind: kind, Err: cause}
}

// IsDuplicateCode reports whether err is a duplicate-code failure.
func IsDuplicateCode(err error) bool { return errors.Is(err, ErrDuplicateCode) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyBound reports whether err is an already-bound failure.
func IsAlreadyBound(err error) bool { return errors.Is(err, ErrAlreadyBound) }

// IsUploadFailed reports whether err is an upload failure.
func IsUploadFailed(err error) bool { return errors.Is(err, ErrUploadFailed) }
