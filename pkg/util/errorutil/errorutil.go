package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/paperplay/sticker-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts core and driver errors to a DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	details := map[string]any{}
	var ticketErr *domain.TicketError
	if errors.As(err, &ticketErr) && ticketErr.Code != "" {
		details["code"] = ticketErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrDuplicateCode):
		return &DomainError{Code: "DUPLICATE_CODE", Message: "ticket code already exists", HTTPStatus: http.StatusConflict, Details: details, Err: err}
	case errors.Is(err, domain.ErrAlreadyBound):
		return &DomainError{Code: "ALREADY_BOUND", Message: "ticket already has content; clear it first", HTTPStatus: http.StatusConflict, Details: details, Err: err}
	case errors.Is(err, domain.ErrUploadFailed):
		return &DomainError{Code: "UPLOAD_FAILED", Message: "asset upload failed; ticket left unbound", HTTPStatus: http.StatusBadGateway, Details: details, Err: err}
	case errors.Is(err, domain.ErrInvalidOrderTx):
		return &DomainError{Code: "CONFLICT", Message: "order status transition not allowed", HTTPStatus: http.StatusConflict, Details: details, Err: err}
	case errors.Is(err, domain.ErrInvalidInput):
		return &DomainError{Code: "VALIDATION_FAILED", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Details: details}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return &DomainError{Code: "NOT_FOUND", Message: "resource not found", HTTPStatus: http.StatusNotFound, Details: details, Err: err}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
