package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/paperplay/sticker-service/internal/domain"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"duplicate", domain.NewTicketError("create", "X", domain.ErrDuplicateCode, nil), "DUPLICATE_CODE", http.StatusConflict},
		{"already bound", domain.NewTicketError("bind", "X", domain.ErrAlreadyBound, nil), "ALREADY_BOUND", http.StatusConflict},
		{"upload", domain.NewTicketError("bind", "X", domain.ErrUploadFailed, errors.New("disk full")), "UPLOAD_FAILED", http.StatusBadGateway},
		{"not found", domain.NewTicketError("get", "X", domain.ErrNotFound, nil), "NOT_FOUND", http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: bad", domain.ErrInvalidInput), "VALIDATION_FAILED", http.StatusBadRequest},
		{"order transition", domain.ErrInvalidOrderTx, "CONFLICT", http.StatusConflict},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"passthrough", NewUnauthorized("nope"), "UNAUTHORIZED", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.Code != tc.wantCode || got.HTTPStatus != tc.wantStatus {
				t.Fatalf("got %s/%d, want %s/%d", got.Code, got.HTTPStatus, tc.wantCode, tc.wantStatus)
			}
		})
	}
}

func TestToDomainErrorCarriesTicketCode(t *testing.T) {
	got := ToDomainError(domain.NewTicketError("bind", "820001-3", domain.ErrAlreadyBound, nil))
	if got.Details["code"] != "820001-3" {
		t.Fatalf("details = %v", got.Details)
	}
	if ToDomainError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}
