package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/repository"
)

// codeAlphabet omits 0/O and 1/I so codes survive being read off a sticker.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeLength = 64

func randomString(alphabet string, n int) (string, error) {
	if n <= 0 {
		n = 8
	}
	limit := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// randomCode returns a short shareable code.
func randomCode(n int) (string, error) {
	return randomString(codeAlphabet, n)
}

// defaultBatchID is the last six digits of the unix-millis clock.
func defaultBatchID(now time.Time) string {
	return fmt.Sprintf("%06d", now.UnixMilli()%1_000_000)
}

// requestCodes yields REQ-<last six millis digits> first, then random digits.
func requestCodes(now time.Time) func(attempt int) (string, error) {
	return func(attempt int) (string, error) {
		if attempt == 0 {
			return "REQ-" + defaultBatchID(now), nil
		}
		digits, err := randomString("0123456789", 6)
		if err != nil {
			return "", err
		}
		return "REQ-" + digits, nil
	}
}

// validateCode rejects codes that cannot round-trip through a link path.
func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code required", domain.ErrInvalidInput)
	}
	if len(code) > maxCodeLength {
		return fmt.Errorf("%w: code longer than %d characters", domain.ErrInvalidInput, maxCodeLength)
	}
	for _, r := range code {
		if r == '/' || r == '?' || r == '#' || r == '%' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: code contains %q", domain.ErrInvalidInput, r)
		}
	}
	return nil
}

// insertWithGeneratedCode retries build+Create with fresh codes while the
// store reports a collision. A generated code is never returned to a caller
// until its insert succeeds, so the retry is invisible.
func insertWithGeneratedCode(
	ctx context.Context,
	tickets repository.TicketRepository,
	attempts int,
	next func(attempt int) (string, error),
	build func(code string) *domain.Ticket,
) (*domain.Ticket, error) {
	if attempts <= 0 {
		attempts = 5
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		code, err := next(attempt)
		if err != nil {
			return nil, err
		}
		ticket := build(code)
		err = tickets.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !domain.IsDuplicateCode(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free code after %d attempts: %w", attempts, lastErr)
}
