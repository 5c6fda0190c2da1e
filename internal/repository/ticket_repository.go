package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/persistence"
)

// TicketFilter captures operator listing parameters.
type TicketFilter struct {
	Predicate domain.TicketPredicate
	BatchID   *string
	Limit     int
	Offset    int
}

// ContentBinding is the payload written by a conditional bind.
type ContentBinding struct {
	Content  domain.Content
	UnlockAt *time.Time
	Visible  bool
	At       time.Time
}

// TicketRepository encapsulates ticket persistence. Create and BindContent
// are conditional writes; implementations must never read-then-write.
type TicketRepository interface {
	// Create inserts the ticket if its code is free, else domain.ErrDuplicateCode.
	Create(ctx context.Context, ticket *domain.Ticket) error
	// CreateBatch inserts all tickets or none.
	CreateBatch(ctx context.Context, tickets []*domain.Ticket) error
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	// BindContent sets content only while the ticket is unbound.
	BindContent(ctx context.Context, code string, binding ContentBinding) (*domain.Ticket, error)
	// ClearContent unbinds the ticket and returns the content it held, if any.
	ClearContent(ctx context.Context, code string, at time.Time) (*domain.Content, error)
	// Delete removes the ticket, returning the removed row or nil when absent.
	Delete(ctx context.Context, code string) (*domain.Ticket, error)
	// DeleteWhere removes every matching ticket in one statement and returns them.
	DeleteWhere(ctx context.Context, predicate domain.TicketPredicate) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListUnlockedBetween returns bound tickets whose unlock time is in (from, to].
	ListUnlockedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `code, batch_id, content_kind, content, unlock_at, visible, created_at, updated_at`

const insertTicketQuery = `
        INSERT INTO tickets (code, batch_id, content_kind, content, unlock_at, visible, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        ON CONFLICT (code) DO NOTHING`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	args, err := insertArgs(ticket)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, insertTicketQuery, args...)
	if err != nil {
		return classifyWriteError("create", ticket.Code, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewTicketError("create", ticket.Code, domain.ErrDuplicateCode, nil)
	}
	ticket.UpdatedAt = ticket.CreatedAt
	return nil
}

func (r *ticketRepository) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	err := persistence.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, ticket := range tickets {
			args, err := insertArgs(ticket)
			if err != nil {
				return err
			}
			cmd, err := tx.Exec(ctx, insertTicketQuery, args...)
			if err != nil {
				return classifyWriteError("issue batch", ticket.Code, err)
			}
			if cmd.RowsAffected() == 0 {
				return domain.NewTicketError("issue batch", ticket.Code, domain.ErrDuplicateCode, nil)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, ticket := range tickets {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	return nil
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTicketError("get", code, domain.ErrNotFound, nil)
	}
	return ticket, err
}

func (r *ticketRepository) BindContent(ctx context.Context, code string, binding ContentBinding) (*domain.Ticket, error) {
	payload, err := json.Marshal(binding.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	query := `
        UPDATE tickets SET content_kind=$2, content=$3, unlock_at=$4, visible=$5, updated_at=$6
        WHERE code=$1 AND content_kind IS NULL
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		code,
		binding.Content.Kind,
		payload,
		binding.UnlockAt,
		binding.Visible,
		binding.At,
	))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The conditional update matched nothing: classify why without writing.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE code=$1)`, code).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewTicketError("bind", code, domain.ErrAlreadyBound, nil)
	}
	return nil, domain.NewTicketError("bind", code, domain.ErrNotFound, nil)
}

func (r *ticketRepository) ClearContent(ctx context.Context, code string, at time.Time) (*domain.Content, error) {
	const query = `
        WITH old AS (
            SELECT code, content FROM tickets WHERE code=$1 FOR UPDATE
        )
        UPDATE tickets t SET content_kind=NULL, content=NULL, unlock_at=NULL, visible=TRUE,
            updated_at=CASE WHEN t.content_kind IS NULL THEN t.updated_at ELSE $2 END
        FROM old WHERE t.code = old.code
        RETURNING old.content`
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, code, at).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTicketError("clear", code, domain.ErrNotFound, nil)
		}
		return nil, err
	}
	return decodeContent(raw)
}

func (r *ticketRepository) Delete(ctx context.Context, code string) (*domain.Ticket, error) {
	query := `DELETE FROM tickets WHERE code=$1 RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func (r *ticketRepository) DeleteWhere(ctx context.Context, predicate domain.TicketPredicate) ([]domain.Ticket, error) {
	clause, err := predicateClause(predicate)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `DELETE FROM tickets WHERE `+clause+` RETURNING `+ticketColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	predicate := filter.Predicate
	if predicate == "" {
		predicate = domain.PredicateAll
	}
	clause, err := predicateClause(predicate)
	if err != nil {
		return nil, err
	}
	clauses := []string{clause}
	args := []any{}
	if filter.BatchID != nil {
		args = append(args, *filter.BatchID)
		clauses = append(clauses, fmt.Sprintf("batch_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, code ASC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListUnlockedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE content_kind IS NOT NULL AND unlock_at > $1 AND unlock_at <= $2
        ORDER BY unlock_at ASC`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func predicateClause(p domain.TicketPredicate) (string, error) {
	switch p {
	case domain.PredicateBound:
		return "content_kind IS NOT NULL", nil
	case domain.PredicateUnbound:
		return "content_kind IS NULL", nil
	case domain.PredicateAll:
		return "TRUE", nil
	}
	return "", fmt.Errorf("%w: unknown ticket predicate %q", domain.ErrInvalidInput, p)
}

func insertArgs(ticket *domain.Ticket) ([]any, error) {
	var kind *domain.ContentKind
	var payload []byte
	if ticket.Content != nil {
		encoded, err := json.Marshal(ticket.Content)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		kind = &ticket.Content.Kind
		payload = encoded
	}
	return []any{ticket.Code, ticket.BatchID, kind, payload, ticket.UnlockAt, ticket.Visible, ticket.CreatedAt}, nil
}

func classifyWriteError(op, code string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return domain.NewTicketError(op, code, domain.ErrDuplicateCode, nil)
	}
	return err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		kind   *string
		raw    []byte
	)
	if err := row.Scan(
		&ticket.Code,
		&ticket.BatchID,
		&kind,
		&raw,
		&ticket.UnlockAt,
		&ticket.Visible,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	content, err := decodeContent(raw)
	if err != nil {
		return nil, err
	}
	ticket.Content = content
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func decodeContent(raw []byte) (*domain.Content, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var content domain.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &content, nil
}
