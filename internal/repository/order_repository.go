package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperplay/sticker-service/internal/domain"
)

// OrderFilter captures operator listing parameters.
type OrderFilter struct {
	Status *domain.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository persists fulfillment requests.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
	// UpdateStatus moves the order from one status to another only if it is
	// still in from; otherwise domain.ErrInvalidOrderTx.
	UpdateStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates the Postgres repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, code, customer_name, contact_link, category, letter_type, status, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (id, code, customer_name, contact_link, category, letter_type, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`
	_, err := r.pool.Exec(ctx, query,
		order.ID,
		order.Code,
		order.CustomerName,
		order.ContactLink,
		order.Category,
		order.LetterType,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewTicketError("create order", order.Code, domain.ErrDuplicateCode, nil)
		}
		return err
	}
	order.UpdatedAt = order.CreatedAt
	return nil
}

func (r *orderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE code=$1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTicketError("get order", code, domain.ErrNotFound, nil)
	}
	return order, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	query := `UPDATE orders SET status=$3, updated_at=$4 WHERE code=$1 AND status=$2 RETURNING ` + orderColumns
	order, err := scanOrder(r.pool.QueryRow(ctx, query, code, from, to, at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByCode(ctx, code); getErr != nil {
			return nil, getErr
		}
		return nil, domain.NewTicketError("update order", code, domain.ErrInvalidOrderTx, nil)
	}
	return order, err
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	where := "TRUE"
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = "status=$1"
	}
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, orderColumns, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.Code,
		&order.CustomerName,
		&order.ContactLink,
		&order.Category,
		&order.LetterType,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

// MemoryOrderRepository is the in-process fallback for orders.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ OrderRepository = (*MemoryOrderRepository)(nil)

// NewMemoryOrderRepository constructs an empty store.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.Code]; exists {
		return domain.NewTicketError("create order", order.Code, domain.ErrDuplicateCode, nil)
	}
	order.UpdatedAt = order.CreatedAt
	r.orders[order.Code] = *order
	return nil
}

func (r *MemoryOrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[code]
	if !ok {
		return nil, domain.NewTicketError("get order", code, domain.ErrNotFound, nil)
	}
	return &order, nil
}

func (r *MemoryOrderRepository) UpdateStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[code]
	if !ok {
		return nil, domain.NewTicketError("update order", code, domain.ErrNotFound, nil)
	}
	if order.Status != from {
		return nil, domain.NewTicketError("update order", code, domain.ErrInvalidOrderTx, nil)
	}
	order.Status = to
	order.UpdatedAt = at
	r.orders[code] = order
	return &order, nil
}

func (r *MemoryOrderRepository) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(result) {
		return []domain.Order{}, nil
	}
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}
