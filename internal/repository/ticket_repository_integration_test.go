//go:build integration

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/persistence"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	dir, _ := filepath.Abs("../../migrations")
	if err := persistence.RunMigrations(ctx, pool, dir, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cleanup(t, pool)
	t.Cleanup(func() {
		cleanup(t, pool)
		pool.Close()
	})
	return pool
}

func cleanup(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE tickets, orders`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestTicketRepositoryConditionalWrites(t *testing.T) {
	repo := NewTicketRepository(testPool(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ticket := &domain.Ticket{Code: "it-1", Visible: true, CreatedAt: now}
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &domain.Ticket{Code: "it-1", Visible: true, CreatedAt: now}); !domain.IsDuplicateCode(err) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	bound, err := repo.BindContent(ctx, "it-1", videoBinding(now.Add(time.Second)))
	if err != nil || !bound.IsBound() {
		t.Fatalf("bind: %+v %v", bound, err)
	}
	if _, err := repo.BindContent(ctx, "it-1", videoBinding(now)); !domain.IsAlreadyBound(err) {
		t.Fatalf("expected already bound, got %v", err)
	}
	if _, err := repo.BindContent(ctx, "it-404", videoBinding(now)); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	previous, err := repo.ClearContent(ctx, "it-1", now.Add(2*time.Second))
	if err != nil || previous == nil || previous.Video == nil {
		t.Fatalf("clear: %+v %v", previous, err)
	}

	removed, err := repo.Delete(ctx, "it-1")
	if err != nil || removed == nil {
		t.Fatalf("delete: %+v %v", removed, err)
	}
	removed, err = repo.Delete(ctx, "it-1")
	if err != nil || removed != nil {
		t.Fatalf("second delete: %+v %v", removed, err)
	}
}

func TestTicketRepositoryCreateBatchRollsBack(t *testing.T) {
	repo := NewTicketRepository(testPool(t))
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, &domain.Ticket{Code: "batch-2", Visible: true, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	batch := []*domain.Ticket{
		{Code: "batch-1", Visible: true, CreatedAt: now},
		{Code: "batch-2", Visible: true, CreatedAt: now},
	}
	if err := repo.CreateBatch(ctx, batch); !domain.IsDuplicateCode(err) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := repo.GetByCode(ctx, "batch-1"); !domain.IsNotFound(err) {
		t.Fatalf("batch-1 should have been rolled back, got %v", err)
	}
}

func TestTicketRepositoryConcurrentCreate(t *testing.T) {
	raceCreate(t, NewTicketRepository(testPool(t)), "race-create", 16)
}

func TestTicketRepositoryConcurrentBind(t *testing.T) {
	repo := NewTicketRepository(testPool(t))
	if err := repo.Create(context.Background(), newTicket("race-bind")); err != nil {
		t.Fatalf("create: %v", err)
	}
	raceBind(t, repo, "race-bind", 16)
}
