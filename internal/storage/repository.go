package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dompet/internal/cache"
	"dompet/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const categoryCacheSize = 256

type SQLiteRepository struct {
	*Queries
	db         *sql.DB
	categories *cache.LRU[uuid.UUID, core.Category]
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Times read back are expressed in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serialises writers; everything inside InTx must use the
	// Queries handed to the callback.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		Queries:    New(db, loc),
		db:         db,
		categories: cache.NewLRU[uuid.UUID, core.Category](categoryCacheSize, 10*time.Minute),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx runs fn in a single transaction, committing when it returns nil.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	r.categories.Purge()
	return nil
}

// CachedCategory is GetCategory backed by a small LRU. Use it for lookups
// outside a transaction, such as naming report groups.
func (r *SQLiteRepository) CachedCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	if c, ok := r.categories.Get(id); ok {
		return c, nil
	}
	c, err := r.Queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	r.categories.Set(id, c)
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	defer r.categories.Delete(c.ID)
	return r.Queries.UpdateCategory(ctx, c)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	defer r.categories.Delete(id)
	return r.Queries.DeleteCategory(ctx, id)
}

// LatestBudget returns the most recent window together with its lines.
func (r *SQLiteRepository) LatestBudget(ctx context.Context) (core.PeriodicBudget, []core.BudgetLine, error) {
	b, err := r.LatestPeriodicBudget(ctx)
	if err != nil {
		return core.PeriodicBudget{}, nil, err
	}
	lines, err := r.ListBudgetLines(ctx, b.ID)
	if err != nil {
		return core.PeriodicBudget{}, nil, err
	}
	return b, lines, nil
}

// CreateBudgetWindow stores a window and its lines atomically. A window with
// the same start date already present yields core.ErrWindowExists.
func (r *SQLiteRepository) CreateBudgetWindow(ctx context.Context, b core.PeriodicBudget, lines []core.BudgetLine) error {
	return r.InTx(ctx, func(q *Queries) error {
		if err := q.InsertPeriodicBudget(ctx, b); err != nil {
			return err
		}
		for _, l := range lines {
			if err := q.InsertBudgetLine(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
}
