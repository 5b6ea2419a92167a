// Package repository implements the domain repositories on PostgreSQL via
// pgx. List operations run the two-pass count-then-fetch protocol of the
// query pipeline.
package repository

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/db"
	"github.com/basmalabs/storefront/internal/query"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// runList executes a built query's two passes: a genuine count of the full
// filtered population, then the sorted, projected, paginated fetch. Both
// passes share one predicate, so pagination metadata always reflects the
// pre-pagination population.
func runList(ctx context.Context, pool *pgxpool.Pool, q *query.Query) ([]map[string]any, query.Pagination, error) {
	countSQL, countArgs := q.CountSQL()

	var total int64
	if err := pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, query.Pagination{}, fmt.Errorf("count pass: %w", err)
	}

	selectSQL, selectArgs := q.SelectSQL()
	rows, err := pool.Query(ctx, selectSQL, selectArgs...)
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("fetch pass: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (map[string]any, error) {
		return pgx.RowToMap(row)
	})
	if err != nil {
		return nil, query.Pagination{}, fmt.Errorf("fetch pass: %w", err)
	}

	return docs, q.Pagination(total), nil
}
