package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/order"
)

const (
	// The claim is a single atomic upsert: it wins iff the key is new or the
	// previous attempt failed. On conflict with a live attempt nothing is
	// written and no row comes back.
	claimAttemptSQL = `INSERT INTO checkout_attempts (idempotency_key, cart_id, status, updated_at)
		VALUES ($1, $2, 'started', now())
		ON CONFLICT (idempotency_key) DO UPDATE
			SET status = 'started', cart_id = EXCLUDED.cart_id, last_error = NULL, updated_at = now()
			WHERE checkout_attempts.status = 'failed'
		RETURNING idempotency_key, cart_id, status, COALESCE(order_id::text, ''), COALESCE(last_error, ''), updated_at`

	getAttemptSQL = `SELECT idempotency_key, cart_id, status, COALESCE(order_id::text, ''),
			COALESCE(last_error, ''), updated_at
		FROM checkout_attempts WHERE idempotency_key = $1`

	completeAttemptSQL = `UPDATE checkout_attempts
		SET status = 'completed', order_id = $2, updated_at = now()
		WHERE idempotency_key = $1`

	failAttemptSQL = `UPDATE checkout_attempts
		SET status = 'failed', last_error = $2, updated_at = now()
		WHERE idempotency_key = $1`
)

var _ order.CheckoutLog = (*CheckoutLogRepository)(nil)

// CheckoutLogRepository implements the durable checkout idempotency log on
// PostgreSQL. Atomicity of Claim rests on the primary-key upsert: of two
// concurrent claims for one key, the store lets exactly one insert or
// reclaim succeed.
type CheckoutLogRepository struct {
	pool *pgxpool.Pool
}

// NewCheckoutLogRepository returns a CheckoutLogRepository that uses the
// given pool.
func NewCheckoutLogRepository(pool *pgxpool.Pool) *CheckoutLogRepository {
	return &CheckoutLogRepository{pool: pool}
}

// Claim registers a started attempt for key, or reports the live attempt
// holding it.
func (r *CheckoutLogRepository) Claim(ctx context.Context, key, cartID string) (*order.Attempt, bool, error) {
	rows, err := r.pool.Query(ctx, claimAttemptSQL, key, cartID)
	if err != nil {
		return nil, false, fmt.Errorf("claiming checkout %q: %w", key, err)
	}

	attempt, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err == nil {
		return &attempt, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("claiming checkout %q: %w", key, err)
	}

	// Claim lost: surface the attempt that holds the key.
	existing, err := r.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Complete marks the attempt committed with the created order's id.
func (r *CheckoutLogRepository) Complete(ctx context.Context, key, orderID string) error {
	if _, err := r.pool.Exec(ctx, completeAttemptSQL, key, orderID); err != nil {
		return fmt.Errorf("completing checkout %q: %w", key, err)
	}
	return nil
}

// Fail records the error on the attempt, making the key claimable again.
func (r *CheckoutLogRepository) Fail(ctx context.Context, key string, cause error) error {
	if _, err := r.pool.Exec(ctx, failAttemptSQL, key, cause.Error()); err != nil {
		return fmt.Errorf("failing checkout %q: %w", key, err)
	}
	return nil
}

func (r *CheckoutLogRepository) get(ctx context.Context, key string) (*order.Attempt, error) {
	rows, err := r.pool.Query(ctx, getAttemptSQL, key)
	if err != nil {
		return nil, fmt.Errorf("loading checkout %q: %w", key, err)
	}
	attempt, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err != nil {
		return nil, fmt.Errorf("loading checkout %q: %w", key, err)
	}
	return &attempt, nil
}

func scanAttempt(row pgx.CollectableRow) (order.Attempt, error) {
	var a order.Attempt
	err := row.Scan(&a.Key, &a.CartID, &a.Status, &a.OrderID, &a.LastError, &a.UpdatedAt)
	return a, err
}
