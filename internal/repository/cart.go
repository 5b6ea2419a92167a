package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, user_id, items, total_price, total_price_after_discount,
			created_at, updated_at
		FROM carts WHERE id = $1`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository is the checkout workflow's read-and-delete view of the cart
// subsystem's storage.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads a cart snapshot. The line items are decoded from the JSONB
// column exactly as the cart subsystem wrote them.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	snap, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &cart.NotFoundError{CartID: id}
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}
	return &snap, nil
}

// Delete removes the cart. Deleting an already-deleted cart is not an error:
// a replayed checkout may legitimately find the cart gone.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, id); err != nil {
		return fmt.Errorf("deleting cart %q: %w", id, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Snapshot, error) {
	var (
		snap      cart.Snapshot
		itemsJSON []byte
	)
	err := row.Scan(
		&snap.ID, &snap.UserID, &itemsJSON, &snap.TotalPrice,
		&snap.TotalPriceAfterDiscount, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(itemsJSON, &snap.Items); err != nil {
		return snap, fmt.Errorf("decoding cart items: %w", err)
	}
	return snap, nil
}
