package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/order"
	"github.com/basmalabs/storefront/internal/query"
)

const (
	orderColumns = `id, user_id, items, shipping_address, tax_amount, shipping_amount,
		total_amount, payment_method, is_paid, paid_at, is_delivered, delivered_at,
		status, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, items, shipping_address, tax_amount,
			shipping_amount, total_amount, payment_method, is_paid, paid_at, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// Mark operations only touch unset fields, so reissuing one is a no-op.
	markPaidSQL = `UPDATE orders
		SET is_paid = TRUE, paid_at = COALESCE(paid_at, $2), updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns

	markDeliveredSQL = `UPDATE orders
		SET is_delivered = TRUE, delivered_at = COALESCE(delivered_at, $2), updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns

	updateStatusSQL = `UPDATE orders
		SET status = $2,
			is_delivered = CASE WHEN $2 = 'delivered' THEN TRUE ELSE is_delivered END,
			delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, $3) ELSE delivered_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are stored as JSONB snapshots.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, addrJSON, o.TaxAmount, o.ShippingAmount,
		o.TotalAmount, o.PaymentMethod, o.IsPaid, o.PaidAt, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.queryOne(ctx, id, getOrderByIDSQL, id)
}

// List runs the query pipeline against the orders collection. The handler
// passes a user scope for non-privileged callers.
func (r *OrderRepository) List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error) {
	return runList(ctx, r.pool, order.Orders.Build(spec, scopes...))
}

// MarkPaid sets the paid flag, keeping the first paid timestamp.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	return r.queryOne(ctx, id, markPaidSQL, id, at)
}

// MarkDelivered sets the delivered flag, keeping the first delivered
// timestamp.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	return r.queryOne(ctx, id, markDeliveredSQL, id, at)
}

// UpdateStatus moves the order to the given status; delivered also applies
// the deliver side effects.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	return r.queryOne(ctx, id, updateStatusSQL, id, string(status), at)
}

func (r *OrderRepository) queryOne(ctx context.Context, id, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		addrJSON  []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &addrJSON, &o.TaxAmount, &o.ShippingAmount,
		&o.TotalAmount, &o.PaymentMethod, &o.IsPaid, &o.PaidAt, &o.IsDelivered,
		&o.DeliveredAt, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("decoding order items: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("decoding shipping address: %w", err)
	}
	return o, nil
}
