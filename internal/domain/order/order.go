// Package order owns the cart-to-order workflow: the order aggregate, the
// status machine, and the checkout saga with its idempotency log.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/basmalabs/storefront/internal/domain/cart"
	"github.com/basmalabs/storefront/internal/query"
)

// Status is the main order state chain. isPaid/isDelivered track
// cross-cutting facts independently: an order can be paid while pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a client-supplied status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return s, nil
	}
	return "", errors.Errorf("unknown order status %q", raw)
}

// PaymentMethod is how an order was paid for.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
)

// NotFoundError indicates the referenced order does not exist.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no order for id %s", e.OrderID)
}

// BuyerNotFoundError indicates the webhook payer email resolved to no known
// buyer.
type BuyerNotFoundError struct {
	Email string
}

func (e *BuyerNotFoundError) Error() string {
	return fmt.Sprintf("no buyer for email %s", e.Email)
}

// ErrCheckoutInProgress is returned when another request holds the checkout
// claim for the same cart or payment event.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// Address is the shipping destination captured at checkout.
type Address struct {
	Details    string `json:"details"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// Order is the persisted aggregate created by a committed checkout. Line
// items are copied verbatim from the cart snapshot at commit time and never
// re-derived; TotalAmount is fixed at creation.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []cart.LineItem `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	ShippingAmount  decimal.Decimal `json:"shippingAmount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Repository defines persistence operations for orders. The mark/update
// operations return the resulting order and are idempotent: reapplying an
// already-applied transition leaves the row unchanged.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error)
	MarkPaid(ctx context.Context, id string, at time.Time) (*Order, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (*Order, error)
}

// Orders describes the orders table for the list-query pipeline. Orders have
// no keyword search; non-privileged callers are scoped to their own rows by
// the handler.
var Orders = &query.Collection{
	Table: "orders",
	Fields: []query.Field{
		{Name: "id", Column: "id"},
		{Name: "userId", Column: "user_id"},
		{Name: "items", Column: "items"},
		{Name: "shippingAddress", Column: "shipping_address"},
		{Name: "taxAmount", Column: "tax_amount", Kind: query.Numeric},
		{Name: "shippingAmount", Column: "shipping_amount", Kind: query.Numeric},
		{Name: "totalAmount", Column: "total_amount", Kind: query.Numeric},
		{Name: "paymentMethod", Column: "payment_method"},
		{Name: "isPaid", Column: "is_paid", Kind: query.Bool},
		{Name: "paidAt", Column: "paid_at", Kind: query.Time},
		{Name: "isDelivered", Column: "is_delivered", Kind: query.Bool},
		{Name: "deliveredAt", Column: "delivered_at", Kind: query.Time},
		{Name: "status", Column: "status"},
		{Name: "createdAt", Column: "created_at", Kind: query.Time},
		{Name: "updatedAt", Column: "updated_at", Kind: query.Time, Internal: true},
	},
	DefaultSort: []query.SortKey{{Field: "createdAt", Desc: true}},
}
