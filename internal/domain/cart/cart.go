// Package cart exposes the read-only boundary to the cart subsystem. The
// order workflow consumes a cart snapshot at checkout and deletes the backing
// cart once ownership of its line items has transferred to the order.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NotFoundError indicates the referenced cart does not exist.
type NotFoundError struct {
	CartID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no cart for id %s", e.CartID)
}

// LineItem is one selected product in a cart.
type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Snapshot is the buyer's in-progress selection, read at checkout time.
type Snapshot struct {
	ID                      string
	UserID                  string
	Items                   []LineItem
	TotalPrice              decimal.Decimal
	TotalPriceAfterDiscount *decimal.Decimal
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// EffectiveTotal is the discounted total when a discount was applied, the raw
// cart total otherwise.
func (s *Snapshot) EffectiveTotal() decimal.Decimal {
	if s.TotalPriceAfterDiscount != nil {
		return *s.TotalPriceAfterDiscount
	}
	return s.TotalPrice
}

// Repository is the checkout workflow's view of cart persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}
