// Package inventory defines the stock ledger applied when an order commits.
package inventory

import (
	"context"
	"fmt"
)

// StockChange is one line of the ledger batch: ordered quantity to subtract
// from stock and add to the sold counter of a product.
type StockChange struct {
	ProductID string
	Quantity  int
}

// Ledger applies an order's stock changes as a single batch. The whole batch
// is submitted together so a store-level failure is visible as one outcome
// instead of silently skipping later items.
type Ledger interface {
	ApplyOrderStockChanges(ctx context.Context, changes []StockChange) error
}

// BatchError reports the batch item on which the ledger application failed.
type BatchError struct {
	ProductID string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("stock ledger batch failed at product %s: %v", e.ProductID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
