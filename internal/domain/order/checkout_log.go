package order

import (
	"context"
	"time"
)

// AttemptStatus is the lifecycle state of a recorded checkout attempt.
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
)

// Attempt is the durable processed-marker for one checkout, keyed by an
// idempotency key: cash:<cartID> for direct checkouts, event:<eventID> for
// payment-webhook deliveries. It is what makes replayed webhook events and
// retried requests resolve to the already-created order instead of
// committing twice.
type Attempt struct {
	Key       string
	CartID    string
	Status    AttemptStatus
	OrderID   string
	LastError string
	UpdatedAt time.Time
}

// CheckoutLog records checkout attempts. Claim must be atomic: of two
// concurrent claims for one key, exactly one wins.
type CheckoutLog interface {
	// Claim registers a started attempt for key. When the key is already
	// taken it returns the existing attempt and claimed=false, except that a
	// failed attempt is reclaimed (claimed=true) so checkouts can be retried.
	Claim(ctx context.Context, key, cartID string) (attempt *Attempt, claimed bool, err error)
	// Complete marks the attempt committed with the created order's id.
	Complete(ctx context.Context, key, orderID string) error
	// Fail records an error on the attempt, making the key claimable again.
	Fail(ctx context.Context, key string, cause error) error
}
