package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/basmalabs/storefront/internal/domain/auth"
	"github.com/basmalabs/storefront/internal/domain/cart"
	"github.com/basmalabs/storefront/internal/domain/inventory"
	"github.com/basmalabs/storefront/internal/events"
)

// BuyerDirectory resolves the buyer carried in a payment event by email.
type BuyerDirectory interface {
	FindByEmail(ctx context.Context, email string) (*auth.Identity, error)
}

// ServiceConfig holds deployment-level pricing knobs. Both default to zero.
type ServiceConfig struct {
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
}

// Service runs the checkout saga and the administrative status transitions.
type Service struct {
	carts     cart.Repository
	buyers    BuyerDirectory
	orders    Repository
	ledger    inventory.Ledger
	checkouts CheckoutLog
	events    events.Publisher

	tax      decimal.Decimal
	shipping decimal.Decimal
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	carts cart.Repository,
	buyers BuyerDirectory,
	orders Repository,
	ledger inventory.Ledger,
	checkouts CheckoutLog,
	publisher events.Publisher,
	cfg ServiceConfig,
) *Service {
	return &Service{
		carts:     carts,
		buyers:    buyers,
		orders:    orders,
		ledger:    ledger,
		checkouts: checkouts,
		events:    publisher,
		tax:       cfg.TaxAmount,
		shipping:  cfg.ShippingAmount,
		now:       time.Now,
	}
}

// CheckoutCash converts the cart into an unpaid cash order for the
// authenticated buyer. Total = cart's effective (post-discount) total plus
// the configured tax and shipping.
func (s *Service) CheckoutCash(ctx context.Context, cartID string, addr Address, buyerID string) (*Order, error) {
	snap, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:          buyerID,
		ShippingAddress: addr,
		TaxAmount:       s.tax,
		ShippingAmount:  s.shipping,
		TotalAmount:     snap.EffectiveTotal().Add(s.tax).Add(s.shipping),
		PaymentMethod:   MethodCash,
		Status:          StatusPending,
	}

	return s.commit(ctx, "cash:"+cartID, snap, o)
}

// CardCheckout is the workflow input extracted from a verified payment event.
// Only the reference ids are trusted from the event; cart and buyer are
// resolved by server-side lookup.
type CardCheckout struct {
	EventID    string
	CartID     string
	PayerEmail string
	Amount     decimal.Decimal
	Address    Address
}

// CheckoutCard converts the cart into a paid card order from a payment
// provider event. The event id keys the idempotency claim, so a redelivered
// event resolves to the already-created order instead of committing twice.
func (s *Service) CheckoutCard(ctx context.Context, cc CardCheckout) (*Order, error) {
	snap, err := s.carts.Get(ctx, cc.CartID)
	if err != nil {
		return nil, err
	}

	buyer, err := s.buyers.FindByEmail(ctx, cc.PayerEmail)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownIdentity) {
			return nil, &BuyerNotFoundError{Email: cc.PayerEmail}
		}
		return nil, errors.Wrap(err, "resolve buyer")
	}

	paidAt := s.now()
	o := &Order{
		UserID:          buyer.ID,
		ShippingAddress: cc.Address,
		TaxAmount:       s.tax,
		ShippingAmount:  s.shipping,
		TotalAmount:     cc.Amount,
		PaymentMethod:   MethodCard,
		IsPaid:          true,
		PaidAt:          &paidAt,
		Status:          StatusPending,
	}

	return s.commit(ctx, "event:"+cc.EventID, snap, o)
}

// commit runs the checkout saga: claim the idempotency key, persist the
// order, apply the stock ledger batch, delete the source cart, resolve the
// claim. Failures before the order is persisted abort with no mutation;
// failures after it are logged and never roll the order back.
func (s *Service) commit(ctx context.Context, key string, snap *cart.Snapshot, o *Order) (*Order, error) {
	attempt, claimed, err := s.checkouts.Claim(ctx, key, snap.ID)
	if err != nil {
		return nil, errors.Wrap(err, "claim checkout")
	}
	if !claimed {
		if attempt.Status == AttemptCompleted {
			return s.orders.GetByID(ctx, attempt.OrderID)
		}
		return nil, ErrCheckoutInProgress
	}

	now := s.now()
	o.ID = uuid.New().String()
	o.Items = append([]cart.LineItem(nil), snap.Items...)
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.orders.Create(ctx, o); err != nil {
		if failErr := s.checkouts.Fail(ctx, key, err); failErr != nil {
			zctx.From(ctx).Error("record failed checkout attempt",
				zap.String("key", key), zap.Error(failErr))
		}
		return nil, errors.Wrap(err, "create order")
	}

	// The order is committed from here on.
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	changes := make([]inventory.StockChange, len(o.Items))
	for i, item := range o.Items {
		changes[i] = inventory.StockChange{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := s.ledger.ApplyOrderStockChanges(ctx, changes); err != nil {
		lg.Error("stock ledger batch failed", zap.Error(err))
	}

	if err := s.carts.Delete(ctx, snap.ID); err != nil {
		lg.Error("delete cart after checkout", zap.String("cart_id", snap.ID), zap.Error(err))
	}

	if err := s.checkouts.Complete(ctx, key, o.ID); err != nil {
		lg.Error("complete checkout attempt", zap.String("key", key), zap.Error(err))
	}

	if err := s.events.Publish(ctx, events.Event{Type: events.OrderCreated, Payload: o}); err != nil {
		lg.Warn("publish order created event", zap.Error(err))
	}

	return o, nil
}

// MarkPaid records payment confirmation on the order.
func (s *Service) MarkPaid(ctx context.Context, id string) (*Order, error) {
	return s.orders.MarkPaid(ctx, id, s.now())
}

// MarkDelivered records delivery of the order.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return s.orders.MarkDelivered(ctx, id, s.now())
}

// SetStatus moves the order to the given status. Setting delivered also
// applies the deliver side effects. Transitions are deliberately permissive:
// any of the five states can be set from any other, and reapplying the
// current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, err := s.orders.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}

	ev := events.Event{Type: events.OrderStatusChanged, Payload: o}
	if err := s.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("publish order status event",
			zap.String("order_id", id), zap.Error(err))
	}

	return o, nil
}
