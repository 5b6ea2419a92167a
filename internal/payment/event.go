// Package payment is the boundary to the payment provider: it verifies
// webhook signatures and decodes checkout-completed events. The provider's
// hosted checkout UI and wider wire format stay outside this core.
package payment

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// EventCheckoutCompleted is the only event kind the workflow acts on.
const EventCheckoutCompleted = "checkout.session.completed"

// ShippingMetadata is the shipping address the provider echoes back from the
// session metadata.
type ShippingMetadata struct {
	Details    string `json:"details"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// CheckoutEvent is a payment-provider webhook event. Only the reference ids
// are trusted from it; the workflow resolves cart and buyer server-side.
type CheckoutEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Session CheckoutSession `json:"session"`
}

// CheckoutSession carries the completed session's payload.
type CheckoutSession struct {
	CartReference    string           `json:"cartReference"`
	PayerEmail       string           `json:"payerEmail"`
	TotalAmountMinor int64            `json:"totalAmountMinor"`
	ShippingAddress  ShippingMetadata `json:"shippingAddress"`
}

// Total converts the session's minor-unit amount to a decimal major amount.
func (s CheckoutSession) Total() decimal.Decimal {
	return decimal.NewFromInt(s.TotalAmountMinor).Shift(-2)
}

// ParseEvent decodes a webhook body. Call only after signature verification.
func ParseEvent(body []byte) (*CheckoutEvent, error) {
	var ev CheckoutEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, errors.Wrap(err, "decode webhook event")
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, errors.New("webhook event missing id or type")
	}
	return &ev, nil
}
