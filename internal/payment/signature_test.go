package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newTestVerifier(now time.Time) *Verifier {
	v := NewVerifier(testSecret)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_ValidSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt-1","type":"checkout.session.completed"}`)

	v := newTestVerifier(now)
	require.NoError(t, v.Verify(Sign(testSecret, now, body), body))
}

func TestVerify_Failures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt-1"}`)
	v := newTestVerifier(now)

	tests := []struct {
		name   string
		header string
		body   []byte
	}{
		{"missing header", "", body},
		{"garbage header", "nonsense", body},
		{"wrong secret", Sign("other_secret", now, body), body},
		{"tampered body", Sign(testSecret, now, body), []byte(`{"id":"evt-2"}`)},
		{"stale timestamp", Sign(testSecret, now.Add(-10*time.Minute), body), body},
		{"future timestamp", Sign(testSecret, now.Add(10*time.Minute), body), body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, v.Verify(tt.header, tt.body), ErrInvalidSignature)
		})
	}
}

func TestVerify_WithinTolerance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{}`)
	v := newTestVerifier(now)

	require.NoError(t, v.Verify(Sign(testSecret, now.Add(-4*time.Minute), body), body))
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"id": "evt-42",
		"type": "checkout.session.completed",
		"session": {
			"cartReference": "cart-7",
			"payerEmail": "buyer@example.com",
			"totalAmountMinor": 9050,
			"shippingAddress": {"city": "Cairo", "postalCode": "1234"}
		}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "evt-42", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cart-7", ev.Session.CartReference)
	assert.Equal(t, "buyer@example.com", ev.Session.PayerEmail)
	assert.Equal(t, "90.5", ev.Session.Total().String())
	assert.Equal(t, "Cairo", ev.Session.ShippingAddress.City)
}

func TestParseEvent_Invalid(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	require.Error(t, err)

	_, err = ParseEvent([]byte(`{"session":{}}`))
	require.Error(t, err)
}
