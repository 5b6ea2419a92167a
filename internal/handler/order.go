package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/basmalabs/storefront/internal/domain/cart"
	"github.com/basmalabs/storefront/internal/domain/order"
	"github.com/basmalabs/storefront/internal/payment"
	"github.com/basmalabs/storefront/internal/query"
)

// maxWebhookBody bounds the raw webhook body read for signature checking.
const maxWebhookBody = 1 << 20

// ListOrders lists orders through the query pipeline. Non-privileged callers
// are scoped to their own orders; the scope is imposed before any client
// filter and is reflected by the count pass.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
		return
	}

	spec := query.ParseSpec(r.URL.Query())
	var scopes []query.Scope
	if !identity.Role.Privileged() {
		scopes = append(scopes, query.Scope{Column: "user_id", Value: identity.ID})
	}

	docs, pg, err := h.orders.List(r.Context(), spec, scopes...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondList(w, docs, pg)
}

// GetOrder returns one order. Non-privileged callers only see their own.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
		return
	}

	id := chi.URLParam(r, "id")
	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !identity.Role.Privileged() && o.UserID != identity.ID {
		respondError(w, r, &order.NotFoundError{OrderID: id})
		return
	}
	respondData(w, http.StatusOK, "", o)
}

type cashOrderInput struct {
	ShippingAddress order.Address `json:"shippingAddress"`
}

// CreateCashOrder converts the cart into an unpaid cash order for the
// authenticated caller.
func (h *Handler) CreateCashOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
		return
	}

	var in cashOrderInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	o, err := h.workflow.CheckoutCash(r.Context(), chi.URLParam(r, "cartId"), in.ShippingAddress, identity.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Order created", o)
}

// PayOrder records payment confirmation.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.workflow.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Order paid", o)
}

// DeliverOrder records delivery.
func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.workflow.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Order delivered", o)
}

type statusInput struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves the order to the requested status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in statusInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	status, err := order.ParseStatus(in.Status)
	if err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	o, err := h.workflow.SetStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", o)
}

// CheckoutWebhook handles asynchronous payment confirmations. A bad
// signature is a permanent 400; a cart or buyer that no longer resolves is
// logged and acknowledged so the provider does not retry. Redelivered events
// are absorbed by the Redis fast path and, durably, by the checkout log.
func (h *Handler) CheckoutWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: "unreadable body"})
		return
	}

	if err := h.verifier.Verify(r.Header.Get(payment.SignatureHeader), body); err != nil {
		respondError(w, r, err)
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	lg := zctx.From(r.Context()).With(zap.String("event_id", ev.ID))

	if ev.Type != payment.EventCheckoutCompleted {
		lg.Debug("ignoring webhook event", zap.String("type", ev.Type))
		h.acknowledge(w)
		return
	}

	if !h.dedup.FirstDelivery(r.Context(), ev.ID) {
		lg.Info("duplicate webhook delivery suppressed")
		h.acknowledge(w)
		return
	}

	_, err = h.workflow.CheckoutCard(r.Context(), order.CardCheckout{
		EventID:    ev.ID,
		CartID:     ev.Session.CartReference,
		PayerEmail: ev.Session.PayerEmail,
		Amount:     ev.Session.Total(),
		Address: order.Address{
			Details:    ev.Session.ShippingAddress.Details,
			Phone:      ev.Session.ShippingAddress.Phone,
			City:       ev.Session.ShippingAddress.City,
			PostalCode: ev.Session.ShippingAddress.PostalCode,
		},
	})
	if err != nil {
		var (
			cartNF  *cart.NotFoundError
			buyerNF *order.BuyerNotFoundError
		)
		switch {
		case errors.As(err, &cartNF), errors.As(err, &buyerNF):
			// Acknowledged without an order: retrying cannot fix a missing
			// referent, but the drop is logged loudly for operators.
			lg.Error("webhook order dropped", zap.Error(err))
			h.acknowledge(w)
		case errors.Is(err, order.ErrCheckoutInProgress):
			// A concurrent delivery of the same event holds the claim.
			lg.Info("webhook delivery raced a concurrent claim")
			h.acknowledge(w)
		default:
			respondError(w, r, err)
		}
		return
	}

	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	respond(w, http.StatusOK, envelope{Data: map[string]bool{"received": true}})
}
