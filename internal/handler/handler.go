// Package handler exposes the storefront HTTP API. Handlers translate
// between the wire envelope and the domain services; business rules live in
// the domain packages.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/basmalabs/storefront/internal/cache"
	"github.com/basmalabs/storefront/internal/domain/auth"
	"github.com/basmalabs/storefront/internal/domain/cart"
	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/domain/order"
	"github.com/basmalabs/storefront/internal/payment"
	"github.com/basmalabs/storefront/internal/query"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// APIKeyPepper is the HMAC pepper for hashing client API keys.
	APIKeyPepper []byte
}

// Handler wires the HTTP routes to the domain layer.
type Handler struct {
	cfg        Config
	products   catalog.ProductRepository
	categories catalog.CategoryRepository
	orders     order.Repository
	workflow   *order.Service
	verifier   *payment.Verifier
	dedup      *cache.DeliveryDedup
	identities auth.Directory
}

// New constructs a Handler with the required domain dependencies. dedup may
// be nil when no Redis is configured.
func New(
	cfg Config,
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	orders order.Repository,
	workflow *order.Service,
	verifier *payment.Verifier,
	dedup *cache.DeliveryDedup,
	identities auth.Directory,
) *Handler {
	return &Handler{
		cfg:        cfg,
		products:   products,
		categories: categories,
		orders:     orders,
		workflow:   workflow,
		verifier:   verifier,
		dedup:      dedup,
		identities: identities,
	}
}

// Routes returns the API router. The payment webhook sits outside the
// authenticated group: it is authenticated by the provider signature over
// the raw body instead.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhook/checkout", h.CheckoutWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/products", h.ListProducts)
			r.Post("/products", h.CreateProduct)
			r.Get("/products/{id}", h.GetProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/categories", h.ListCategories)
			r.Post("/categories", h.CreateCategory)
			r.Get("/categories/{id}", h.GetCategory)
			r.Put("/categories/{id}", h.UpdateCategory)
			r.Delete("/categories/{id}", h.DeleteCategory)
			r.Get("/categories/{categoryId}/products", h.ListCategoryProducts)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{cartId}", h.CreateCashOrder)
			r.Put("/orders/{id}/pay", h.PayOrder)
			r.Put("/orders/{id}/deliver", h.DeliverOrder)
			r.Put("/orders/{id}/status", h.UpdateOrderStatus)
		})
	})

	return r
}

// envelope is the uniform response body: a status field mirroring the HTTP
// code, and either data or, for lists, results + paginationResult + data.
type envelope struct {
	Status           int               `json:"status"`
	Message          string            `json:"message,omitempty"`
	Results          *int              `json:"results,omitempty"`
	PaginationResult *query.Pagination `json:"paginationResult,omitempty"`
	Data             any               `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, code int, env envelope) {
	env.Status = code
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}

func respondData(w http.ResponseWriter, code int, message string, data any) {
	respond(w, code, envelope{Message: message, Data: data})
}

func respondList(w http.ResponseWriter, docs []map[string]any, pg query.Pagination) {
	n := len(docs)
	if docs == nil {
		docs = []map[string]any{}
	}
	respond(w, http.StatusOK, envelope{
		Results:          &n,
		PaginationResult: &pg,
		Data:             docs,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := errorStatus(err)
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	respond(w, code, envelope{Message: message})
}

// errorStatus maps domain errors to wire responses. Not-found errors echo
// the offending identifier; internal failures stay generic.
func errorStatus(err error) (int, string) {
	var (
		cartNF     *cart.NotFoundError
		orderNF    *order.NotFoundError
		buyerNF    *order.BuyerNotFoundError
		productNF  *catalog.ProductNotFoundError
		categoryNF *catalog.CategoryNotFoundError
	)
	switch {
	case errors.As(err, &cartNF),
		errors.As(err, &orderNF),
		errors.As(err, &buyerNF),
		errors.As(err, &productNF),
		errors.As(err, &categoryNF):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, order.ErrCheckoutInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
