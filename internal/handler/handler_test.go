package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basmalabs/storefront/internal/domain/auth"
	"github.com/basmalabs/storefront/internal/domain/cart"
	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/domain/inventory"
	"github.com/basmalabs/storefront/internal/domain/order"
	"github.com/basmalabs/storefront/internal/events"
	"github.com/basmalabs/storefront/internal/payment"
	"github.com/basmalabs/storefront/internal/query"
)

type stubCatalog struct {
	docs    []map[string]any
	pg      query.Pagination
	scopes  []query.Scope
	product *catalog.Product
}

func (s *stubCatalog) List(_ context.Context, _ query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error) {
	s.scopes = scopes
	return s.docs, s.pg, nil
}

func (s *stubCatalog) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, &catalog.ProductNotFoundError{ProductID: id}
	}
	return s.product, nil
}

func (s *stubCatalog) Create(_ context.Context, p *catalog.Product) error { return nil }

func (s *stubCatalog) Update(_ context.Context, p *catalog.Product) (*catalog.Product, error) {
	return p, nil
}

func (s *stubCatalog) Delete(context.Context, string) error { return nil }

type stubCategories struct {
	docs []map[string]any
	pg   query.Pagination
}

func (s *stubCategories) List(_ context.Context, _ query.Spec, _ ...query.Scope) ([]map[string]any, query.Pagination, error) {
	return s.docs, s.pg, nil
}

func (s *stubCategories) GetByID(_ context.Context, id string) (*catalog.Category, error) {
	return nil, &catalog.CategoryNotFoundError{CategoryID: id}
}

func (s *stubCategories) Create(context.Context, *catalog.Category) error { return nil }

func (s *stubCategories) Update(_ context.Context, c *catalog.Category) (*catalog.Category, error) {
	return c, nil
}

func (s *stubCategories) Delete(context.Context, string) error { return nil }

type stubOrders struct {
	byID    map[string]*order.Order
	created []*order.Order
	docs    []map[string]any
	pg      query.Pagination
	scopes  []query.Scope
}

func (s *stubOrders) Create(_ context.Context, o *order.Order) error {
	if s.byID == nil {
		s.byID = map[string]*order.Order{}
	}
	s.byID[o.ID] = o
	s.created = append(s.created, o)
	return nil
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, &order.NotFoundError{OrderID: id}
	}
	return o, nil
}

func (s *stubOrders) List(_ context.Context, _ query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error) {
	s.scopes = scopes
	return s.docs, s.pg, nil
}

func (s *stubOrders) MarkPaid(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.IsPaid = true
	o.PaidAt = &at
	return o, nil
}

func (s *stubOrders) MarkDelivered(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	return o, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id string, status order.Status, _ time.Time) (*order.Order, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = status
	return o, nil
}

type stubCarts struct {
	snapshots map[string]*cart.Snapshot
	deleted   []string
}

func (s *stubCarts) Get(_ context.Context, id string) (*cart.Snapshot, error) {
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, &cart.NotFoundError{CartID: id}
	}
	return snap, nil
}

func (s *stubCarts) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubDirectory struct {
	identities []*auth.Identity
}

func (s *stubDirectory) FindByKeyHash(_ context.Context, hash string) (*auth.Identity, error) {
	for _, id := range s.identities {
		if id.KeyHash == hash {
			return id, nil
		}
	}
	return nil, auth.ErrUnknownIdentity
}

func (s *stubDirectory) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	for _, id := range s.identities {
		if id.Email == email {
			return id, nil
		}
	}
	return nil, auth.ErrUnknownIdentity
}

type stubLedger struct {
	changes [][]inventory.StockChange
}

func (s *stubLedger) ApplyOrderStockChanges(_ context.Context, changes []inventory.StockChange) error {
	s.changes = append(s.changes, changes)
	return nil
}

type stubCheckoutLog struct {
	claims map[string]*order.Attempt
}

func (s *stubCheckoutLog) Claim(_ context.Context, key, cartID string) (*order.Attempt, bool, error) {
	if s.claims == nil {
		s.claims = map[string]*order.Attempt{}
	}
	if a, ok := s.claims[key]; ok && a.Status != order.AttemptFailed {
		return a, false, nil
	}
	a := &order.Attempt{Key: key, CartID: cartID, Status: order.AttemptStarted}
	s.claims[key] = a
	return a, true, nil
}

func (s *stubCheckoutLog) Complete(_ context.Context, key, orderID string) error {
	s.claims[key].Status = order.AttemptCompleted
	s.claims[key].OrderID = orderID
	return nil
}

func (s *stubCheckoutLog) Fail(_ context.Context, key string, cause error) error {
	s.claims[key].Status = order.AttemptFailed
	s.claims[key].LastError = cause.Error()
	return nil
}

const (
	testPepper  = "pepper"
	testSecret  = "whsec_test"
	userKey     = "key-user"
	managerKey  = "key-manager"
	testCartID  = "cart-1"
	testBuyerID = "user-1"
)

func keyHash(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	handler *Handler
	server  http.Handler

	products *stubCatalog
	orders   *stubOrders
	carts    *stubCarts
	ledger   *stubLedger
	log      *stubCheckoutLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &stubCatalog{pg: query.Pagination{CurrentPage: 1, PageSize: 50, TotalPages: 1}}
	categories := &stubCategories{}
	orders := &stubOrders{byID: map[string]*order.Order{}}
	carts := &stubCarts{snapshots: map[string]*cart.Snapshot{
		testCartID: {
			ID:     testCartID,
			UserID: testBuyerID,
			Items: []cart.LineItem{
				{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(40)},
			},
			TotalPrice: decimal.NewFromInt(80),
		},
	}}
	directory := &stubDirectory{identities: []*auth.Identity{
		{ID: testBuyerID, Email: "buyer@example.com", Role: auth.RoleUser, KeyHash: keyHash(userKey)},
		{ID: "mgr-1", Email: "manager@example.com", Role: auth.RoleManager, KeyHash: keyHash(managerKey)},
	}}
	ledger := &stubLedger{}
	checkoutLog := &stubCheckoutLog{}

	workflow := order.NewService(carts, directory, orders, ledger, checkoutLog, events.Nop{}, order.ServiceConfig{})

	h := New(
		Config{APIKeyPepper: []byte(testPepper)},
		products, categories, orders, workflow,
		payment.NewVerifier(testSecret),
		nil, // no Redis in unit tests: dedup fails open
		directory,
	)

	return &fixture{
		handler:  h,
		server:   h.Routes(),
		products: products,
		orders:   orders,
		carts:    carts,
		ledger:   ledger,
		log:      checkoutLog,
	}
}

func (f *fixture) do(t *testing.T, method, path, apiKey string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env), "body: %s", rec.Body.String())
	return rec, env
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)

	t.Run("missing key", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/products", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing API key", env.Message)
	})

	t.Run("unknown key", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/products", "not-a-key", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/products", userKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListEnvelope(t *testing.T) {
	f := newFixture(t)
	f.products.docs = []map[string]any{
		{"id": "p1", "title": "one"},
		{"id": "p2", "title": "two"},
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/products?page=1", userKey, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	require.NotNil(t, env.Results)
	assert.Equal(t, 2, *env.Results)
	require.NotNil(t, env.PaginationResult)
	assert.Equal(t, 1, env.PaginationResult.CurrentPage)
}

func TestListEnvelopeEmpty(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/products", userKey, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Results)
	assert.Equal(t, 0, *env.Results)
	// nil slice must surface as [], not null
	assert.IsType(t, []any{}, env.Data)
}

func TestListOrdersScoping(t *testing.T) {
	f := newFixture(t)

	t.Run("user scoped to own orders", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/orders", userKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.orders.scopes, 1)
		assert.Equal(t, "user_id", f.orders.scopes[0].Column)
		assert.Equal(t, testBuyerID, f.orders.scopes[0].Value)
	})

	t.Run("manager unscoped", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/orders", managerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.orders.scopes)
	})
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture(t)
	f.orders.byID["o1"] = &order.Order{ID: "o1", UserID: "someone-else"}
	f.orders.byID["o2"] = &order.Order{ID: "o2", UserID: testBuyerID}

	rec, _ := f.do(t, http.MethodGet, "/api/v1/orders/o1", userKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/orders/o2", userKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// managers see everything
	rec, _ = f.do(t, http.MethodGet, "/api/v1/orders/o1", managerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCashOrder(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/orders/"+testCartID, userKey, map[string]any{
		"shippingAddress": map[string]string{"city": "Cairo", "phone": "0100"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Order created", env.Message)
	require.Len(t, f.orders.created, 1)

	o := f.orders.created[0]
	assert.Equal(t, testBuyerID, o.UserID)
	assert.Equal(t, order.MethodCash, o.PaymentMethod)
	assert.False(t, o.IsPaid)
	assert.Equal(t, "Cairo", o.ShippingAddress.City)
	assert.Equal(t, []string{testCartID}, f.carts.deleted)
	require.Len(t, f.ledger.changes, 1)
	assert.Equal(t, []inventory.StockChange{{ProductID: "p1", Quantity: 2}}, f.ledger.changes[0])
}

func TestCreateCashOrderUnknownCart(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/orders/missing", userKey, map[string]any{})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, env.Message, "missing")
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	f.orders.byID["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}

	rec, _ := f.do(t, http.MethodPut, "/api/v1/orders/o1/status", managerKey, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusShipped, f.orders.byID["o1"].Status)

	rec, env := f.do(t, http.MethodPut, "/api/v1/orders/o1/status", managerKey, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "bogus")
}

func webhookBody(t *testing.T, eventID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": payment.EventCheckoutCompleted,
		"session": map[string]any{
			"cartReference":    testCartID,
			"payerEmail":       "buyer@example.com",
			"totalAmountMinor": 8000,
			"shippingAddress":  map[string]string{"city": "Giza"},
		},
	})
	require.NoError(t, err)
	return body
}

func postWebhook(t *testing.T, f *fixture, body []byte, header string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/checkout", bytes.NewReader(body))
	if header != "" {
		req.Header.Set(payment.SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec, env
}

func TestCheckoutWebhook(t *testing.T) {
	body := webhookBody(t, "evt_1")

	t.Run("valid delivery creates paid order", func(t *testing.T) {
		f := newFixture(t)
		rec, env := postWebhook(t, f, body, payment.Sign(testSecret, time.Now(), body))

		require.Equal(t, http.StatusOK, rec.Code, env.Message)
		require.Len(t, f.orders.created, 1)

		o := f.orders.created[0]
		assert.Equal(t, order.MethodCard, o.PaymentMethod)
		assert.True(t, o.IsPaid)
		assert.Equal(t, testBuyerID, o.UserID)
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, "Giza", o.ShippingAddress.City)
		assert.Equal(t, order.AttemptCompleted, f.log.claims["event:evt_1"].Status)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := postWebhook(t, f, body, "t=123,v1=deadbeef")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.orders.created)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := postWebhook(t, f, body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		f := newFixture(t)
		header := payment.Sign(testSecret, time.Now(), body)
		tampered := bytes.Replace(body, []byte("8000"), []byte("1"), 1)
		rec, _ := postWebhook(t, f, tampered, header)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("redelivery resolves to existing order", func(t *testing.T) {
		f := newFixture(t)
		postWebhook(t, f, body, payment.Sign(testSecret, time.Now(), body))
		rec, _ := postWebhook(t, f, body, payment.Sign(testSecret, time.Now(), body))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, f.orders.created, 1, "second delivery must not create another order")
	})

	t.Run("unrelated event type acknowledged", func(t *testing.T) {
		f := newFixture(t)
		other, err := json.Marshal(map[string]any{"id": "evt_2", "type": "invoice.created"})
		require.NoError(t, err)
		rec, _ := postWebhook(t, f, other, payment.Sign(testSecret, time.Now(), other))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.orders.created)
	})

	t.Run("unknown cart acknowledged without order", func(t *testing.T) {
		f := newFixture(t)
		delete(f.carts.snapshots, testCartID)
		rec, _ := postWebhook(t, f, body, payment.Sign(testSecret, time.Now(), body))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.orders.created)
	})

	t.Run("unknown buyer acknowledged without order", func(t *testing.T) {
		f := newFixture(t)
		unknown := bytes.Replace(body, []byte("buyer@example.com"), []byte("ghost@example.com"), 1)
		rec, _ := postWebhook(t, f, unknown, payment.Sign(testSecret, time.Now(), unknown))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.orders.created)
	})
}

func TestProductNotFound(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/products/missing", userKey, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, env.Message, "missing")
}

func TestImageURLRewrite(t *testing.T) {
	f := newFixture(t)
	f.handler.cfg.ImageBaseURL = "https://cdn.example.com"
	f.products.product = &catalog.Product{
		ID:         "p1",
		Title:      "tee",
		ImageCover: "covers/p1.webp",
		Images:     []string{"imgs/a.webp", "https://elsewhere.test/b.webp"},
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/products/p1", userKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Equal(t, "https://cdn.example.com/covers/p1.webp", p.ImageCover)
	assert.Equal(t, "https://cdn.example.com/imgs/a.webp", p.Images[0])
	assert.Equal(t, "https://elsewhere.test/b.webp", p.Images[1], "absolute URLs pass through")
}
