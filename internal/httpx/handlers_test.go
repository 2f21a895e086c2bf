package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/ariefcatur/go-shop-orders/internal/describe"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func ptr[T any](v T) *T { return &v }

type fakeCache struct {
	mu          sync.Mutex
	orders      map[int64]orders.Order
	loads       int
	invalidated []int64
}

func (c *fakeCache) Get(ctx context.Context, id int64, load func(context.Context) (orders.Order, error)) (orders.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.orders[id]; ok {
		return o, nil
	}
	o, err := load(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	c.loads++
	c.orders[id] = o
	return o, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type idemEntry struct {
	orderID     int64 // 0 while pending
	fingerprint string
}

type fakeIdem struct {
	mu   sync.Mutex
	keys map[string]idemEntry
	hold bool // Complete leaves keys pending
}

func (f *fakeIdem) Begin(_ context.Context, key, fingerprint string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.keys[key]
	switch {
	case !ok:
		f.keys[key] = idemEntry{fingerprint: fingerprint}
		return 0, nil
	case e.fingerprint != fingerprint:
		return 0, redisx.ErrKeyReused
	case e.orderID == 0:
		return 0, redisx.ErrInProgress
	default:
		return e.orderID, nil
	}
}

func (f *fakeIdem) Complete(_ context.Context, key, fingerprint string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold {
		return nil
	}
	f.keys[key] = idemEntry{orderID: orderID, fingerprint: fingerprint}
	return nil
}

func (f *fakeIdem) Abort(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

type fakeDescriber struct {
	html     string
	err      error
	deadline time.Time
}

func (d *fakeDescriber) Describe(ctx context.Context, p catalog.Product) (string, error) {
	d.deadline, _ = ctx.Deadline()
	if d.err != nil {
		return "", d.err
	}
	return fmt.Sprintf(d.html, p.Name), nil
}

type fixture struct {
	router    http.Handler
	store     *memstore.Store
	jwt       *auth.JWTManager
	cache     *fakeCache
	idem      *fakeIdem
	describer *fakeDescriber
	pen       catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	st := memstore.New()
	require.NoError(t, st.SeedCategories(ctx, []string{"Office", "Toys"}))
	cat := catalog.NewService(st)
	pen, err := cat.CreateProduct(ctx, catalog.ProductInput{
		Name: "Pen", Description: "Blue ink", UnitPrice: ptr(decimal.RequireFromString("2.50")), Weight: ptr(0.01), CategoryID: 1,
	})
	require.NoError(t, err)

	jwtm := auth.NewJWTManager(auth.JWTConfig{SecretKey: "test-secret", TTL: time.Hour, Issuer: "test"})
	authSvc := auth.NewService(st, auth.NewPasswordHasher(bcrypt.MinCost), jwtm)
	require.NoError(t, authSvc.EnsureUser(ctx, "admin", "pw", auth.RoleEmployee))
	require.NoError(t, authSvc.EnsureUser(ctx, "jane", "pw", auth.RoleCustomer))
	require.NoError(t, authSvc.EnsureUser(ctx, "mark", "pw", auth.RoleCustomer))

	f := &fixture{
		store:     st,
		jwt:       jwtm,
		cache:     &fakeCache{orders: map[int64]orders.Order{}},
		idem:      &fakeIdem{keys: map[string]idemEntry{}},
		describer: &fakeDescriber{html: "<h1>%s</h1>"},
		pen:       pen,
	}

	ordersSvc := orders.NewService(st, cat, orders.WithOwnershipCheck(true), orders.WithLogger(log))
	authn := &httpx.Authenticator{Auth: authSvc, Log: log}
	router := httpx.NewRouter(log, nil)
	(&httpx.AuthHandler{Auth: authSvc, Authenticator: authn, Log: log}).Register(router)
	(&httpx.OrdersHandler{Orders: ordersSvc, Authenticator: authn, Cache: f.cache, Idem: f.idem, Log: log}).Register(router)
	(&httpx.CatalogHandler{Catalog: cat, Describer: f.describer, Authenticator: authn, Log: log}).Register(router)
	f.router = router
	return f
}

func (f *fixture) request(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return f.request(t, req, token)
}

func (f *fixture) login(t *testing.T, login string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/login", "", auth.LoginRequest{Login: login, Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *fixture) orderBody(username string) map[string]any {
	return map[string]any{
		"username":     username,
		"email":        username + "@example.com",
		"phone_number": "+48 600-700-800",
		"items":        []map[string]any{{"productId": f.pen.ID, "amount": 4}},
	}
}

func (f *fixture) createOrder(t *testing.T, username string) orders.Order {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/orders", "", f.orderBody(username))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeOrder(t, rec)
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) orders.Order {
	t.Helper()
	var resp httpx.OrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Order
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t, "jane")
	assert.NotZero(t, o.ID)
	assert.Equal(t, orders.StatusUnconfirmed, o.Status)
	assert.Nil(t, o.ConfirmationDate)
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, 4, o.LineItems[0].Amount)
	assert.True(t, o.LineItems[0].UnitPrice.Equal(decimal.RequireFromString("2.5")))

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", o.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, o.ID, decodeOrder(t, rec).ID)

	rec = f.do(t, http.MethodGet, "/orders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Orders []orders.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Orders, 1)
}

func TestCreateOrderErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		mutate  func(map[string]any)
		status  int
		code    string
		message string
	}{
		{"bad email", func(b map[string]any) { b["email"] = "nope" }, http.StatusBadRequest, "validation_error", "invalid email address"},
		{"bad phone", func(b map[string]any) { b["phone_number"] = "call me" }, http.StatusBadRequest, "validation_error", "invalid phone number"},
		{"no items", func(b map[string]any) { b["items"] = []any{} }, http.StatusBadRequest, "validation_error",
			"missing required fields: username, email, phone_number, items"},
		{"unknown product", func(b map[string]any) { b["items"] = []map[string]any{{"productId": 999, "amount": 1}} },
			http.StatusNotFound, "not_found", "product id=999 not found"},
		{"unknown status", func(b map[string]any) { b["statusId"] = 9 }, http.StatusNotFound, "not_found", "status id=9 not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := f.orderBody("jane")
			tc.mutate(body)
			rec := f.do(t, http.MethodPost, "/orders", "", body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			e := decodeError(t, rec)
			assert.Equal(t, tc.code, e.Error)
			assert.Equal(t, tc.message, e.Message)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/orders", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	post := func() *httptest.ResponseRecorder {
		raw, err := json.Marshal(f.orderBody("jane"))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
		req.Header.Set("Idempotency-Key", "abc-123")
		return f.request(t, req, "")
	}

	first := post()
	require.Equal(t, http.StatusCreated, first.Code)
	created := decodeOrder(t, first)

	second := post()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, created.ID, decodeOrder(t, second).ID)

	all, err := f.store.Orders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	t.Run("in flight", func(t *testing.T) {
		f.idem.hold = true
		defer func() { f.idem.hold = false }()

		post := func() int {
			raw, err := json.Marshal(f.orderBody("mark"))
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
			req.Header.Set("Idempotency-Key", "busy")
			return f.request(t, req, "").Code
		}
		require.Equal(t, http.StatusCreated, post())
		assert.Equal(t, http.StatusConflict, post())
	})

	t.Run("same key with another body", func(t *testing.T) {
		body := f.orderBody("jane")
		body["items"] = []map[string]any{{"productId": f.pen.ID, "amount": 9}}
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
		req.Header.Set("Idempotency-Key", "abc-123")
		rec := f.request(t, req, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "idempotency_key_reused", decodeError(t, rec).Error)

		all, err := f.store.Orders(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 2, "only the first order and the in-flight one exist")
	})

	t.Run("failed create releases the key", func(t *testing.T) {
		body := f.orderBody("jane")
		body["email"] = "broken"
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
		req.Header.Set("Idempotency-Key", "retry-me")
		rec := f.request(t, req, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, held := f.idem.keys["retry-me"]
		assert.False(t, held)
	})
}

func TestUpdateStatusUnknownIDKeepsMetricLabelsBounded(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "jane")
	admin := f.login(t, "admin")

	rec := f.do(t, http.MethodPut, fmt.Sprintf("/orders/%d", o.ID), admin, map[string]any{"statusId": 98765})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shop_orders_status_transitions_total{result="not_found",to="unknown"}`)
	assert.NotContains(t, rec.Body.String(), `to="98765"`)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "jane")
	path := fmt.Sprintf("/orders/%d", o.ID)
	admin := f.login(t, "admin")

	t.Run("requires a token", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, path, "", map[string]any{"statusId": 3})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires an employee", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, path, f.login(t, "jane"), map[string]any{"statusId": 3})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	// warm the cache so the update has something to drop
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, "", nil).Code)

	rec := f.do(t, http.MethodPut, path, admin, map[string]any{"statusId": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeOrder(t, rec)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)
	assert.NotNil(t, updated.ConfirmationDate)
	assert.Contains(t, f.cache.invalidated, o.ID)

	rec = f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusConfirmed, decodeOrder(t, rec).Status)

	rec = f.do(t, http.MethodPut, path, admin, map[string]any{"statusId": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, rec).Error)
	assert.Equal(t, "cannot change status from CONFIRMED to UNCONFIRMED", decodeError(t, rec).Message)

	rec = f.do(t, http.MethodPut, path, admin, map[string]any{"statusId": 42})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/orders/777", admin, map[string]any{"statusId": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, path, admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders/status/3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Orders []orders.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Orders, 1)
	assert.Equal(t, o.ID, list.Orders[0].ID)
}

func TestAddOpinion(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "jane")
	path := fmt.Sprintf("/orders/%d/opinions", o.ID)
	jane := f.login(t, "jane")
	body := map[string]any{"rating": 5, "content": "Great pen"}

	rec := f.do(t, http.MethodPost, path, "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, path, jane, body)
	require.Equal(t, http.StatusConflict, rec.Code, "unconfirmed orders take no opinion")
	assert.Nil(t, decodeError(t, rec).Opinion)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/orders/%d", o.ID), f.login(t, "admin"), map[string]any{"statusId": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, path, f.login(t, "mark"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path, jane, map[string]any{"rating": 6, "content": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rating must be an integer between 1 and 5", decodeError(t, rec).Message)

	rec = f.do(t, http.MethodPost, path, jane, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Opinion orders.Opinion `json:"opinion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 5, created.Opinion.Rating)
	assert.Equal(t, o.ID, created.Opinion.OrderID)

	rec = f.do(t, http.MethodPost, path, jane, map[string]any{"rating": 1, "content": "Changed my mind"})
	require.Equal(t, http.StatusConflict, rec.Code)
	e := decodeError(t, rec)
	require.NotNil(t, e.Opinion)
	assert.Equal(t, created.Opinion.ID, e.Opinion.ID)
	assert.Equal(t, "Great pen", e.Opinion.Content)
}

func TestStatuses(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Statuses []orders.Status `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orders.AllStatuses(), resp.Statuses)
}

func TestAuthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/login", "", auth.LoginRequest{Login: "jane", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login(t, "jane")
	rec = f.do(t, http.MethodPost, "/refresh-token", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	rec = f.do(t, http.MethodPost, "/refresh-token", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeError(t, rec).Message)

	expired, err := auth.NewJWTManager(auth.JWTConfig{SecretKey: "test-secret", TTL: -time.Minute}).
		Generate(auth.Identity{UserID: 2, Login: "jane", Role: auth.RoleCustomer})
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, "/refresh-token", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token has expired", decodeError(t, rec).Message)
}

func TestRequireRoleReadsCurrentUser(t *testing.T) {
	f := newFixture(t)

	ghost, err := f.jwt.Generate(auth.Identity{UserID: 999, Login: "ghost", Role: auth.RoleEmployee})
	require.NoError(t, err)
	rec := f.do(t, http.MethodPut, "/orders/1", ghost, map[string]any{"statusId": 2})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user no longer exists", decodeError(t, rec).Message)

	// a customer whose token claims EMPLOYEE is still refused
	u, err := f.store.UserByLogin(context.Background(), "jane")
	require.NoError(t, err)
	forged, err := f.jwt.Generate(auth.Identity{UserID: u.ID, Login: "jane", Role: auth.RoleEmployee})
	require.NoError(t, err)
	rec = f.do(t, http.MethodPut, "/orders/1", forged, map[string]any{"statusId": 2})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin")
	body := map[string]any{"name": "Robot", "description": "Beeps", "unit_price": 49.99, "weight": 1.2, "categoryId": 2}

	rec := f.do(t, http.MethodPost, "/products", f.login(t, "jane"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/products", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Product catalog.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Toys", created.Product.Category.Name)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/products/%d", created.Product.ID), admin, map[string]any{"unit_price": 39.99})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Product catalog.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Product.UnitPrice.Equal(decimal.RequireFromString("39.99")))
	assert.Equal(t, "Robot", updated.Product.Name)

	rec = f.do(t, http.MethodPost, "/products", admin, map[string]any{"name": "Half"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Products, 2)

	rec = f.do(t, http.MethodGet, "/products/0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/products/500", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Office"`)
}

func TestSeoDescription(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/products/%d/seo-description", f.pen.ID)

	rec := f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>Pen</h1>", rec.Body.String())
	require.False(t, f.describer.deadline.IsZero(), "generator runs under the request deadline")
	assert.False(t, f.describer.deadline.After(time.Now().Add(httpx.RequestTimeout)))

	f.describer.err = fmt.Errorf("%w: status 503", describe.ErrUpstream)
	rec = f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodGet, "/products/404/seo-description", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitProducts(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin")

	upload := func(content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "products.json")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/init", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return f.request(t, req, admin)
	}

	// the fixture product already exists, so the catalog is not empty
	rec := upload(`{"products": [{"name": "a", "description": "b", "unit_price": 1, "weight": 1, "category": 1}]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "products already exist in database", decodeError(t, rec).Message)

	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = f.request(t, req, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := httpx.NewRouter(logrus.NewEntry(logger), httpx.NewRateLimiter(1, 2, logrus.NewEntry(logger)))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("192.0.2.1:1000"))
	assert.Equal(t, http.StatusOK, hit("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, hit("192.0.2.1:1002"))
	assert.Equal(t, http.StatusOK, hit("192.0.2.2:1000"), "buckets are per client")
}
