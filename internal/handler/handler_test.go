package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderflow/internal/domain/auth"
	"github.com/xenking/orderflow/internal/domain/cart"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/pricing"
	"github.com/xenking/orderflow/pkg/health"
)

// memRepo is an in-memory order.Repository for handler tests. The mutex
// stands in for the store's unique indexes when tests hit it concurrently.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[string]*order.Order)}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return order.ErrIdempotencyConflict
		}
		if existing.Number == o.Number {
			return order.ErrNumberTaken
		}
	}
	clone := *o
	m.orders[o.ID] = &clone
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *memRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Number == number {
			clone := *o
			return &clone, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memRepo) FindByIdempotencyKey(_ context.Context, userID, key string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			clone := *o
			return &clone, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memRepo) List(_ context.Context, userID string, f order.ListFilter) (*order.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := &order.Page{}
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		page.Orders = append(page.Orders, *o)
		page.Total++
	}
	page.Pages = (page.Total + f.Limit - 1) / f.Limit
	return page, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return m.GetByID(ctx, id)
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, st order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = st
	return nil
}

func (m *memRepo) AppendTracking(_ context.Context, id string, st order.Status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Tracking = append(o.Tracking, order.TrackingEntry{Status: st, Message: message, CreatedAt: time.Now()})
	return nil
}

func (m *memRepo) EnqueueCartClear(context.Context, string, string) error { return nil }

type stubCart struct {
	snap *cart.Snapshot
	err  error
}

func (c *stubCart) Fetch(context.Context, string) (*cart.Snapshot, error) {
	return c.snap, c.err
}

func (c *stubCart) Clear(context.Context, string) error { return nil }

type stubDiscount struct{}

func (stubDiscount) Validate(_ context.Context, code string, _ decimal.Decimal) (*discount.Decision, error) {
	return &discount.Decision{Valid: false, Reason: "unknown code"}, nil
}

func (stubDiscount) Apply(context.Context, string, string, decimal.Decimal) error { return nil }

type stubNotifier struct{}

func (stubNotifier) OrderCreated(context.Context, string, string, decimal.Decimal) error { return nil }
func (stubNotifier) OrderStatusChanged(context.Context, string, string) error            { return nil }

// tokenMap resolves fixed tokens to identities.
type tokenMap map[string]*auth.Identity

func (t tokenMap) Verify(_ context.Context, token string) (*auth.Identity, error) {
	id, ok := t[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

func testTokens() tokenMap {
	return tokenMap{
		"user-token":  {UserID: "u1", Role: "customer"},
		"other-token": {UserID: "u2", Role: "customer"},
		"admin-token": {UserID: "a1", Role: auth.RoleAdmin},
	}
}

func defaultCart() *stubCart {
	return &stubCart{snap: &cart.Snapshot{
		Items: []cart.Item{{
			ProductID:   "p1",
			ProductName: "Widget",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("60.00"),
		}},
		Subtotal: decimal.RequireFromString("120.00"),
	}}
}

func newTestServer(t *testing.T, carts cart.Client) (*httptest.Server, *memRepo) {
	t.Helper()

	repo := newMemRepo()
	svc := order.NewService(repo, carts, stubDiscount{}, stubNotifier{}, pricing.Config{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.RequireFromString("100"),
		StandardShippingCost:  decimal.RequireFromString("10"),
	})

	hc := health.New()
	hc.SetReady(true)

	srv := httptest.NewServer(New(svc, testTokens(), hc).Routes())
	t.Cleanup(srv.Close)
	return srv, repo
}

func doRequest(t *testing.T, method, url, token, body string, extra map[string]string) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const validAddress = `{"shipping_address":{"full_name":"Jo Doe","line1":"1 Main St","city":"Springfield","postal_code":"12345","country":"US"}}`

func TestPlaceOrder(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotEmpty(t, got.ID)
	require.True(t, strings.HasPrefix(got.OrderNumber, "ORD-"))
	require.Equal(t, "pending", got.Status)
	require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("132.00")),
		"got total %s", got.TotalAmount)
	require.True(t, got.ShippingAmount.IsZero())
	require.Len(t, got.Tracking, 1)
}

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "", validAddress, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/orders", "bogus", validAddress, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	srv, _ := newTestServer(t, &stubCart{snap: &cart.Snapshot{}})

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "empty_cart", body.Code)
}

func TestPlaceOrder_CartServiceDown(t *testing.T) {
	srv, _ := newTestServer(t, &stubCart{err: cart.ErrUnavailable})

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPlaceOrder_MissingAddress(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", `{"shipping_address":{"city":"Springfield"}}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceOrder_IdempotentReplay(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var created orderDTO
	require.NoError(t, json.NewDecoder(first.Body).Decode(&created))

	second := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, headers)
	require.Equal(t, http.StatusOK, second.StatusCode)
	var replayed orderDTO
	require.NoError(t, json.NewDecoder(second.Body).Decode(&replayed))

	require.Equal(t, created.ID, replayed.ID)
	require.Equal(t, created.OrderNumber, replayed.OrderNumber)
}

func TestPlaceOrder_ConcurrentSameKey(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())
	headers := map[string]string{"Idempotency-Key": "key-race"}

	const racers = 2
	var wg sync.WaitGroup
	results := make([]orderDTO, racers)
	statuses := make([]int, racers)
	errs := make([]error, racers)
	wg.Add(racers)
	for i := range racers {
		go func() {
			defer wg.Done()
			resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, headers)
			statuses[i] = resp.StatusCode
			errs[i] = json.NewDecoder(resp.Body).Decode(&results[i])
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Exactly one request creates; the loser gets the winner's order back.
	created := 0
	for _, st := range statuses {
		if st == http.StatusCreated {
			created++
		} else {
			require.Equal(t, http.StatusOK, st)
		}
	}
	require.Equal(t, 1, created, "statuses = %v", statuses)
	require.Equal(t, results[0].ID, results[1].ID)
	require.Equal(t, results[0].OrderNumber, results[1].OrderNumber)
}

func TestGetOrder_ScopedToOwner(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	var created orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	own := doRequest(t, http.MethodGet, srv.URL+"/orders/"+created.ID, "user-token", "", nil)
	require.Equal(t, http.StatusOK, own.StatusCode)

	foreign := doRequest(t, http.MethodGet, srv.URL+"/orders/"+created.ID, "other-token", "", nil)
	require.Equal(t, http.StatusNotFound, foreign.StatusCode)
}

func TestListOrders(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/orders", "user-token", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page orderListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Orders, 1)

	resp = doRequest(t, http.MethodGet, srv.URL+"/orders?status=bogus", "user-token", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackOrder_PublicAndLimited(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	var created orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	// No token at all.
	track := doRequest(t, http.MethodGet, srv.URL+"/track/"+created.OrderNumber, "", "", nil)
	require.Equal(t, http.StatusOK, track.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(track.Body).Decode(&body))
	require.Contains(t, body, "order_number")
	require.Contains(t, body, "tracking")
	require.Contains(t, body, "total_amount")
	var total decimal.Decimal
	require.NoError(t, json.Unmarshal(body["total_amount"], &total))
	require.True(t, total.Equal(decimal.RequireFromString("132.00")), "got total %s", total)
	require.NotContains(t, body, "shipping_address")
	require.NotContains(t, body, "payment_method")

	missing := doRequest(t, http.MethodGet, srv.URL+"/track/ORD-NOPE", "", "", nil)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	var created orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	statusURL := srv.URL + "/orders/" + created.ID + "/status"

	forbidden := doRequest(t, http.MethodPatch, statusURL, "user-token", `{"status":"confirmed"}`, nil)
	require.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	ok := doRequest(t, http.MethodPatch, statusURL, "admin-token", `{"status":"confirmed"}`, nil)
	require.Equal(t, http.StatusOK, ok.StatusCode)

	done := doRequest(t, http.MethodPatch, statusURL, "admin-token", `{"status":"delivered"}`, nil)
	require.Equal(t, http.StatusOK, done.StatusCode)

	frozen := doRequest(t, http.MethodPatch, statusURL, "admin-token", `{"status":"shipped"}`, nil)
	require.Equal(t, http.StatusBadRequest, frozen.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	var created orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	cancelURL := srv.URL + "/orders/" + created.ID + "/cancel"

	foreign := doRequest(t, http.MethodPost, cancelURL, "other-token", "", nil)
	require.Equal(t, http.StatusNotFound, foreign.StatusCode)

	ok := doRequest(t, http.MethodPost, cancelURL, "user-token", "", nil)
	require.Equal(t, http.StatusOK, ok.StatusCode)

	// Already cancelled: terminal, cannot cancel again.
	again := doRequest(t, http.MethodPost, cancelURL, "user-token", "", nil)
	require.Equal(t, http.StatusBadRequest, again.StatusCode)
}

func TestCancelOrder_IllegalAfterProcessing(t *testing.T) {
	srv, repo := newTestServer(t, defaultCart())

	resp := doRequest(t, http.MethodPost, srv.URL+"/orders", "user-token", validAddress, nil)
	var created orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	repo.orders[created.ID].Status = order.StatusProcessing

	blocked := doRequest(t, http.MethodPost, srv.URL+"/orders/"+created.ID+"/cancel", "user-token", "", nil)
	require.Equal(t, http.StatusBadRequest, blocked.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(blocked.Body).Decode(&body))
	require.Equal(t, "illegal_cancellation", body.Code)
}

func TestHealthEndpointsArePublic(t *testing.T) {
	srv, _ := newTestServer(t, defaultCart())

	live := doRequest(t, http.MethodGet, srv.URL+"/livez", "", "", nil)
	require.Equal(t, http.StatusOK, live.StatusCode)

	ready := doRequest(t, http.MethodGet, srv.URL+"/readyz", "", "", nil)
	require.Equal(t, http.StatusOK, ready.StatusCode)
}
