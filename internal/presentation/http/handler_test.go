package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/limetech/storeledger/internal/application/ledger"
	domain "github.com/limetech/storeledger/internal/domain/catalog"
	domoutbox "github.com/limetech/storeledger/internal/domain/outbox"
	"github.com/limetech/storeledger/internal/infrastructure/audit"
	"github.com/limetech/storeledger/internal/infrastructure/chain"
	"github.com/limetech/storeledger/internal/infrastructure/identity"
	"github.com/limetech/storeledger/internal/infrastructure/memory"
	"github.com/limetech/storeledger/internal/infrastructure/treasury"
)

// syncBus publishes inline so trail projections are visible to the very next
// request, without the async dispatch loop.
type syncBus struct {
	handlers map[string][]domoutbox.Handler
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string][]domoutbox.Handler)}
}

func (b *syncBus) Subscribe(eventName string, h domoutbox.Handler) {
	b.handlers[eventName] = append(b.handlers[eventName], h)
}

func (b *syncBus) Publish(ctx context.Context, e domoutbox.Event) error {
	for _, h := range b.handlers[e.EventName()] {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type serverFixture struct {
	router http.Handler
	funds  *treasury.Memory
	clock  *chain.Clock
}

func newServer(t *testing.T) *serverFixture {
	t.Helper()
	bus := newSyncBus()
	funds := treasury.NewMemory()
	clock := chain.NewClock(1)
	svc := ledger.NewService(
		memory.NewCatalogRepository(),
		identity.NewStatic("admin"),
		clock,
		funds,
		bus,
		0,
		nil,
	)
	trail := audit.NewTrail(nil)
	trail.Start(bus)
	handler := NewHandler(svc, trail, nil, nil)
	return &serverFixture{router: handler.Router(), funds: funds, clock: clock}
}

func (f *serverFixture) do(t *testing.T, method, target, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if caller != "" {
		req.Header.Set(headerCaller, caller)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (f *serverFixture) addKeyboard(t *testing.T, quantity, price int) uint64 {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/products/add", "admin",
		`{"name":"Keyboard","quantity":`+strconv.Itoa(quantity)+`,"price":`+strconv.Itoa(price)+`}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add product: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp addProductResponse
	decodeBody(t, rec, &resp)
	return resp.ProductID
}

func TestAddProductEndpoint(t *testing.T) {
	f := newServer(t)

	rec := f.do(t, http.MethodPost, "/products/add", "admin", `{"name":"Keyboard","quantity":5,"price":10}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp addProductResponse
	decodeBody(t, rec, &resp)
	if resp.ProductID != 1 {
		t.Fatalf("expected product id 1, got %d", resp.ProductID)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected request id header to be set")
	}

	// non-admin caller
	rec = f.do(t, http.MethodPost, "/products/add", "alice", `{"name":"Monitor","quantity":1,"price":1}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	// missing caller header
	rec = f.do(t, http.MethodPost, "/products/add", "", `{"name":"Monitor","quantity":1,"price":1}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous caller, got %d", rec.Code)
	}
	// validation failures
	rec = f.do(t, http.MethodPost, "/products/add", "admin", `{"name":"","quantity":1,"price":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/add", "admin", `{"name":"Keyboard","quantity":1,"price":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rec.Code)
	}
	// malformed body
	rec = f.do(t, http.MethodPost, "/products/add", "admin", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	// wrong method
	rec = f.do(t, http.MethodGet, "/products/add", "admin", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestBuyEndpointStatusMapping(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 1, 10)
	f.funds.Deposit("alice", 100)
	f.funds.Deposit("bob", 100)

	rec := f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":99,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":1,"payment":9}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/products/buy", "bob", `{"product_id":1,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 out of stock, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/products/quantity", "admin", `{"product_id":1,"amount":5,"increase":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("restock: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 already owned, got %d", rec.Code)
	}
}

func TestReturnAndWithdrawEndpoints(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 5, 10)
	f.funds.Deposit("alice", 100)

	rec := f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":2,"payment":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/products/return", "bob", `{"product_id":1,"quantity":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner return, got %d", rec.Code)
	}

	f.clock.Advance(200)
	rec = f.do(t, http.MethodPost, "/products/return", "alice", `{"product_id":1,"quantity":2}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 warranty expired, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/products/withdraw", "alice", `{"product_id":1}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/withdraw", "admin", `{"product_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw: %d", rec.Code)
	}
	var resp withdrawResponse
	decodeBody(t, rec, &resp)
	if resp.Amount != 20 {
		t.Fatalf("expected amount 20, got %d", resp.Amount)
	}
}

func TestProductQueryEndpoints(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 5, 10)
	f.funds.Deposit("alice", 100)

	rec := f.do(t, http.MethodGet, "/product", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/product?id=99", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/product?id=1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view productView
	decodeBody(t, rec, &view)
	if view.Name != "Keyboard" || view.Quantity != 5 || view.UnitPrice != 10 {
		t.Fatalf("unexpected view: %+v", view)
	}

	rec = f.do(t, http.MethodGet, "/products", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var views []productView
	decodeBody(t, rec, &views)
	if len(views) != 1 || views[0].ProductID != 1 {
		t.Fatalf("unexpected list: %+v", views)
	}
}

func TestOwnersAndBuyersEndpoints(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 5, 10)
	f.funds.Deposit("alice", 100)

	rec := f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/return", "alice", `{"product_id":1,"quantity":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("return: %d", rec.Code)
	}

	// current owners are empty after the return
	rec = f.do(t, http.MethodGet, "/product/owners?id=1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owners: %d", rec.Code)
	}
	var owners ownersResponse
	decodeBody(t, rec, &owners)
	if len(owners.Owners) != 0 {
		t.Fatalf("expected no current owners, got %v", owners.Owners)
	}

	// the historical projection still remembers alice
	rec = f.do(t, http.MethodGet, "/product/buyers?id=1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("buyers: %d", rec.Code)
	}
	var buyers buyersResponse
	decodeBody(t, rec, &buyers)
	if len(buyers.Buyers) != 1 || buyers.Buyers[0] != domain.Address("alice") {
		t.Fatalf("unexpected buyers: %v", buyers.Buyers)
	}

	rec = f.do(t, http.MethodGet, "/product/buyers?id=99", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestRemoveProductEndpoint(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 5, 10)
	f.funds.Deposit("alice", 100)

	rec := f.do(t, http.MethodPost, "/products/buy", "alice", `{"product_id":1,"quantity":1,"payment":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/remove", "admin", `{"product_id":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 with active owners, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/products/return", "alice", `{"product_id":1,"quantity":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("return: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/products/remove", "admin", `{"product_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/product?id=1", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rec.Code)
	}
}

func TestPriceChangeEndpoint(t *testing.T) {
	f := newServer(t)
	f.addKeyboard(t, 5, 10)

	rec := f.do(t, http.MethodPost, "/products/price", "admin", `{"product_id":1,"price":25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("price change: %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/product?id=1", "", "")
	var view productView
	decodeBody(t, rec, &view)
	if view.UnitPrice != 25 {
		t.Fatalf("expected price 25, got %d", view.UnitPrice)
	}

	rec = f.do(t, http.MethodPost, "/products/price", "admin", `{"product_id":1,"price":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero price, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newServer(t)
	rec := f.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}
