package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/auth"
	"github.com/davidahmann/checkout/internal/catalog"
	"github.com/davidahmann/checkout/internal/checkout"
	"github.com/davidahmann/checkout/internal/gateway"
	"github.com/davidahmann/checkout/internal/session"
	"github.com/davidahmann/checkout/internal/tax"
	"github.com/davidahmann/checkout/pkg/types"
)

type stubGateway struct {
	mu        sync.Mutex
	finalizes int

	createErr   error
	setupStatus gateway.SetupStatus
}

func (s *stubGateway) Name() string { return "stub" }

func (s *stubGateway) SelfAddressing(method string) bool { return method == "venmo" }

func (s *stubGateway) CreateIntent(context.Context, gateway.CreateRequest) (gateway.RemoteIntent, error) {
	if s.createErr != nil {
		return gateway.RemoteIntent{}, s.createErr
	}
	return gateway.RemoteIntent{
		ID:        "ORDER-1",
		Status:    gateway.StatusCreated,
		RawStatus: "PAYER_ACTION_REQUIRED",
		Links:     []gateway.Link{{Href: "https://approve.test/ORDER-1", Rel: "payer-action", Method: "GET"}},
	}, nil
}

func (s *stubGateway) AmendIntent(context.Context, string, gateway.AmendRequest) (gateway.AmendResult, error) {
	return gateway.AmendResult{}, nil
}

func (s *stubGateway) FinalizeIntent(_ context.Context, id string, _ gateway.FinalizeRequest) (gateway.Settlement, error) {
	s.mu.Lock()
	s.finalizes++
	s.mu.Unlock()
	return gateway.Settlement{
		ID:        id,
		Status:    gateway.StatusFinalized,
		RawStatus: "COMPLETED",
		Payer:     gateway.Payer{ID: "PAYER-1", Email: "buyer@example.com"},
		Captures: []gateway.Capture{{
			ID:           "CAP-1",
			Status:       "COMPLETED",
			Amount:       gateway.Money{Currency: "USD", Value: tax.Default().Total(catalogPrice(), "CA")},
			FinalCapture: true,
		}},
	}, nil
}

func (s *stubGateway) FetchIntent(context.Context, string) (gateway.RemoteIntent, error) {
	return gateway.RemoteIntent{}, gateway.ErrUnsupported
}

func (s *stubGateway) CreateSetupToken(context.Context, gateway.UsageContext) (gateway.SetupToken, error) {
	return gateway.SetupToken{
		ID:     "SETUP-1",
		Status: gateway.SetupPending,
		Links:  []gateway.Link{{Href: "https://approve.test/SETUP-1", Rel: "approve"}},
	}, nil
}

func (s *stubGateway) FetchSetupToken(_ context.Context, id string) (gateway.SetupToken, error) {
	return gateway.SetupToken{ID: id, Status: s.setupStatus}, nil
}

func (s *stubGateway) CreatePaymentToken(context.Context, string) (gateway.PaymentToken, error) {
	return gateway.PaymentToken{ID: "PT-1", CustomerID: "CUST-1"}, nil
}

func (s *stubGateway) ChargePaymentToken(context.Context, gateway.ChargeRequest) (gateway.Settlement, error) {
	return gateway.Settlement{ID: "ORDER-V", Status: gateway.StatusFinalized, RawStatus: "COMPLETED"}, nil
}

func catalogPrice() decimal.Decimal {
	p, _ := catalog.Demo().Lookup("sku1")
	return p.Price
}

type testServer struct {
	handler http.Handler
	gw      *stubGateway
	now     time.Time
}

func newTestServer(t *testing.T, withVault bool) *testServer {
	t.Helper()
	ts := &testServer{gw: &stubGateway{setupStatus: gateway.SetupPending}, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }

	orders := checkout.NewOrders(ts.gw, catalog.Demo(), tax.Default(), session.Guard{Budget: 3 * time.Hour})
	orders.Now = clock
	orders.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Handler{
		Auth:   auth.NewAuthenticator("test-token", "", "", ""),
		Orders: orders,
		Logger: orders.Logger,
	}
	if withVault {
		h.Vault = checkout.NewVault(ts.gw, orders.Store)
		h.Vault.Logger = orders.Logger
	}
	ts.handler = NewRouter(h)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer test-token")
	res := httptest.NewRecorder()
	ts.handler.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", res.Body.String(), err)
	}
	return out
}

func TestHealthzNoAuth(t *testing.T) {
	ts := newTestServer(t, false)
	res := httptest.NewRecorder()
	ts.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	ts := newTestServer(t, true)
	paths := []struct{ method, path string }{
		{http.MethodPost, "/v1/orders"},
		{http.MethodGet, "/v1/orders/ORDER-1"},
		{http.MethodPost, "/v1/orders/ORDER-1/finalize"},
		{http.MethodPost, "/v1/vault/setup-tokens"},
	}
	for _, p := range paths {
		res := httptest.NewRecorder()
		ts.handler.ServeHTTP(res, httptest.NewRequest(p.method, p.path, nil))
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s %s, got %d", p.method, p.path, res.Code)
		}
	}
}

func TestCreateOrderPricesFromCatalog(t *testing.T) {
	ts := newTestServer(t, false)
	res := ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "sku1", Region: "CA", Amount: "0.01"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	order := decodeBody[types.Order](t, res)
	want := types.Amounts{Currency: "USD", Subtotal: "1.00", Tax: "0.09", Total: "1.09"}
	if order.Amounts != want {
		t.Fatalf("unexpected amounts: %+v", order.Amounts)
	}
	if order.ID != "ORDER-1" || order.Status != "CREATED" || order.Processor != "stub" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.ApprovalURL != "https://approve.test/ORDER-1" {
		t.Fatalf("unexpected approval url: %q", order.ApprovalURL)
	}
	if order.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected created_at: %q", order.CreatedAt)
	}
}

func TestCreateOrderErrors(t *testing.T) {
	ts := newTestServer(t, false)

	res := ts.do(t, http.MethodPost, "/v1/orders", "{not json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", res.Code)
	}

	res = ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{
		ProductRef:         "sku1",
		ShippingPreference: "SET_PROVIDED_ADDRESS",
		Shipping:           &types.Address{Region: "CA"},
	})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if body := decodeBody[types.Error](t, res); body.Kind != "MISSING_ADDRESS" {
		t.Fatalf("unexpected kind: %+v", body)
	}

	res = ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "nope"})
	if body := decodeBody[types.Error](t, res); res.Code != http.StatusUnprocessableEntity || body.Kind != "UNKNOWN_PRODUCT" {
		t.Fatalf("unexpected response %d: %+v", res.Code, body)
	}
}

func TestCreateOrderRemoteErrorIsBadGateway(t *testing.T) {
	ts := newTestServer(t, false)
	ts.gw.createErr = &gateway.RemoteError{
		Processor:  "stub",
		Op:         "create_order",
		StatusCode: http.StatusUnprocessableEntity,
		Payload:    json.RawMessage(`{"name":"UNPROCESSABLE_ENTITY"}`),
	}
	res := ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "sku1"})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	body := decodeBody[types.Error](t, res)
	if body.Processor != "stub" || body.RemoteStatus != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if string(body.Payload) != `{"name":"UNPROCESSABLE_ENTITY"}` {
		t.Fatalf("payload not passed through: %s", body.Payload)
	}
}

func TestAmendOrderRecomputes(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "sku1", Region: "CA"})

	res := ts.do(t, http.MethodPost, "/v1/orders/ORDER-1/amend", types.AmendOrderRequest{Region: "TN"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	order := decodeBody[types.Order](t, res)
	if order.Amounts.Tax != "0.10" || order.Amounts.Total != "1.10" || order.Region != "TN" {
		t.Fatalf("unexpected amend result: %+v", order)
	}

	res = ts.do(t, http.MethodPost, "/v1/orders/ORDER-404/amend", types.AmendOrderRequest{Region: "TN"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestFinalizeOrderIsIdempotent(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "sku1", Region: "CA"})

	var first types.Settlement
	for i := 0; i < 2; i++ {
		res := ts.do(t, http.MethodPost, "/v1/orders/ORDER-1/finalize", nil)
		if res.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
		}
		s := decodeBody[types.Settlement](t, res)
		if i == 0 {
			first = s
			continue
		}
		if s.ID != first.ID || len(s.Captures) != 1 || s.Captures[0] != first.Captures[0] {
			t.Fatalf("second finalize differs: %+v vs %+v", s, first)
		}
	}
	if ts.gw.finalizes != 1 {
		t.Fatalf("expected one remote finalize, got %d", ts.gw.finalizes)
	}
	if first.Captures[0].Amount != "1.09" || first.Payer == nil || first.Payer.Email != "buyer@example.com" {
		t.Fatalf("unexpected settlement: %+v", first)
	}

	res := ts.do(t, http.MethodGet, "/v1/orders/ORDER-1", nil)
	order := decodeBody[types.Order](t, res)
	if order.Status != "FINALIZED" || order.Settlement == nil {
		t.Fatalf("unexpected order after finalize: %+v", order)
	}
}

func TestFinalizeOrderExpired(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/v1/orders", types.CreateOrderRequest{ProductRef: "sku1"})
	ts.now = ts.now.Add(3*time.Hour + time.Millisecond)

	res := ts.do(t, http.MethodPost, "/v1/orders/ORDER-1/finalize", types.FinalizeOrderRequest{})
	if res.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", res.Code)
	}
	body := decodeBody[types.Error](t, res)
	if body.BudgetMinutes != 180 || body.ElapsedMinutes <= 180 {
		t.Fatalf("unexpected expiry body: %+v", body)
	}
	if ts.gw.finalizes != 0 {
		t.Fatalf("expired finalize reached the processor")
	}
}

func TestGetOrderNotFound(t *testing.T) {
	ts := newTestServer(t, false)
	res := ts.do(t, http.MethodGet, "/v1/orders/ORDER-404", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestVaultRoutesWithoutVault(t *testing.T) {
	ts := newTestServer(t, false)
	res := ts.do(t, http.MethodPost, "/v1/vault/setup-tokens", nil)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestVaultFlow(t *testing.T) {
	ts := newTestServer(t, true)

	res := ts.do(t, http.MethodPost, "/v1/vault/setup-tokens", types.SetupTokenRequest{})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	st := decodeBody[types.SetupToken](t, res)
	if st.ID != "SETUP-1" || st.ApprovalURL != "https://approve.test/SETUP-1" {
		t.Fatalf("unexpected setup token: %+v", st)
	}

	res = ts.do(t, http.MethodPost, "/v1/vault/setup-tokens/SETUP-1/tokenize", nil)
	if body := decodeBody[types.Error](t, res); res.Code != http.StatusUnprocessableEntity || body.Kind != "SETUP_NOT_APPROVED" {
		t.Fatalf("unexpected response %d: %+v", res.Code, body)
	}

	ts.gw.setupStatus = gateway.SetupApproved
	res = ts.do(t, http.MethodPost, "/v1/vault/setup-tokens/SETUP-1/tokenize", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	pt := decodeBody[types.PaymentToken](t, res)
	if pt.ID != "PT-1" || pt.CustomerID != "CUST-1" {
		t.Fatalf("unexpected payment token: %+v", pt)
	}

	res = ts.do(t, http.MethodPost, "/v1/vault/payment-tokens/PT-1/charge", types.ChargeRequest{Amount: "abc"})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad amount, got %d", res.Code)
	}

	res = ts.do(t, http.MethodPost, "/v1/vault/payment-tokens/PT-1/charge", types.ChargeRequest{Amount: "12.50"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if s := decodeBody[types.Settlement](t, res); s.ID != "ORDER-V" || s.Status != "FINALIZED" {
		t.Fatalf("unexpected charge settlement: %+v", s)
	}
}

func TestErrorResponseHidesInternalErrors(t *testing.T) {
	status, body := errorResponse(io.ErrUnexpectedEOF)
	if status != http.StatusInternalServerError || body.Error != "internal error" {
		t.Fatalf("unexpected mapping: %d %+v", status, body)
	}
}

func TestErrorResponsePendingSettlement(t *testing.T) {
	status, body := errorResponse(&checkout.PendingError{IntentID: "PSP1", RawStatus: "Received"})
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if body.Error == "" || body.Error == "internal error" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
