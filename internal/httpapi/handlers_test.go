package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
	"zenith/backoffice/internal/service"
	"zenith/backoffice/internal/store/memory"
)

const testMasterPassword = "master-pass-123"

type stubQuotes struct {
	value decimal.Decimal
	err   error
}

func (s *stubQuotes) Quote(_ context.Context) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.value, nil
}

func (s *stubQuotes) Snapshot(ctx context.Context) (domain.QuoteSnapshot, error) {
	v, err := s.Quote(ctx)
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}
	return domain.QuoteSnapshot{Value: v, Source: "stub", FetchedAt: time.Now().UTC()}, nil
}

type testEnv struct {
	api    *API
	repo   *memory.Store
	quotes *stubQuotes
}

// newTestEnv builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("MASTER_PASSWORD", testMasterPassword)

	repo := memory.NewSeeded()
	quotes := &stubQuotes{value: decimal.RequireFromString("5.5")}
	engine := pricing.NewEngine(pricing.DefaultConfig(), quotes)
	svc := service.New(repo, engine, quotes, nil, 4)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return &testEnv{api: New(svc, auth, "*", false), repo: repo, quotes: quotes}
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestEnv(t).api
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func doJSON(t *testing.T, api *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, api *API, login, password string) string {
	t.Helper()
	rec := doJSON(t, api, http.MethodPost, "/api/login", "", domain.LoginRequest{Login: login, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d (body: %s)", login, rec.Code, rec.Body.String())
	}
	var payload domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return loginAs(t, api, "admin", testMasterPassword)
}

func loginAsManager(t *testing.T, env *testEnv) string {
	t.Helper()
	_, err := env.repo.UpsertAccount(context.Background(), domain.AuthAccount{
		Login:        "carla@zenith.local",
		Email:        "carla@zenith.local",
		PasswordHash: mustHashPassword(t, "carla-pass"),
		Role:         "gerente",
	})
	if err != nil {
		t.Fatalf("seed manager account: %v", err)
	}
	return loginAs(t, env.api, "carla@zenith.local", "carla-pass")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}

	db := doJSON(t, api, http.MethodGet, "/api/health", "", nil)
	if db.Code != http.StatusOK || !strings.Contains(db.Body.String(), "connected") {
		t.Fatalf("expected connected database, got %d %s", db.Code, db.Body.String())
	}
}

func TestHandleLogin_SetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/login", "", domain.LoginRequest{Login: "admin@zenith.local", Password: testMasterPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.Login != "admin" {
		t.Fatalf("unexpected login response %+v", resp)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil || !session.HttpOnly || session.Value != resp.AccessToken {
		t.Fatalf("expected HttpOnly session cookie carrying the token, got %+v", session)
	}
}

func TestHandleLogin_Failures(t *testing.T) {
	api := newTestAPI(t)

	if rec := doJSON(t, api, http.MethodPost, "/api/login", "", domain.LoginRequest{Login: "admin", Password: "nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	if rec := doJSON(t, api, http.MethodPost, "/api/login", "", domain.LoginRequest{Login: "admin"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestOrdersRequireAuthentication(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodGet, "/api/orders", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestCreateAndListOrders(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/orders", token, map[string]any{
		"customer":   "Ana",
		"seller_id":  2,
		"service_id": 6,
		"quantity":   "2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if !created.Price.Equal(decimal.NewFromInt(1000)) || !created.CommissionValue.Equal(decimal.NewFromInt(85)) {
		t.Fatalf("unexpected financials price=%s commission=%s", created.Price, created.CommissionValue)
	}

	list := doJSON(t, api, http.MethodGet, "/api/orders", token, nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var payload struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := json.NewDecoder(list.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Orders) != 1 || payload.Orders[0].ID != created.ID {
		t.Fatalf("expected the created order in the listing, got %+v", payload.Orders)
	}
}

func TestCreateRemessaOrderReturns503WhenQuoteUnavailable(t *testing.T) {
	env := newTestEnv(t)
	token := loginAsAdmin(t, env.api)
	env.quotes.err = pricing.ErrQuoteUnavailable

	rec := doJSON(t, env.api, http.MethodPost, "/api/orders", token, map[string]any{
		"customer":   "Bruno",
		"service_id": 4,
		"quantity":   6000,
		"unit_price": "5,70",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "quote unavailable") {
		t.Fatalf("expected quote unavailable message, got %s", rec.Body.String())
	}

	quote := doJSON(t, env.api, http.MethodGet, "/api/quote", token, nil)
	if quote.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for current quote, got %d", quote.Code)
	}
}

func TestManagerRoleRestrictions(t *testing.T) {
	env := newTestEnv(t)
	admin := loginAsAdmin(t, env.api)
	manager := loginAsManager(t, env)

	rec := doJSON(t, env.api, http.MethodPost, "/api/orders", manager, map[string]any{
		"customer":   "Caio",
		"service_id": 7,
		"quantity":   1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected manager to create orders, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var order domain.Order
	_ = json.NewDecoder(rec.Body).Decode(&order)
	path := "/api/orders/" + strconv.FormatInt(order.ID, 10)

	if rec := doJSON(t, env.api, http.MethodPatch, path+"/status", manager, domain.OrderStatusRequest{Status: "closed"}); rec.Code != http.StatusOK {
		t.Fatalf("expected manager to update status, got %d", rec.Code)
	}
	if rec := doJSON(t, env.api, http.MethodDelete, path, manager, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager delete, got %d", rec.Code)
	}
	if rec := doJSON(t, env.api, http.MethodPatch, path+"/commission", manager, domain.CommissionPaidRequest{CommissionPaid: true}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager commission update, got %d", rec.Code)
	}
	if rec := doJSON(t, env.api, http.MethodPost, "/api/users", manager, map[string]any{"name": "X"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager user create, got %d", rec.Code)
	}

	if rec := doJSON(t, env.api, http.MethodPatch, path+"/commission", admin, domain.CommissionPaidRequest{CommissionPaid: true}); rec.Code != http.StatusOK {
		t.Fatalf("expected admin commission update, got %d", rec.Code)
	}
	if rec := doJSON(t, env.api, http.MethodDelete, path, admin, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin delete, got %d", rec.Code)
	}
	if rec := doJSON(t, env.api, http.MethodDelete, path, admin, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for second delete, got %d", rec.Code)
	}
}

func TestAssignmentDuplicateReturns200(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/assignments", token, domain.AssignmentRequest{UserID: 2, ServiceID: 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing assignment, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/assignments", token, domain.AssignmentRequest{UserID: 3, ServiceID: 4})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for new assignment, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/assignments", token, domain.AssignmentRequest{UserID: 99, ServiceID: 4})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestInvalidInputReturns400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	if rec := doJSON(t, api, http.MethodPatch, "/api/orders/abc", token, map[string]any{"customer": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := doJSON(t, api, http.MethodPost, "/api/services", token, map[string]any{"name": "Cambio", "cost_type": "misto"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown cost type, got %d", rec.Code)
	}
	if rec := doJSON(t, api, http.MethodPost, "/api/orders", token, map[string]any{"customer": "Ana", "unexpected": true}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDashboardAndRecalculate(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	if rec := doJSON(t, api, http.MethodPost, "/api/orders", token, map[string]any{"customer": "Dora", "seller_id": 3, "service_id": 7, "quantity": 1}); rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d", rec.Code)
	}

	rec := doJSON(t, api, http.MethodPost, "/api/orders/recalculate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for recalculate, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var recalc domain.RecalculateResponse
	_ = json.NewDecoder(rec.Body).Decode(&recalc)
	if recalc.Total != 1 || recalc.Updated != 0 {
		t.Fatalf("expected nothing to change, got %+v", recalc)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dashboard, got %d", rec.Code)
	}
	var summary domain.DashboardSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if summary.Orders != 1 || !summary.CommissionUnpaid.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected dashboard %+v", summary)
	}

	logs := doJSON(t, api, http.MethodGet, "/api/audit-logs?limit=10&date="+time.Now().UTC().Format(domain.DateLayout), token, nil)
	if logs.Code != http.StatusOK || !strings.Contains(logs.Body.String(), "order_create") {
		t.Fatalf("expected audit log with order_create, got %d %s", logs.Code, logs.Body.String())
	}
}
