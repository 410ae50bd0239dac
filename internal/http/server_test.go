package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/middleware/ratelimit"
	"ecomstudio/internal/services"
	"ecomstudio/internal/sheets/memory"
	"ecomstudio/internal/stats"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	gotNow time.Time
	report core.StatsReport
	err    error
}

func (f *fakeEngine) ComputeAll(_ context.Context, now time.Time) (core.StatsReport, error) {
	f.gotNow = now
	return f.report, f.err
}

type failingLedger struct{}

func (failingLedger) Record(context.Context, services.RecordRequest) (core.LedgerEvent, error) {
	return core.LedgerEvent{}, errors.New("disk full")
}

func (failingLedger) List(context.Context, time.Time, time.Time) ([]core.LedgerEvent, error) {
	return nil, errors.New("disk full")
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Format: "text", Output: &bytes.Buffer{}})
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	srv := NewServer(":0", deps)
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: failingLedger{}})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	notReady := newTestServer(t, Deps{
		Engine: &fakeEngine{},
		Ledger: failingLedger{},
		Ready:  func(context.Context) error { return errors.New("database is locked") },
	})
	rr := do(notReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: failingLedger{}})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", rr.Header())
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Fatalf("missing request id: %v", rr.Header())
	}
}

func TestStatsEndpoint(t *testing.T) {
	at := fixedNow.Add(-2 * time.Hour)
	store := memory.New(core.LedgerEvent{ID: "a", UserID: "u", OccurredAt: at, Amount: decimal.NewFromInt(-30)})
	engine := stats.NewEngine(store, stats.WithLogger(quietLogger().Logger))
	srv := newTestServer(t, Deps{Engine: engine, Ledger: services.NewLedgerService(store, nil)})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats?now=2024-06-15T12:00:00Z", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var body struct {
		Spend map[string]struct {
			Amount json.Number `json:"amount"`
			Trend  string      `json:"trend"`
		} `json:"spend"`
		Topup  map[string]json.RawMessage `json:"topup"`
		Failed []json.RawMessage          `json:"failed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, rr.Body.String())
	}
	if len(body.Spend) != 5 || len(body.Topup) != 5 {
		t.Fatalf("expected five periods per direction, got %s", rr.Body.String())
	}
	if body.Spend["daily"].Trend != "positive" {
		t.Fatalf("unexpected daily spend %+v", body.Spend["daily"])
	}
	if len(body.Failed) != 0 {
		t.Fatalf("nothing should fail: %s", rr.Body.String())
	}
}

func TestStatsEndpointErrors(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, Deps{Engine: engine, Ledger: failingLedger{}})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats?now=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad now, got %d", rr.Code)
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusOK || !engine.gotNow.Equal(fixedNow) {
		t.Fatalf("missing now should default to the clock: code=%d now=%v", rr.Code, engine.gotNow)
	}

	engine.err = core.ErrInvalidInstant
	rr = do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid instant, got %d", rr.Code)
	}

	engine.err = errors.New("boom")
	rr = do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestStatsEndpointPartialHeader(t *testing.T) {
	key := core.StatKey{Period: core.Daily, Direction: core.Spend}
	engine := &fakeEngine{report: core.StatsReport{Failed: []core.StatKey{key}}}
	srv := newTestServer(t, Deps{Engine: engine, Ledger: failingLedger{}})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Header().Get("X-Stats-Partial") != "true" {
		t.Fatalf("partial reports should be flagged: %v", rr.Header())
	}
}

func TestAdminToken(t *testing.T) {
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: failingLedger{}, AdminToken: "s3cret"})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	if rr := do(srv, req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}

	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rr.Code)
	}
}

func TestRecordLedger(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: services.NewLedgerService(store, nil)})

	t.Run("form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader("user_id=u1&amount=-12,5&description=render&occurred_at=2024-06-15T10:00:00Z"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := do(srv, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		var got ledgerEventResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Amount != "-12.50" || got.Direction != "spend" || got.ID == "" {
			t.Fatalf("unexpected response %+v", got)
		}
	})

	t.Run("json number amount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader(`{"user_id":"u2","amount":250}`))
		req.Header.Set("Content-Type", "application/json")
		rr := do(srv, req)
		if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"direction":"topup"`) {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("json string amount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader(`{"user_id":"u2","amount":"3.25"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		if rr := do(srv, req); rr.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	if store.Len() != 3 {
		t.Fatalf("expected 3 stored transactions, got %d", store.Len())
	}
}

func TestRecordLedgerErrors(t *testing.T) {
	tests := []struct {
		name        string
		ledger      Ledger
		contentType string
		body        string
		want        int
	}{
		{"zero amount", services.NewLedgerService(memory.New(), nil), "application/x-www-form-urlencoded", "user_id=u&amount=0", http.StatusUnprocessableEntity},
		{"missing user", services.NewLedgerService(memory.New(), nil), "application/x-www-form-urlencoded", "amount=5", http.StatusUnprocessableEntity},
		{"description too long", services.NewLedgerService(memory.New(), nil), "application/x-www-form-urlencoded", "user_id=u&amount=-5&description=" + strings.Repeat("x", 201), http.StatusUnprocessableEntity},
		{"bad occurred_at", services.NewLedgerService(memory.New(), nil), "application/x-www-form-urlencoded", "user_id=u&amount=5&occurred_at=today", http.StatusBadRequest},
		{"malformed json", services.NewLedgerService(memory.New(), nil), "application/json", `{"user_id":`, http.StatusBadRequest},
		{"unknown json field", services.NewLedgerService(memory.New(), nil), "application/json", `{"user_id":"u","amount":"1","currency":"EUR"}`, http.StatusBadRequest},
		{"store failure", failingLedger{}, "application/x-www-form-urlencoded", "user_id=u&amount=5", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: tt.ledger})
			req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := do(srv, req)
			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), `"error"`) {
				t.Fatalf("errors should use the JSON envelope: %s", rr.Body.String())
			}
		})
	}
}

func TestRecordLedgerRateLimited(t *testing.T) {
	srv := newTestServer(t, Deps{
		Engine:    &fakeEngine{},
		Ledger:    services.NewLedgerService(memory.New(), nil),
		RateLimit: ratelimit.Config{Requests: 1, Window: time.Minute},
	})
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/ledger", strings.NewReader("user_id=u&amount=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return do(srv, req).Code
	}
	if code := post(); code != http.StatusCreated {
		t.Fatalf("first write should pass, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second write should be limited, got %d", code)
	}
	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/ledger", nil)); rr.Code != http.StatusOK {
		t.Fatalf("reads are not rate limited, got %d", rr.Code)
	}
}

func TestListLedger(t *testing.T) {
	store := memory.New(
		core.LedgerEvent{ID: "in", UserID: "u", OccurredAt: fixedNow.Add(-time.Hour), Amount: decimal.NewFromInt(-5)},
		core.LedgerEvent{ID: "old", UserID: "u", OccurredAt: fixedNow.Add(-72 * time.Hour), Amount: decimal.NewFromInt(7)},
	)
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: services.NewLedgerService(store, nil)})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/ledger", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var body struct {
		Transactions []ledgerEventResponse `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transactions) != 1 || body.Transactions[0].ID != "in" {
		t.Fatalf("default range is the last day, got %+v", body.Transactions)
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/ledger?from=2024-06-01T00:00:00Z&to=2024-06-15T12:00:00Z", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || len(body.Transactions) != 2 {
		t.Fatalf("expected both transactions, got %s", rr.Body.String())
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/ledger?from=2024-06-16T00:00:00Z&to=2024-06-15T00:00:00Z", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed range, got %d", rr.Code)
	}

	failing := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: failingLedger{}})
	if rr := do(failing, httptest.NewRequest(http.MethodGet, "/ledger", nil)); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Deps{Engine: &fakeEngine{}, Ledger: failingLedger{}})
	if rr := do(srv, httptest.NewRequest(http.MethodDelete, "/ledger", nil)); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
