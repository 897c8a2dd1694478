package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"futures-core/internal/depth"
	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/market"
	"futures-core/internal/monitor"
	"futures-core/internal/risk"
	"futures-core/internal/scheduler"
	"futures-core/internal/signal"
	"futures-core/internal/strategy"
	"futures-core/pkg/db"
)

type stubPrices struct{ price float64 }

func (s *stubPrices) LatestPrice(context.Context, string) float64 { return s.price }

type stubBroker struct{}

func (stubBroker) OpenOrder(ctx context.Context, symbol, side string, size float64) (market.OrderResult, error) {
	return market.OrderResult{OrderID: "ord-1", EntryPrice: 100}, nil
}
func (stubBroker) ClosePosition(context.Context, string) error { return nil }
func (stubBroker) Balance(context.Context) (market.BrokerBalance, error) {
	return market.BrokerBalance{}, nil
}

type stubBooks struct{}

func (stubBooks) FetchOrderBook(_ context.Context, pair string, _ int) (depth.Book, error) {
	return depth.Book{
		Pair:      pair,
		Timestamp: time.Now().UnixMilli(),
		Bids: []depth.Level{
			{Price: 99.9, Quantity: 10},
			{Price: 99.8, Quantity: 12},
		},
		Asks: []depth.Level{
			{Price: 100.1, Quantity: 9},
			{Price: 100.2, Quantity: 11},
		},
	}, nil
}

type stubSignals struct{}

func (stubSignals) Generate(ctx context.Context, tenantID, pair string) signal.Record {
	return signal.Record{
		TenantID: tenantID,
		Signal:   strategy.Signal{Pair: pair, Action: strategy.ActionFlat},
	}
}

type testEnv struct {
	server *Server
	tenant string
	token  string
	ledger *ledger.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	registry := strategy.NewRegistry()
	ledgers := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})

	tenant := "tenant-1"
	led := ledgers.GetOrCreate(tenant)
	prices := &stubPrices{price: 100}
	riskCfg := risk.DefaultConfig()
	mon := monitor.New(tenant, prices, stubBroker{}, led, stubSignals{}, riskCfg)
	sched := scheduler.New(tenant, scheduler.DefaultConfig(), riskCfg, led, mon, stubSignals{}, stubBroker{}, nil)

	secret := "test-secret"
	token, err := GenerateToken(tenant, secret, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	server := NewServer(events.NewBus(), database.Queries(), registry, ledgers,
		map[string]*TenantRuntime{tenant: {Scheduler: sched, Monitor: mon}},
		depth.NewAnalyzer(stubBooks{}, 50),
		SystemMeta{Symbols: []string{"B-BTC_USDT"}, ScanInterval: time.Minute, Version: "test"},
		secret)

	return &testEnv{server: server, tenant: tenant, token: token, ledger: led}
}

func (e *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestShortClientRequestIDIsHandled(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want %q", got, "abc")
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"] != "MISSING_TOKEN" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestProtectedRoutesRejectBadToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGetWallet(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/wallet", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	wallet, ok := body["wallet"].(map[string]any)
	if !ok {
		t.Fatalf("no wallet in %v", body)
	}
	if wallet["balance"].(float64) != 1000 {
		t.Errorf("balance = %v, want 1000", wallet["balance"])
	}
}

func TestGetPositionsReflectsLedger(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.ledger.Open(ledger.OpenRequest{
		Pair: "B-BTC_USDT", Side: ledger.Long, EntryPrice: 100,
		Size: 2, Leverage: 5, Margin: 40,
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	w := env.request(t, http.MethodGet, "/api/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	positions := body["positions"].([]any)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
}

func TestClosePositionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pos, err := env.ledger.Open(ledger.OpenRequest{
		Pair: "B-BTC_USDT", Side: ledger.Long, EntryPrice: 100,
		Size: 2, Leverage: 5, Margin: 40,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	w := env.request(t, http.MethodPost, "/api/positions/"+pos.ID+"/close", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if env.ledger.OpenCount() != 0 {
		t.Error("position still open after close endpoint")
	}
}

func TestClosePositionUnknownIDFails(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/api/positions/nope/close", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestStrategiesListAndSwitch(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/strategies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	available := body["available"].([]any)
	if len(available) < 4 {
		t.Errorf("available = %v, want the built-in set", available)
	}

	w = env.request(t, http.MethodPut, "/api/strategy",
		`{"strategy_id":"macd","params":{"min_strength":0.7}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("switch status = %d: %s", w.Code, w.Body.String())
	}

	row, err := env.server.Queries.GetStrategyConfig(context.Background(), env.tenant)
	if err != nil {
		t.Fatalf("persisted selection: %v", err)
	}
	if row.StrategyID != "macd" {
		t.Errorf("persisted strategy = %q, want macd", row.StrategyID)
	}

	w = env.request(t, http.MethodPut, "/api/strategy", `{"strategy_id":"does_not_exist"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown strategy status = %d, want 422", w.Code)
	}
}

func TestGetSignalsFromHistory(t *testing.T) {
	env := newTestEnv(t)
	err := env.server.Queries.InsertSignal(context.Background(), db.SignalRow{
		TenantID: env.tenant, Pair: "B-BTC_USDT", Strategy: "combined",
		Action: "long", Strength: 0.8, Price: 100,
	})
	if err != nil {
		t.Fatalf("insert signal: %v", err)
	}

	w := env.request(t, http.MethodGet, "/api/signals?pair=B-BTC_USDT", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	signals := body["signals"].([]any)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
}

func TestStatusIncludesSchedulerState(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["tenant_id"] != env.tenant {
		t.Errorf("tenant = %v", body["tenant_id"])
	}
	if _, ok := body["cycles"]; !ok {
		t.Error("missing cycles from status")
	}
}

func TestGetDepthAnalyzesOrderBook(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/depth/B-BTC_USDT", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["pair"] != "B-BTC_USDT" {
		t.Errorf("pair = %v", body["pair"])
	}
	if _, ok := body["imbalance_ratio"]; !ok {
		t.Error("missing imbalance_ratio")
	}
}

func TestGetDepthWithoutSourceReturns503(t *testing.T) {
	env := newTestEnv(t)
	env.server.Depth = nil
	w := env.request(t, http.MethodGet, "/api/depth/B-BTC_USDT", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
