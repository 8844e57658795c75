package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/internal/circuitbreaker"
	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/fairvalue"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/markets"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/pkg/cache"
	"github.com/mselser95/kalshi-mm/pkg/healthprobe"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	server     *Server
	books      *orderbook.Manager
	ledger     *ledger.Ledger
	killSwitch *circuitbreaker.KillSwitch
	fairValues *fairvalue.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	c, err := cache.NewRistrettoCache(cache.DefaultRistrettoConfig(1000, logger))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	books := orderbook.New(&orderbook.Config{Logger: logger})
	t.Cleanup(func() { _ = books.Close() })

	registry := markets.New(&markets.Config{Logger: logger})
	registry.Add(types.Market{
		Ticker:      "KXBTCD-26MAR02-T100000",
		Status:      types.MarketStatusOpen,
		OpenTime:    testNow.Add(-time.Hour),
		CloseTime:   testNow.Add(24 * time.Hour),
		StrikeType:  types.StrikeGreater,
		FloorStrike: 100000,
		Underlying:  "BTC-USD",
	})

	store, err := fairvalue.NewStore(&fairvalue.StoreConfig{
		Cache:  c,
		TTL:    time.Hour,
		Logger: logger,
		Clock:  time.Now,
	})
	require.NoError(t, err)

	model := fairvalue.NewModel(&fairvalue.ModelConfig{
		Registry:    registry,
		Store:       store,
		Books:       books,
		FallbackVol: 0.5,
		Logger:      logger,
	})

	led := ledger.New(&ledger.Config{Logger: logger})

	ks, err := circuitbreaker.New(&circuitbreaker.Config{Logger: logger})
	require.NoError(t, err)

	riskEngine, err := risk.New(&risk.Config{
		Logger:     logger,
		Limits:     risk.DefaultLimits(),
		KillSwitch: ks,
	})
	require.NoError(t, err)

	engCfg := engine.DefaultConfig()
	engCfg.Logger = logger
	engCfg.Books = books
	engCfg.FairValues = store
	engCfg.Positions = led
	engCfg.Risk = riskEngine
	eng, err := engine.New(&engCfg)
	require.NoError(t, err)

	server := New(&Config{
		Port:          "0",
		Logger:        logger,
		HealthChecker: healthprobe.New(),
		Books:         books,
		Engine:        eng,
		Risk:          riskEngine,
		Ledger:        led,
		KillSwitch:    ks,
		FairValues:    store,
		Model:         model,
		Clock:         func() time.Time { return testNow },
	})

	return &fixture{
		server:     server,
		books:      books,
		ledger:     led,
		killSwitch: ks,
		fairValues: store,
	}
}

func (f *fixture) seedBook(ticker string) {
	f.books.HandleSnapshot(&types.SnapshotMessage{
		Ticker:     ticker,
		Seq:        1,
		Yes:        []types.PriceLevel{{Price: 45, Quantity: 100}, {Price: 44, Quantity: 50}},
		No:         []types.PriceLevel{{Price: 50, Quantity: 80}},
		ReceivedAt: time.Now(),
	})
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	hc := healthprobe.New()

	server := New(&Config{Port: "8080", Logger: logger, HealthChecker: hc})
	require.NotNil(t, server)
	assert.NotNil(t, server.server)
	assert.NotNil(t, server.Handler())
	assert.Equal(t, ":8080", server.server.Addr)
	assert.Same(t, hc, server.healthChecker)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.server.healthChecker.SetReady(true)
	rec = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOrderbookEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedBook("MKT")

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "missing-ticker", target: "/api/orderbook", wantStatus: http.StatusBadRequest},
		{name: "unknown-ticker", target: "/api/orderbook?ticker=NOPE", wantStatus: http.StatusNotFound},
		{name: "bad-depth", target: "/api/orderbook?ticker=MKT&depth=x", wantStatus: http.StatusBadRequest},
		{name: "zero-depth", target: "/api/orderbook?ticker=MKT&depth=0", wantStatus: http.StatusBadRequest},
		{name: "ok", target: "/api/orderbook?ticker=MKT", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantStatus != http.StatusOK {
				resp := decodeBody[ErrorResponse](t, rec)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestOrderbookEndpoint_Depth(t *testing.T) {
	f := newFixture(t)
	f.seedBook("MKT")

	rec := f.do(t, http.MethodGet, "/api/orderbook?ticker=MKT&depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[OrderbookResponse](t, rec)
	assert.Equal(t, "MKT", resp.Summary.Ticker)
	assert.Equal(t, 45, resp.Summary.BestYesBid)
	assert.Equal(t, 50, resp.Summary.BestYesAsk)
	assert.True(t, resp.Summary.Valid)
	assert.Equal(t, []types.PriceLevel{{Price: 45, Quantity: 100}}, resp.Yes)
	assert.Equal(t, []types.PriceLevel{{Price: 50, Quantity: 80}}, resp.No)
}

func TestDecisionEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedBook("MKT")

	rec := f.do(t, http.MethodGet, "/api/decision?ticker=MKT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[DecisionResponse](t, rec)
	assert.Equal(t, engine.ActionNone, resp.Action)
	assert.Equal(t, "no fair value", resp.Info.Reason)

	require.NoError(t, f.fairValues.Set("MKT", 70, fairvalue.SourceManual))

	rec = f.do(t, http.MethodGet, "/api/decision?ticker=MKT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[DecisionResponse](t, rec)
	assert.Equal(t, engine.ActionBuyYes, resp.Action)
	require.NotNil(t, resp.Taker)
	assert.Equal(t, 50, resp.Taker.PriceCents)
	assert.Equal(t, 20, resp.Taker.EdgeCents)
	assert.Contains(t, resp.Description, "BUY YES")

	// read-only: nothing was recorded
	assert.Empty(t, f.ledger.OpenOrders())

	rec = f.do(t, http.MethodGet, "/api/decision", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedBook("MKT")

	f.ledger.ProcessFill(ledger.Fill{
		ID: "f1", OrderID: "o1", Ticker: "MKT", Side: types.SideYes,
		PriceCents: 40, Size: 10, Time: testNow,
	})
	f.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "o2", Ticker: "MKT", Side: types.SideYes,
		PriceCents: 44, Size: 5, CreatedAt: testNow, TTL: time.Minute,
	})

	rec := f.do(t, http.MethodGet, "/api/risk", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[RiskResponse](t, rec)
	assert.Equal(t, 1, resp.Snapshot.OpenOrders)
	assert.Greater(t, resp.Snapshot.TotalNotional, 0.0)
	assert.False(t, resp.Snapshot.KillSwitchActive)
	require.Contains(t, resp.Positions, "MKT")
	assert.Equal(t, 10, resp.Positions["MKT"].Quantity)
	require.Len(t, resp.OpenOrders, 1)
	assert.Equal(t, "o2", resp.OpenOrders[0].ID)
	// mid is 47.5, entry 40
	assert.Greater(t, resp.UnrealizedPnL, 0.0)
}

func TestKillSwitchEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/killswitch/activate", `{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, f.killSwitch.IsActive())

	rec = f.do(t, http.MethodPost, "/api/killswitch/activate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/killswitch/activate", `{"reason":"operator halt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[circuitbreaker.Status](t, rec)
	assert.True(t, status.Active)
	assert.Contains(t, status.Reason, "operator halt")
	assert.True(t, f.killSwitch.IsActive())

	rec = f.do(t, http.MethodGet, "/api/killswitch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[circuitbreaker.Status](t, rec).Active)

	rec = f.do(t, http.MethodPost, "/api/killswitch/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[circuitbreaker.Status](t, rec).Active)
	assert.False(t, f.killSwitch.IsActive())
}

func TestKillSwitch_HaltsDecisions(t *testing.T) {
	f := newFixture(t)
	f.seedBook("MKT")
	require.NoError(t, f.fairValues.Set("MKT", 70, fairvalue.SourceManual))

	f.do(t, http.MethodPost, "/api/killswitch/activate", `{"reason":"stop"}`)

	rec := f.do(t, http.MethodGet, "/api/decision?ticker=MKT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[DecisionResponse](t, rec)
	assert.Equal(t, engine.ActionNone, resp.Action)
	assert.Contains(t, resp.Info.Reason, "trading halted")
}

func TestFairValueEndpoints(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "invalid-json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing-cents", body: `{"ticker":"MKT"}`, wantStatus: http.StatusBadRequest},
		{name: "missing-ticker", body: `{"cents":50}`, wantStatus: http.StatusBadRequest},
		{name: "out-of-range", body: `{"ticker":"MKT","cents":101}`, wantStatus: http.StatusBadRequest},
		{name: "ok", body: `{"ticker":"MKT","cents":62}`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/fairvalue", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(t, http.MethodGet, "/api/fairvalue?ticker=MKT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decodeBody[fairvalue.Entry](t, rec)
	assert.Equal(t, 62, entry.Cents)
	assert.Equal(t, fairvalue.SourceManual, entry.Source)

	rec = f.do(t, http.MethodGet, "/api/fairvalue?ticker=OTHER", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/fairvalue", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpotEndpoint(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantRepriced int
	}{
		{name: "missing-symbol", body: `{"price":100000}`, wantStatus: http.StatusBadRequest},
		{name: "non-positive-price", body: `{"symbol":"BTC-USD","price":0}`, wantStatus: http.StatusBadRequest},
		{name: "unknown-symbol", body: `{"symbol":"ETH-USD","price":3000}`, wantStatus: http.StatusOK, wantRepriced: 0},
		{name: "reprices-market", body: `{"symbol":"BTC-USD","price":101000}`, wantStatus: http.StatusOK, wantRepriced: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/spot", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantRepriced, decodeBody[SpotResponse](t, rec).Repriced)
			}
		})
	}

	entry, ok := f.fairValues.Get("KXBTCD-26MAR02-T100000")
	require.True(t, ok)
	assert.Equal(t, fairvalue.SourceModel, entry.Source)
	assert.Greater(t, entry.Cents, 50)
}

func TestAPIRoutes_OnlyWithComponents(t *testing.T) {
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
	})

	for _, target := range []string{"/api/orderbook?ticker=X", "/api/decision?ticker=X", "/api/risk", "/api/killswitch"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/spot", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orderbook?ticker=MKT", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	listener := httptest.NewServer(http.NotFoundHandler())
	port := listener.Listener.Addr().String()
	listener.Close()

	_, p, found := strings.Cut(port, ":")
	require.True(t, found)

	server := New(&Config{Port: p, Logger: zap.NewNop(), HealthChecker: healthprobe.New()})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%s/health", p))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
