package app

import (
	"testing"
	"time"

	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/execution"
	"github.com/mselser95/kalshi-mm/internal/fairvalue"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/internal/testutil"
	"github.com/mselser95/kalshi-mm/pkg/config"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTicker = "KXBTCD-26MAR02-T100000"

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *testutil.MockStorage) {
	t.Helper()

	cfg := config.Defaults()
	cfg.HTTPPort = "0"
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(cfg, zap.NewNop(), &Options{NoDiscovery: true})
	require.NoError(t, err)

	store := testutil.NewMockStorage()
	_ = a.storage.Close()
	a.storage = store

	t.Cleanup(func() { _ = a.Shutdown() })
	return a, store
}

// seed applies a fresh one-level snapshot and sets a manual fair value.
func seed(t *testing.T, a *App, yesBid, noBid, fair int) {
	t.Helper()

	a.obManager.HandleSnapshot(testutil.CreateTestSnapshot(testTicker, 1, yesBid, noBid, time.Now()))
	require.NoError(t, a.fairValues.Set(testTicker, fair, fairvalue.SourceManual))
}

func drainOrders(a *App) []execution.Order {
	var out []execution.Order
	for {
		select {
		case o := <-a.orderChan:
			out = append(out, o)
		default:
			return out
		}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = New(config.Defaults(), nil, nil)
	assert.Error(t, err)
}

func TestNew_WiresComponents(t *testing.T) {
	a, _ := newTestApp(t, nil)

	assert.NotNil(t, a.httpServer)
	assert.NotNil(t, a.registry)
	assert.NotNil(t, a.discoveryService)
	assert.NotNil(t, a.wsPool)
	assert.NotNil(t, a.obManager)
	assert.NotNil(t, a.fairValues)
	assert.NotNil(t, a.model)
	assert.NotNil(t, a.ledger)
	assert.NotNil(t, a.killSwitch)
	assert.NotNil(t, a.risk)
	assert.NotNil(t, a.engine)
	assert.NotNil(t, a.executor)
	assert.NotNil(t, a.telegram)
	assert.False(t, a.telegram.Enabled())
}

func TestSetupStorage_SQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageMode = config.StorageSQLite
	cfg.SQLitePath = t.TempDir() + "/audit.db"

	store, err := setupStorage(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestIntentsFor(t *testing.T) {
	info := engine.Info{Ticker: "MKT", Reason: "r", FairCents: 50}
	ttl := 30 * time.Second

	tests := []struct {
		name     string
		decision engine.Decision
		want     []risk.Intent
	}{
		{
			name:     "no-action",
			decision: engine.NoAction{Info: info},
			want:     nil,
		},
		{
			name: "buy-yes",
			decision: engine.BuyYes{Info: info, Order: engine.TakerOrder{
				Side: types.SideYes, PriceCents: 40, Quantity: 10, EdgeCents: 10,
			}},
			want: []risk.Intent{
				{Ticker: "MKT", Action: risk.ActionBuy, PriceCents: 40, Size: 10, Mode: risk.ModeTaker, Reason: "r"},
			},
		},
		{
			name: "buy-no-sells-yes",
			decision: engine.BuyNo{Info: info, Order: engine.TakerOrder{
				Side: types.SideNo, PriceCents: 35, Quantity: 5, EdgeCents: 15,
			}},
			want: []risk.Intent{
				{Ticker: "MKT", Action: risk.ActionSell, PriceCents: 65, Size: 5, Mode: risk.ModeTaker, Reason: "r"},
			},
		},
		{
			name: "quote-both",
			decision: engine.QuoteBoth{Info: info,
				Bid: engine.Quote{PriceCents: 47, Quantity: 10},
				Ask: engine.Quote{PriceCents: 53, Quantity: 8},
			},
			want: []risk.Intent{
				{Ticker: "MKT", Action: risk.ActionBuy, PriceCents: 47, Size: 10, Mode: risk.ModeMaker, TTL: ttl, Reason: "r"},
				{Ticker: "MKT", Action: risk.ActionSell, PriceCents: 53, Size: 8, Mode: risk.ModeMaker, TTL: ttl, Reason: "r"},
			},
		},
		{
			name:     "bid-only",
			decision: engine.QuoteBidOnly{Info: info, Bid: engine.Quote{PriceCents: 47, Quantity: 10}},
			want: []risk.Intent{
				{Ticker: "MKT", Action: risk.ActionBuy, PriceCents: 47, Size: 10, Mode: risk.ModeMaker, TTL: ttl, Reason: "r"},
			},
		},
		{
			name:     "ask-only",
			decision: engine.QuoteAskOnly{Info: info, Ask: engine.Quote{PriceCents: 53, Quantity: 10}},
			want: []risk.Intent{
				{Ticker: "MKT", Action: risk.ActionSell, PriceCents: 53, Size: 10, Mode: risk.ModeMaker, TTL: ttl, Reason: "r"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intentsFor(tt.decision, ttl))
		})
	}
}

func TestProcessTicker_TakerAccepted(t *testing.T) {
	tests := []struct {
		name      string
		fair      int
		wantSide  types.Side
		wantPrice int
	}{
		{name: "cheap-yes", fair: 70, wantSide: types.SideYes, wantPrice: 50},
		{name: "expensive-yes", fair: 20, wantSide: types.SideNo, wantPrice: 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, store := newTestApp(t, nil)
			seed(t, a, 45, 50, tt.fair)

			a.processTicker(testTicker)

			orders := drainOrders(a)
			require.Len(t, orders, 1)
			assert.Equal(t, tt.wantSide, orders[0].Side)
			assert.Equal(t, tt.wantPrice, orders[0].PriceCents)
			assert.Equal(t, 10, orders[0].Size)
			assert.Equal(t, risk.ModeTaker, orders[0].Mode)

			decisions := store.Decisions()
			require.Len(t, decisions, 1)
			assert.True(t, decisions[0].Accepted)
			assert.Equal(t, string(tt.wantSide), decisions[0].Side)
			assert.Equal(t, tt.fair, decisions[0].FairCents)
		})
	}
}

func TestProcessTicker_RiskRejected(t *testing.T) {
	a, store := newTestApp(t, func(cfg *config.Config) {
		cfg.RiskMaxInventory = 5
	})
	seed(t, a, 45, 50, 70)

	a.processTicker(testTicker)

	assert.Empty(t, drainOrders(a))

	decisions := store.Decisions()
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Accepted)
	assert.Equal(t, string(risk.ReasonInventory), decisions[0].RejectCode)
	assert.Contains(t, decisions[0].Reason, "inventory limit")
}

func TestProcessTicker_NoActionNotAudited(t *testing.T) {
	a, store := newTestApp(t, nil)
	a.obManager.HandleSnapshot(testutil.CreateTestSnapshot(testTicker, 1, 45, 50, time.Now()))

	// no fair value
	a.processTicker(testTicker)

	assert.Empty(t, drainOrders(a))
	assert.Empty(t, store.Decisions())
}

func TestProcessTicker_MakerQuotesNotResubmitted(t *testing.T) {
	a, store := newTestApp(t, nil)
	seed(t, a, 40, 40, 50)

	a.processTicker(testTicker)

	orders := drainOrders(a)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, risk.ModeMaker, o.Mode)
		res := a.executor.Execute(o)
		require.NoError(t, res.Error)
		assert.True(t, res.Resting)
	}
	require.Len(t, a.ledger.OpenOrdersFor(testTicker), 2)

	a.processTicker(testTicker)

	assert.Empty(t, drainOrders(a))
	assert.Len(t, store.Decisions(), 2)
}

func TestProcessTicker_RestingQuoteFilled(t *testing.T) {
	a, _ := newTestApp(t, nil)
	seed(t, a, 40, 40, 50)

	a.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "q1", Ticker: testTicker, Side: types.SideYes,
		PriceCents: 45, Size: 10, CreatedAt: time.Now(), TTL: time.Minute,
	})

	// YES ask drops to 44, through the resting 45 bid
	a.obManager.HandleSnapshot(testutil.CreateTestSnapshot(testTicker, 2, 40, 56, time.Now()))
	a.processTicker(testTicker)

	pos := a.ledger.Position(testTicker)
	assert.Equal(t, 10, pos.Quantity)
	assert.InDelta(t, 45.0, pos.AvgEntryPriceCents, 1e-9)
	for _, o := range a.ledger.OpenOrdersFor(testTicker) {
		assert.NotEqual(t, "q1", o.ID)
	}
}

func TestProcessTicker_WithdrawsUnquotedSide(t *testing.T) {
	a, _ := newTestApp(t, nil)
	seed(t, a, 40, 40, 50)

	// long at the engine limit with a bid still resting from an earlier cycle
	a.ledger.ProcessFill(testutil.CreateTestFill(testTicker, types.SideYes, 45, a.cfg.EngineMaxPosition, time.Now()))
	a.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "old-bid", Ticker: testTicker, Side: types.SideYes,
		PriceCents: 44, Size: 10, CreatedAt: time.Now(), TTL: time.Minute,
	})

	a.processTicker(testTicker)

	orders := drainOrders(a)
	require.Len(t, orders, 1)
	assert.Equal(t, types.SideNo, orders[0].Side)
	assert.Empty(t, a.ledger.OpenOrdersFor(testTicker))

	// YES ask drops to 43, through where the old bid was
	a.obManager.HandleSnapshot(testutil.CreateTestSnapshot(testTicker, 2, 40, 57, time.Now()))
	a.processTicker(testTicker)

	assert.Equal(t, a.cfg.EngineMaxPosition, a.ledger.NetPosition(testTicker))
}

func TestProcessTicker_NoActionWithdrawsQuotes(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.obManager.HandleSnapshot(testutil.CreateTestSnapshot(testTicker, 1, 45, 50, time.Now()))

	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		a.ledger.AddOpenOrder(ledger.OpenOrder{
			ID: "q-" + string(side), Ticker: testTicker, Side: side,
			PriceCents: 40, Size: 10, CreatedAt: time.Now(), TTL: time.Minute,
		})
	}

	// no fair value
	a.processTicker(testTicker)

	assert.Empty(t, drainOrders(a))
	assert.Empty(t, a.ledger.OpenOrdersFor(testTicker))
}

func TestRunCycle_ExpiresQuotes(t *testing.T) {
	a, _ := newTestApp(t, nil)

	a.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "old", Ticker: "OTHER", Side: types.SideYes,
		PriceCents: 30, Size: 5, CreatedAt: time.Now().Add(-time.Hour), TTL: time.Second,
	})

	a.runCycle()

	assert.Empty(t, a.ledger.OpenOrders())
}

func TestRemoveMarket(t *testing.T) {
	a, _ := newTestApp(t, nil)

	a.registry.Add(testutil.CreateTestMarket(testTicker, "BTC-USD", 100000, time.Now()))
	seed(t, a, 45, 50, 60)
	a.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "q1", Ticker: testTicker, Side: types.SideYes,
		PriceCents: 44, Size: 10, CreatedAt: time.Now(), TTL: time.Minute,
	})

	a.removeMarket(testTicker)

	_, ok := a.registry.Get(testTicker)
	assert.False(t, ok)
	_, ok = a.obManager.Snapshot(testTicker)
	assert.False(t, ok)
	_, ok = a.fairValues.FairValue(testTicker)
	assert.False(t, ok)
	assert.Empty(t, a.ledger.OpenOrdersFor(testTicker))
}

func TestKillSwitch_CancelsQuotesAndHalts(t *testing.T) {
	a, store := newTestApp(t, nil)
	seed(t, a, 45, 50, 70)

	a.ledger.AddOpenOrder(ledger.OpenOrder{
		ID: "q1", Ticker: testTicker, Side: types.SideYes,
		PriceCents: 44, Size: 10, CreatedAt: time.Now(), TTL: time.Minute,
	})

	a.killSwitch.Activate("test")

	assert.Empty(t, a.ledger.OpenOrders())

	a.processTicker(testTicker)
	assert.Empty(t, drainOrders(a))
	assert.Empty(t, store.Decisions())
}

func TestShutdown_ClosesStorage(t *testing.T) {
	cfg := config.Defaults()
	cfg.HTTPPort = "0"

	a, err := New(cfg, zap.NewNop(), &Options{NoDiscovery: true})
	require.NoError(t, err)

	store := testutil.NewMockStorage()
	a.storage = store

	require.NoError(t, a.Shutdown())
	assert.True(t, store.Closed())
	assert.Error(t, a.ctx.Err())
}
