package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(&Config{Logger: zap.NewNop()})
}

func yesFill(price, size int) Fill {
	return Fill{Ticker: "KXBTC", Side: types.SideYes, PriceCents: price, Size: size}
}

func noFill(price, size int) Fill {
	return Fill{Ticker: "KXBTC", Side: types.SideNo, PriceCents: price, Size: size}
}

func TestProcessFill_AverageCost(t *testing.T) {
	l := newTestLedger(t)

	steps := []struct {
		name         string
		fill         Fill
		wantRealized float64
		wantQty      int
		wantAvg      float64
	}{
		{name: "open-long", fill: yesFill(40, 10), wantRealized: 0, wantQty: 10, wantAvg: 40},
		{name: "add-to-long", fill: yesFill(50, 10), wantRealized: 0, wantQty: 20, wantAvg: 45},
		// NO at 45 is a YES sell at 55: 5 * (55-45) = 50c.
		{name: "partial-close-via-no", fill: noFill(45, 5), wantRealized: 0.5, wantQty: 15, wantAvg: 45},
		// NO at 40 is a YES sell at 60: close 15 for 15 * 15c, then 5 short at 60.
		{name: "flip-to-short", fill: noFill(40, 20), wantRealized: 2.25, wantQty: -5, wantAvg: 60},
		{name: "add-to-short", fill: noFill(30, 5), wantRealized: 0, wantQty: -10, wantAvg: 65},
		// Buying YES at 50 against a 65 short avg: 10 * 15c.
		{name: "close-short", fill: yesFill(50, 10), wantRealized: 1.5, wantQty: 0, wantAvg: 0},
	}

	for _, step := range steps {
		got := l.ProcessFill(step.fill)
		assert.InDelta(t, step.wantRealized, got, 1e-9, step.name)

		pos := l.Position("KXBTC")
		assert.Equal(t, step.wantQty, pos.Quantity, step.name)
		assert.InDelta(t, step.wantAvg, pos.AvgEntryPriceCents, 1e-9, step.name)
	}

	pos := l.Position("KXBTC")
	assert.InDelta(t, 4.25, pos.RealizedPnL, 1e-9)
	assert.Equal(t, 6, pos.Fills)
}

func TestProcessFill_FeesReduceRealized(t *testing.T) {
	l := newTestLedger(t)

	f := yesFill(50, 10)
	f.FeeCents = 18

	got := l.ProcessFill(f)
	assert.InDelta(t, -0.18, got, 1e-9)

	pos := l.Position("KXBTC")
	assert.InDelta(t, 0.18, pos.FeesPaid, 1e-9)
	assert.InDelta(t, -0.18, pos.RealizedPnL, 1e-9)
}

func TestPosition_Quantities(t *testing.T) {
	long := Position{Quantity: 7}
	assert.Equal(t, 7, long.YesQuantity())
	assert.Equal(t, 0, long.NoQuantity())
	assert.Equal(t, 7, long.NetPosition())

	short := Position{Quantity: -4}
	assert.Equal(t, 0, short.YesQuantity())
	assert.Equal(t, 4, short.NoQuantity())
	assert.Equal(t, -4, short.NetPosition())

	assert.InDelta(t, 2.0, short.Notional(50), 1e-9)
}

func TestUnrealizedPnL(t *testing.T) {
	l := newTestLedger(t)
	l.ProcessFill(yesFill(40, 10))
	l.ProcessFill(Fill{Ticker: "KXETH", Side: types.SideNo, PriceCents: 30, Size: 4}) // short YES at 70

	got := l.UnrealizedPnL(map[string]float64{"KXBTC": 50, "KXETH": 60})
	// 10 * (50-40)c + -4 * (60-70)c = 1.00 + 0.40
	assert.InDelta(t, 1.4, got, 1e-9)

	// Missing mids value at entry.
	assert.InDelta(t, 0.0, l.UnrealizedPnL(nil), 1e-9)
}

func TestNetPosition_UnknownIsFlat(t *testing.T) {
	l := newTestLedger(t)
	assert.Equal(t, 0, l.NetPosition("NOPE"))
	assert.Equal(t, "NOPE", l.Position("NOPE").Ticker)
	assert.Empty(t, l.Positions())
}

func TestOpenOrders(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	l.AddOpenOrder(OpenOrder{ID: "a", Ticker: "KXBTC", Side: types.SideYes, PriceCents: 45, Size: 10, CreatedAt: base, TTL: 30 * time.Second})
	l.AddOpenOrder(OpenOrder{ID: "b", Ticker: "KXBTC", Side: types.SideNo, PriceCents: 50, Size: 10, CreatedAt: base.Add(time.Second), TTL: 2 * time.Minute})
	l.AddOpenOrder(OpenOrder{ID: "c", Ticker: "KXETH", Side: types.SideYes, PriceCents: 20, Size: 5, CreatedAt: base.Add(2 * time.Second)})

	orders := l.OpenOrders()
	require.Len(t, orders, 3)
	assert.Equal(t, "a", orders[0].ID)
	assert.Len(t, l.OpenOrdersFor("KXBTC"), 2)

	o, ok := l.FillOpenOrder("a", 4)
	require.True(t, ok)
	assert.Equal(t, 6, o.Remaining())
	assert.Len(t, l.OpenOrders(), 3)

	o, ok = l.FillOpenOrder("a", 6)
	require.True(t, ok)
	assert.Equal(t, 0, o.Remaining())
	assert.Len(t, l.OpenOrders(), 2)

	expired := l.ExpireOrders(base.Add(5 * time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, "b", expired[0].ID)

	// Zero TTL never expires.
	remaining := l.OpenOrders()
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].ID)

	_, ok = l.RemoveOpenOrder("c")
	assert.True(t, ok)
	_, ok = l.RemoveOpenOrder("c")
	assert.False(t, ok)
}

func TestCancelTicker(t *testing.T) {
	l := newTestLedger(t)
	l.AddOpenOrder(OpenOrder{ID: "a", Ticker: "KXBTC", Size: 1})
	l.AddOpenOrder(OpenOrder{ID: "b", Ticker: "KXBTC", Size: 1})
	l.AddOpenOrder(OpenOrder{ID: "c", Ticker: "KXETH", Size: 1})

	cancelled := l.CancelTicker("KXBTC")
	assert.Len(t, cancelled, 2)
	assert.Len(t, l.OpenOrders(), 1)
}

func TestProcessFill_Concurrent(t *testing.T) {
	l := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.ProcessFill(yesFill(50, 1))
			}
		}()
	}
	wg.Wait()

	pos := l.Position("KXBTC")
	assert.Equal(t, 1000, pos.Quantity)
	assert.InDelta(t, 50, pos.AvgEntryPriceCents, 1e-9)
}
