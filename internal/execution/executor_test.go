package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/internal/storage"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pnlRecorder struct {
	mu     sync.Mutex
	deltas []float64
}

func (p *pnlRecorder) UpdateDailyPnL(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deltas = append(p.deltas, delta)
}

func (p *pnlRecorder) total() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := 0.0
	for _, d := range p.deltas {
		sum += d
	}
	return sum
}

type fillRecorder struct {
	mu    sync.Mutex
	fills []ledger.Fill
}

func (f *fillRecorder) StoreDecision(ctx context.Context, rec storage.DecisionRecord) error {
	return nil
}

func (f *fillRecorder) StoreFill(ctx context.Context, fill ledger.Fill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, fill)
	return nil
}

func (f *fillRecorder) Close() error { return nil }

func (f *fillRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fills)
}

type testEnv struct {
	exec   *Executor
	ledger *ledger.Ledger
	pnl    *pnlRecorder
	store  *fillRecorder
	now    time.Time
}

func newTestEnv(t *testing.T, orders <-chan Order) *testEnv {
	t.Helper()

	env := &testEnv{
		ledger: ledger.New(&ledger.Config{Logger: zap.NewNop()}),
		pnl:    &pnlRecorder{},
		store:  &fillRecorder{},
		now:    time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}

	exec, err := New(&Config{
		Logger:       zap.NewNop(),
		OrderChannel: orders,
		Ledger:       env.ledger,
		PnL:          env.pnl,
		Storage:      env.store,
		Clock:        func() time.Time { return env.now },
	})
	require.NoError(t, err)
	env.exec = exec

	return env
}

func bookWith(yesBid, noBid int, at time.Time) *orderbook.Book {
	var yes, no []types.PriceLevel
	if yesBid > 0 {
		yes = []types.PriceLevel{{Price: yesBid, Quantity: 50}}
	}
	if noBid > 0 {
		no = []types.PriceLevel{{Price: noBid, Quantity: 50}}
	}
	b := orderbook.NewBook("KX")
	b.ApplySnapshot(yes, no, 1, at)
	return b
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.EqualError(t, err, "config cannot be nil")

	_, err = New(&Config{})
	assert.EqualError(t, err, "logger cannot be nil")

	_, err = New(&Config{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestNewOrder_FromIntent(t *testing.T) {
	now := time.Now()

	buy := NewOrder(risk.Intent{Ticker: "KX", Action: risk.ActionBuy, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, TTL: time.Minute}, now)
	assert.Equal(t, types.SideYes, buy.Side)
	assert.Equal(t, 48, buy.PriceCents)
	assert.Equal(t, time.Minute, buy.TTL)
	assert.NotEmpty(t, buy.ID)

	sell := NewOrder(risk.Intent{Ticker: "KX", Action: risk.ActionSell, PriceCents: 55, Size: 10, Mode: risk.ModeMaker}, now)
	assert.Equal(t, types.SideNo, sell.Side)
	assert.Equal(t, 45, sell.PriceCents)
	assert.NotEqual(t, buy.ID, sell.ID)
}

func TestExecute_TakerFillsImmediately(t *testing.T) {
	env := newTestEnv(t, nil)

	order := Order{ID: "o1", Ticker: "KX", Side: types.SideYes, PriceCents: 50, Size: 10, Mode: risk.ModeTaker}
	res := env.exec.Execute(order)

	require.NoError(t, res.Error)
	require.NotNil(t, res.Fill)
	assert.False(t, res.Resting)
	assert.Equal(t, 18.0, res.Fill.FeeCents)
	assert.False(t, res.Fill.Maker)

	// Opening trade realizes only the fee.
	assert.InDelta(t, -0.18, res.PnL, 1e-9)
	assert.InDelta(t, -0.18, env.pnl.total(), 1e-9)
	assert.Equal(t, 10, env.ledger.NetPosition("KX"))
	assert.Equal(t, 1, env.store.count())
}

func TestExecute_TakerRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	env.exec.Execute(Order{ID: "o1", Ticker: "KX", Side: types.SideYes, PriceCents: 40, Size: 10, Mode: risk.ModeTaker})
	// Buying NO at 40 sells YES at 60.
	res := env.exec.Execute(Order{ID: "o2", Ticker: "KX", Side: types.SideNo, PriceCents: 40, Size: 10, Mode: risk.ModeTaker})

	require.NoError(t, res.Error)
	assert.Equal(t, 0, env.ledger.NetPosition("KX"))
	// 10 x 20c = $2.00 less a 17c fee.
	assert.InDelta(t, 1.83, res.PnL, 1e-9)
	assert.InDelta(t, env.exec.CumulativeProfit(), env.pnl.total(), 1e-9)
}

func TestExecute_InvalidOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.exec.Execute(Order{ID: "bad", Ticker: "KX", Side: types.SideYes, PriceCents: 0, Size: 10, Mode: risk.ModeTaker})
	assert.Error(t, res.Error)
	assert.Equal(t, 0, env.ledger.NetPosition("KX"))
}

func TestExecute_UnknownMode(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.mode = "live"

	res := env.exec.Execute(Order{ID: "o1", Ticker: "KX", Side: types.SideYes, PriceCents: 50, Size: 1, Mode: risk.ModeTaker})
	assert.ErrorContains(t, res.Error, "unknown execution mode")
}

func TestExecute_MakerRestsAndReplaces(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.exec.Execute(Order{ID: "b1", Ticker: "KX", Side: types.SideYes, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})
	require.NoError(t, res.Error)
	assert.True(t, res.Resting)
	assert.Nil(t, res.Fill)

	env.exec.Execute(Order{ID: "a1", Ticker: "KX", Side: types.SideNo, PriceCents: 45, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})
	env.exec.Execute(Order{ID: "b2", Ticker: "KX", Side: types.SideYes, PriceCents: 49, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

	open := env.ledger.OpenOrdersFor("KX")
	require.Len(t, open, 2)

	ids := []string{open[0].ID, open[1].ID}
	assert.ElementsMatch(t, []string{"a1", "b2"}, ids)
	assert.Equal(t, 0, env.ledger.NetPosition("KX"))
}

func TestCheckRestingFills(t *testing.T) {
	tests := []struct {
		name    string
		side    types.Side
		price   int
		yesBid  int
		noBid   int
		wantNet int
		filled  bool
	}{
		// YES ask = 100 - 53 = 47 trades through a 48 bid.
		{name: "yes-bid-crossed", side: types.SideYes, price: 48, yesBid: 40, noBid: 53, wantNet: 10, filled: true},
		{name: "yes-bid-touched", side: types.SideYes, price: 48, yesBid: 40, noBid: 52, wantNet: 10, filled: true},
		{name: "yes-bid-not-reached", side: types.SideYes, price: 48, yesBid: 40, noBid: 51},
		{name: "yes-bid-empty-asks", side: types.SideYes, price: 48, yesBid: 40},
		// NO ask = 100 - 56 = 44 trades through a 45 NO bid.
		{name: "no-bid-crossed", side: types.SideNo, price: 45, yesBid: 56, noBid: 30, wantNet: -10, filled: true},
		{name: "no-bid-not-reached", side: types.SideNo, price: 45, yesBid: 54, noBid: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.exec.Execute(Order{ID: "q", Ticker: "KX", Side: tt.side, PriceCents: tt.price, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

			fills := env.exec.CheckRestingFills(bookWith(tt.yesBid, tt.noBid, env.now))

			if !tt.filled {
				assert.Empty(t, fills)
				assert.Len(t, env.ledger.OpenOrders(), 1)
				return
			}

			require.Len(t, fills, 1)
			assert.True(t, fills[0].Maker)
			assert.Equal(t, tt.price, fills[0].PriceCents)
			assert.Equal(t, "q", fills[0].OrderID)
			assert.Equal(t, tt.wantNet, env.ledger.NetPosition("KX"))
			assert.Empty(t, env.ledger.OpenOrders())
			assert.Equal(t, 1, env.store.count())
		})
	}
}

func TestCheckRestingFills_MakerFee(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.Execute(Order{ID: "q", Ticker: "KX", Side: types.SideYes, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

	fills := env.exec.CheckRestingFills(bookWith(40, 53, env.now))
	require.Len(t, fills, 1)

	// Maker fee on 10 @ 48c rounds to 5c and is floored at 1c per contract.
	assert.Equal(t, 10.0, fills[0].FeeCents)
	assert.InDelta(t, -0.10, env.pnl.total(), 1e-9)
}

func TestCheckRestingFills_InvalidBook(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.Execute(Order{ID: "q", Ticker: "KX", Side: types.SideYes, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

	b := bookWith(40, 60, env.now)
	b.Invalidate()

	assert.Empty(t, env.exec.CheckRestingFills(b))
	assert.Empty(t, env.exec.CheckRestingFills(nil))
	assert.Len(t, env.ledger.OpenOrders(), 1)
}

func TestExpireOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.Execute(Order{ID: "short", Ticker: "KX", Side: types.SideYes, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, TTL: 10 * time.Second, CreatedAt: env.now})
	env.exec.Execute(Order{ID: "gtc", Ticker: "KY", Side: types.SideYes, PriceCents: 48, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

	assert.Equal(t, 0, env.exec.ExpireOrders())

	env.now = env.now.Add(11 * time.Second)
	assert.Equal(t, 1, env.exec.ExpireOrders())

	open := env.ledger.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, "gtc", open[0].ID)

	assert.Equal(t, 1, env.exec.CancelTicker("KY"))
	assert.Empty(t, env.ledger.OpenOrders())
}

func TestCancelSide(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.Execute(Order{ID: "bid", Ticker: "KX", Side: types.SideYes, PriceCents: 44, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})
	env.exec.Execute(Order{ID: "ask", Ticker: "KX", Side: types.SideNo, PriceCents: 52, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})
	env.exec.Execute(Order{ID: "other", Ticker: "KY", Side: types.SideYes, PriceCents: 44, Size: 10, Mode: risk.ModeMaker, CreatedAt: env.now})

	assert.Equal(t, 1, env.exec.CancelSide("KX", types.SideYes))
	assert.Equal(t, 0, env.exec.CancelSide("KX", types.SideYes))

	open := env.ledger.OpenOrdersFor("KX")
	require.Len(t, open, 1)
	assert.Equal(t, "ask", open[0].ID)
	assert.Len(t, env.ledger.OpenOrdersFor("KY"), 1)
}

func TestExecutor_StartAndClose(t *testing.T) {
	orders := make(chan Order, 4)
	env := newTestEnv(t, orders)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, env.exec.Start(ctx))

	orders <- Order{ID: "o1", Ticker: "KX", Side: types.SideYes, PriceCents: 50, Size: 5, Mode: risk.ModeTaker}

	require.Eventually(t, func() bool {
		return env.ledger.NetPosition("KX") == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, env.exec.Close())
}

func TestExecutor_StartWithoutChannel(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Error(t, env.exec.Start(context.Background()))
}
