package ledger

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ledger tracks positions and resting orders. It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position
	orders    map[string]OpenOrder
	logger    *zap.Logger
	now       func() time.Time
}

// Config holds ledger configuration.
type Config struct {
	Logger *zap.Logger
}

// New creates an empty ledger.
func New(cfg *Config) *Ledger {
	return &Ledger{
		positions: make(map[string]*Position),
		orders:    make(map[string]OpenOrder),
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// ProcessFill updates the fill's position and returns realized PnL in dollars,
// net of the fee.
func (l *Ledger) ProcessFill(f Fill) float64 {
	l.mu.Lock()
	p, ok := l.positions[f.Ticker]
	if !ok {
		p = &Position{Ticker: f.Ticker}
		l.positions[f.Ticker] = p
	}

	fee := f.FeeCents / 100
	realized := p.apply(f) - fee

	p.RealizedPnL += realized
	p.FeesPaid += fee
	p.Fills++
	p.UpdatedAt = f.Time
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = l.now()
	}
	snapshot := *p
	l.mu.Unlock()

	FillsTotal.WithLabelValues(string(f.Side)).Inc()
	RealizedPnL.Add(realized)

	l.logger.Info("fill-processed",
		zap.String("ticker", f.Ticker),
		zap.String("side", string(f.Side)),
		zap.Int("price", f.PriceCents),
		zap.Int("size", f.Size),
		zap.Float64("fee", fee),
		zap.Int("new-qty", snapshot.Quantity),
		zap.Float64("avg-cost", snapshot.AvgEntryPriceCents),
		zap.Float64("realized-pnl", realized))

	return realized
}

// Position returns a copy of ticker's position. Unknown tickers are flat.
func (l *Ledger) Position(ticker string) Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if p, ok := l.positions[ticker]; ok {
		return *p
	}
	return Position{Ticker: ticker}
}

// NetPosition returns ticker's signed YES-equivalent quantity.
func (l *Ledger) NetPosition(ticker string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if p, ok := l.positions[ticker]; ok {
		return p.Quantity
	}
	return 0
}

// Positions returns a copy of every position.
func (l *Ledger) Positions() map[string]Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Position, len(l.positions))
	for ticker, p := range l.positions {
		out[ticker] = *p
	}
	return out
}

// RealizedPnL returns the total realized PnL across positions, in dollars.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, p := range l.positions {
		total += p.RealizedPnL
	}
	return total
}

// UnrealizedPnL values every open position at mids (cents). A ticker without
// a mid is valued at its entry price.
func (l *Ledger) UnrealizedPnL(mids map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for ticker, p := range l.positions {
		if p.Quantity == 0 {
			continue
		}
		mid, ok := mids[ticker]
		if !ok {
			mid = p.AvgEntryPriceCents
		}
		total += p.UnrealizedPnL(mid)
	}
	return total
}

// AddOpenOrder registers a resting order.
func (l *Ledger) AddOpenOrder(o OpenOrder) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = l.now()
	}

	l.mu.Lock()
	l.orders[o.ID] = o
	count := len(l.orders)
	l.mu.Unlock()

	OpenOrders.Set(float64(count))
}

// RemoveOpenOrder drops an order and returns it.
func (l *Ledger) RemoveOpenOrder(id string) (OpenOrder, bool) {
	l.mu.Lock()
	o, ok := l.orders[id]
	if ok {
		delete(l.orders, id)
	}
	count := len(l.orders)
	l.mu.Unlock()

	OpenOrders.Set(float64(count))
	return o, ok
}

// FillOpenOrder records size filled against an order and removes it once
// complete. It returns the updated order.
func (l *Ledger) FillOpenOrder(id string, size int) (OpenOrder, bool) {
	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		return OpenOrder{}, false
	}

	o.Filled += size
	if o.Remaining() <= 0 {
		delete(l.orders, id)
	} else {
		l.orders[id] = o
	}
	count := len(l.orders)
	l.mu.Unlock()

	OpenOrders.Set(float64(count))
	return o, true
}

// OpenOrders returns every resting order, oldest first.
func (l *Ledger) OpenOrders() []OpenOrder {
	l.mu.RLock()
	out := make([]OpenOrder, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// OpenOrdersFor returns ticker's resting orders.
func (l *Ledger) OpenOrdersFor(ticker string) []OpenOrder {
	var out []OpenOrder
	for _, o := range l.OpenOrders() {
		if o.Ticker == ticker {
			out = append(out, o)
		}
	}
	return out
}

// CancelTicker removes every resting order on ticker and returns them.
func (l *Ledger) CancelTicker(ticker string) []OpenOrder {
	l.mu.Lock()
	var cancelled []OpenOrder
	for id, o := range l.orders {
		if o.Ticker == ticker {
			cancelled = append(cancelled, o)
			delete(l.orders, id)
		}
	}
	count := len(l.orders)
	l.mu.Unlock()

	OpenOrders.Set(float64(count))
	return cancelled
}

// ExpireOrders removes orders past their TTL and returns them.
func (l *Ledger) ExpireOrders(now time.Time) []OpenOrder {
	l.mu.Lock()
	var expired []OpenOrder
	for id, o := range l.orders {
		if o.Expired(now) {
			expired = append(expired, o)
			delete(l.orders, id)
		}
	}
	count := len(l.orders)
	l.mu.Unlock()

	if len(expired) > 0 {
		OrdersExpiredTotal.Add(float64(len(expired)))
		l.logger.Debug("open-orders-expired", zap.Int("count", len(expired)))
	}
	OpenOrders.Set(float64(count))

	return expired
}
