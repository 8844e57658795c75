package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/internal/circuitbreaker"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"go.uber.org/zap"
)

const rateWindow = time.Minute

// Engine enforces the risk limits on every order intent.
type Engine struct {
	limits     Limits
	killSwitch *circuitbreaker.KillSwitch
	dailyLoss  *circuitbreaker.DailyLoss
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	orderTimes []time.Time
}

// Config holds risk engine configuration.
type Config struct {
	Logger     *zap.Logger
	Limits     Limits
	KillSwitch *circuitbreaker.KillSwitch
	Clock      func() time.Time // defaults to time.Now
}

// Snapshot is a point-in-time risk summary.
type Snapshot struct {
	TotalNotional       float64 `json:"total_notional"`
	MaxPositionNotional float64 `json:"max_position_notional"`
	OpenOrders          int     `json:"open_orders"`
	OrdersLastMinute    int     `json:"orders_last_minute"`
	DailyPnL            float64 `json:"daily_pnl"`
	KillSwitchActive    bool    `json:"kill_switch_active"`
	KillSwitchReason    string  `json:"kill_switch_reason,omitempty"`
}

// New creates a risk engine.
func New(cfg *Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.KillSwitch == nil {
		return nil, fmt.Errorf("kill switch cannot be nil")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("validate limits: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		limits:     cfg.Limits,
		killSwitch: cfg.KillSwitch,
		dailyLoss:  circuitbreaker.NewDailyLossWithClock(cfg.Limits.MaxDailyLoss, clock),
		logger:     cfg.Logger,
		now:        clock,
	}, nil
}

// Limits returns the configured limits.
func (e *Engine) Limits() Limits {
	return e.limits
}

// CheckIntent runs the limit checks in a fixed order; the first failure wins:
// kill switch, inventory, notional, open orders, rate, daily loss.
// A daily-loss rejection also activates the kill switch.
func (e *Engine) CheckIntent(intent Intent, positions map[string]ledger.Position, openOrders []ledger.OpenOrder, midCents float64) error {
	ChecksTotal.Inc()

	err := e.killSwitch.Guard(func(active bool) error {
		if active {
			return reject(ReasonKillSwitch, "no trading allowed")
		}

		current := positions[intent.Ticker].Quantity
		newQty := current + intent.SignedSize()

		if abs(newQty) > e.limits.MaxInventoryPerToken {
			return reject(ReasonInventory, "current=%d intent=%s %d new=%d limit=%d",
				current, intent.Action, intent.Size, newQty, e.limits.MaxInventoryPerToken)
		}

		notional := float64(abs(newQty)) * midCents / 100
		if notional > e.limits.MaxNotionalPerMarket {
			return reject(ReasonNotional, "new=%.2f limit=%.2f", notional, e.limits.MaxNotionalPerMarket)
		}

		if len(openOrders) >= e.limits.MaxOpenOrdersTotal {
			return reject(ReasonOpenOrders, "%d/%d", len(openOrders), e.limits.MaxOpenOrdersTotal)
		}

		if n := e.ordersInWindow(); n >= e.limits.MaxOrdersPerMin {
			return reject(ReasonRate, "%d orders in last minute, limit=%d", n, e.limits.MaxOrdersPerMin)
		}

		if e.dailyLoss.Breached() {
			return reject(ReasonDailyLoss, "%.2f < -%.2f", e.dailyLoss.PnL(), e.limits.MaxDailyLoss)
		}

		return nil
	})

	if err != nil {
		reason := ReasonOf(err)
		RejectionsTotal.WithLabelValues(string(reason)).Inc()

		e.logger.Debug("intent-rejected",
			zap.String("ticker", intent.Ticker),
			zap.String("reason", string(reason)),
			zap.Error(err))

		if reason == ReasonDailyLoss {
			e.killSwitch.Activate(err.Error())
		}
		return err
	}

	return nil
}

// CheckSlippage rejects a taker intent priced more than MaxTakerSlippage
// cents away from the reference price. Maker intents always pass.
func (e *Engine) CheckSlippage(intent Intent, referenceCents int) error {
	if intent.Mode != ModeTaker {
		return nil
	}

	if slip := abs(intent.PriceCents - referenceCents); slip > e.limits.MaxTakerSlippage {
		RejectionsTotal.WithLabelValues(string(ReasonSlippage)).Inc()
		return reject(ReasonSlippage, "price=%d reference=%d slippage=%d limit=%d",
			intent.PriceCents, referenceCents, slip, e.limits.MaxTakerSlippage)
	}
	return nil
}

// CheckFeedFresh rejects trading on a book last updated longer than FeedStale ago.
func (e *Engine) CheckFeedFresh(lastUpdate time.Time) error {
	age := e.now().Sub(lastUpdate)
	if lastUpdate.IsZero() || age > e.limits.FeedStale {
		RejectionsTotal.WithLabelValues(string(ReasonFeedStale)).Inc()
		return reject(ReasonFeedStale, "age=%s limit=%s", age, e.limits.FeedStale)
	}
	return nil
}

// RecordOrder notes an order placement for the rate limit.
func (e *Engine) RecordOrder() {
	e.mu.Lock()
	e.orderTimes = append(e.orderTimes, e.now())
	e.mu.Unlock()
}

// UpdateDailyPnL adds realized PnL and trips the kill switch on a breach.
func (e *Engine) UpdateDailyPnL(delta float64) {
	pnl := e.dailyLoss.Add(delta)

	e.logger.Info("daily-pnl-updated",
		zap.Float64("pnl", pnl),
		zap.Float64("delta", delta))

	if pnl < -e.limits.MaxDailyLoss {
		e.killSwitch.Activate(fmt.Sprintf("daily loss limit exceeded: %.2f", pnl))
	}
}

// DailyPnL returns realized PnL for the current UTC day.
func (e *Engine) DailyPnL() float64 {
	return e.dailyLoss.PnL()
}

// TradingHalted reports whether new orders are blocked and why. A daily-loss
// breach found here trips the kill switch.
func (e *Engine) TradingHalted() (bool, string) {
	if e.dailyLoss.Breached() && !e.killSwitch.IsActive() {
		e.killSwitch.Activate(fmt.Sprintf("daily loss limit exceeded: %.2f", e.dailyLoss.PnL()))
	}

	if e.killSwitch.IsActive() {
		return true, e.killSwitch.Reason()
	}
	return false, ""
}

// Metrics summarizes exposure. Positions without a mid are valued at entry.
func (e *Engine) Metrics(positions map[string]ledger.Position, openOrders []ledger.OpenOrder, mids map[string]float64) Snapshot {
	snap := Snapshot{
		OpenOrders:       len(openOrders),
		OrdersLastMinute: e.ordersInWindow(),
		DailyPnL:         e.dailyLoss.PnL(),
	}

	for ticker, pos := range positions {
		mid, ok := mids[ticker]
		if !ok {
			mid = pos.AvgEntryPriceCents
		}
		n := pos.Notional(mid)
		snap.TotalNotional += n
		if n > snap.MaxPositionNotional {
			snap.MaxPositionNotional = n
		}
	}

	status := e.killSwitch.GetStatus()
	snap.KillSwitchActive = status.Active
	snap.KillSwitchReason = status.Reason

	TotalNotional.Set(snap.TotalNotional)

	return snap
}

// IsRejection reports whether err came from a risk check.
func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}

// ordersInWindow prunes timestamps older than the rate window and returns the count.
func (e *Engine) ordersInWindow() int {
	cutoff := e.now().Add(-rateWindow)

	e.mu.Lock()
	defer e.mu.Unlock()

	i := 0
	for i < len(e.orderTimes) && e.orderTimes[i].Before(cutoff) {
		i++
	}
	e.orderTimes = e.orderTimes[i:]

	return len(e.orderTimes)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
