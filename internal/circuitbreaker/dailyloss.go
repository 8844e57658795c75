package circuitbreaker

import (
	"sync"
	"time"
)

// DailyLoss accumulates realized PnL for the current UTC day.
// The total resets to zero on the first access after UTC midnight.
type DailyLoss struct {
	mu       sync.Mutex
	limit    float64
	pnl      float64
	dayStart time.Time
	now      func() time.Time
}

// NewDailyLoss creates a tracker that breaches when PnL falls below -limit dollars.
func NewDailyLoss(limit float64) *DailyLoss {
	return NewDailyLossWithClock(limit, time.Now)
}

// NewDailyLossWithClock is NewDailyLoss with an injectable clock.
func NewDailyLossWithClock(limit float64, now func() time.Time) *DailyLoss {
	return &DailyLoss{
		limit:    limit,
		dayStart: utcDay(now()),
		now:      now,
	}
}

// Add applies a PnL change and returns the day's running total.
func (d *DailyLoss) Add(delta float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollLocked()
	d.pnl += delta
	DailyPnL.Set(d.pnl)

	return d.pnl
}

// PnL returns the day's running total.
func (d *DailyLoss) PnL() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollLocked()
	return d.pnl
}

// Breached reports whether PnL is below -limit.
func (d *DailyLoss) Breached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollLocked()
	return d.pnl < -d.limit
}

// Limit returns the configured loss limit in dollars.
func (d *DailyLoss) Limit() float64 {
	return d.limit
}

func (d *DailyLoss) rollLocked() {
	today := utcDay(d.now())
	if today.After(d.dayStart) {
		d.pnl = 0
		d.dayStart = today
		DailyPnL.Set(0)
		DailyResetsTotal.Inc()
	}
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
