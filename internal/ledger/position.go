package ledger

import (
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
)

// Fill is an executed trade. Every fill buys contracts of one side;
// a NO buy at q is booked as a YES sell at 100-q.
type Fill struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"order_id"`
	Ticker     string     `json:"ticker"`
	Side       types.Side `json:"side"`
	PriceCents int        `json:"price_cents"`
	Size       int        `json:"size"`
	FeeCents   float64    `json:"fee_cents"`
	Maker      bool       `json:"maker"`
	Time       time.Time  `json:"time"`
}

// yesEquivalent returns the signed YES quantity change and YES price of the fill.
func (f Fill) yesEquivalent() (qty int, priceCents int) {
	if f.Side == types.SideNo {
		return -f.Size, 100 - f.PriceCents
	}
	return f.Size, f.PriceCents
}

// Position is a signed YES-equivalent holding with average cost basis.
// Positive quantity is long YES, negative is long NO.
type Position struct {
	Ticker             string    `json:"ticker"`
	Quantity           int       `json:"quantity"`
	AvgEntryPriceCents float64   `json:"avg_entry_price_cents"`
	RealizedPnL        float64   `json:"realized_pnl"`
	FeesPaid           float64   `json:"fees_paid"`
	Fills              int       `json:"fills"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// YesQuantity returns the YES contracts held.
func (p Position) YesQuantity() int {
	if p.Quantity > 0 {
		return p.Quantity
	}
	return 0
}

// NoQuantity returns the NO contracts held.
func (p Position) NoQuantity() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return 0
}

// NetPosition is YesQuantity - NoQuantity.
func (p Position) NetPosition() int {
	return p.Quantity
}

// UnrealizedPnL values the position at midCents, in dollars.
func (p Position) UnrealizedPnL(midCents float64) float64 {
	if p.Quantity == 0 {
		return 0
	}
	return float64(p.Quantity) * (midCents - p.AvgEntryPriceCents) / 100
}

// Notional returns |quantity x price| in dollars.
func (p Position) Notional(priceCents float64) float64 {
	n := float64(p.Quantity) * priceCents / 100
	if n < 0 {
		return -n
	}
	return n
}

// apply books a fill using average cost and returns realized PnL in dollars
// before fees.
func (p *Position) apply(f Fill) float64 {
	qty, price := f.yesEquivalent()
	fp := float64(price)
	realized := 0.0

	switch {
	case qty > 0:
		if p.Quantity < 0 {
			closed := min(-p.Quantity, qty)
			realized = float64(closed) * (p.AvgEntryPriceCents - fp) / 100
		}

		newQty := p.Quantity + qty
		if newQty > 0 {
			if p.Quantity <= 0 {
				p.AvgEntryPriceCents = fp
			} else {
				total := float64(p.Quantity)*p.AvgEntryPriceCents + float64(qty)*fp
				p.AvgEntryPriceCents = total / float64(newQty)
			}
		}
		p.Quantity = newQty

	case qty < 0:
		size := -qty
		if p.Quantity > 0 {
			closed := min(p.Quantity, size)
			realized = float64(closed) * (fp - p.AvgEntryPriceCents) / 100
		}

		newQty := p.Quantity - size
		if newQty < 0 {
			if p.Quantity >= 0 {
				p.AvgEntryPriceCents = fp
			} else {
				total := float64(-p.Quantity)*p.AvgEntryPriceCents + float64(size)*fp
				p.AvgEntryPriceCents = total / float64(-newQty)
			}
		}
		p.Quantity = newQty
	}

	if p.Quantity == 0 {
		p.AvgEntryPriceCents = 0
	}

	return realized
}

// OpenOrder is a resting maker quote.
type OpenOrder struct {
	ID         string        `json:"id"`
	Ticker     string        `json:"ticker"`
	Side       types.Side    `json:"side"`
	PriceCents int           `json:"price_cents"`
	Size       int           `json:"size"`
	Filled     int           `json:"filled"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"ttl"`
}

// Remaining returns the unfilled size.
func (o OpenOrder) Remaining() int {
	return o.Size - o.Filled
}

// Expired reports whether the order outlived its TTL. A zero TTL never expires.
func (o OpenOrder) Expired(now time.Time) bool {
	return o.TTL > 0 && now.Sub(o.CreatedAt) > o.TTL
}
