package execution

import (
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/pkg/types"
)

// Order is an accepted intent expressed as a contract purchase.
type Order struct {
	ID         string
	Ticker     string
	Side       types.Side // contract bought
	PriceCents int        // contract price
	Size       int
	Mode       risk.Mode
	TTL        time.Duration
	Reason     string
	CreatedAt  time.Time
}

// NewOrder converts an intent into an order with a fresh id.
func NewOrder(intent risk.Intent, now time.Time) Order {
	side, price := intent.Contract()
	return Order{
		ID:         uuid.NewString(),
		Ticker:     intent.Ticker,
		Side:       side,
		PriceCents: price,
		Size:       intent.Size,
		Mode:       intent.Mode,
		TTL:        intent.TTL,
		Reason:     intent.Reason,
		CreatedAt:  now,
	}
}
