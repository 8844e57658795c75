package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
)

// Limits are the hard risk limits. They are fixed after construction.
type Limits struct {
	MaxNotionalPerMarket float64       // dollars
	MaxInventoryPerToken int           // contracts, absolute net position
	MaxOpenOrdersTotal   int           // resting orders across all markets
	MaxOrdersPerMin      int           // orders in any trailing 60s window
	MaxDailyLoss         float64       // dollars, positive
	MaxTakerSlippage     int           // cents from the reference price
	FeedStale            time.Duration // max book age before trading pauses
}

// DefaultLimits returns conservative paper-trading limits.
func DefaultLimits() Limits {
	return Limits{
		MaxNotionalPerMarket: 500,
		MaxInventoryPerToken: 100,
		MaxOpenOrdersTotal:   50,
		MaxOrdersPerMin:      60,
		MaxDailyLoss:         100,
		MaxTakerSlippage:     2,
		FeedStale:            5 * time.Second,
	}
}

// Validate rejects missing, non-positive or non-finite limits.
func (l Limits) Validate() error {
	if l.MaxNotionalPerMarket <= 0 || math.IsNaN(l.MaxNotionalPerMarket) || math.IsInf(l.MaxNotionalPerMarket, 0) {
		return fmt.Errorf("max notional per market must be positive and finite")
	}
	if l.MaxInventoryPerToken <= 0 {
		return fmt.Errorf("max inventory per token must be positive")
	}
	if l.MaxOpenOrdersTotal <= 0 {
		return fmt.Errorf("max open orders must be positive")
	}
	if l.MaxOrdersPerMin <= 0 {
		return fmt.Errorf("max orders per minute must be positive")
	}
	if l.MaxDailyLoss <= 0 || math.IsNaN(l.MaxDailyLoss) || math.IsInf(l.MaxDailyLoss, 0) {
		return fmt.Errorf("max daily loss must be positive and finite")
	}
	if l.MaxTakerSlippage < 0 {
		return fmt.Errorf("max taker slippage cannot be negative")
	}
	if l.FeedStale <= 0 {
		return fmt.Errorf("feed stale threshold must be positive")
	}
	return nil
}

// Action is the direction of an intent in YES terms.
type Action string

// Intent actions.
const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Mode is how an intent reaches the book.
type Mode string

// Intent modes.
const (
	ModeTaker Mode = "taker"
	ModeMaker Mode = "maker"
)

// Intent is a desired order before risk checks. Price and action are in YES
// terms: buying NO at q is selling YES at 100-q.
type Intent struct {
	Ticker     string        `json:"ticker"`
	Action     Action        `json:"action"`
	PriceCents int           `json:"price_cents"`
	Size       int           `json:"size"`
	Mode       Mode          `json:"mode"`
	TTL        time.Duration `json:"ttl"`
	Reason     string        `json:"reason"`
}

// Contract returns the Kalshi contract side and price the intent buys.
func (i Intent) Contract() (types.Side, int) {
	if i.Action == ActionSell {
		return types.SideNo, 100 - i.PriceCents
	}
	return types.SideYes, i.PriceCents
}

// SignedSize returns Size for buys and -Size for sells.
func (i Intent) SignedSize() int {
	if i.Action == ActionSell {
		return -i.Size
	}
	return i.Size
}
