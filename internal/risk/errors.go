package risk

import (
	"errors"
	"fmt"
)

// Reason is a machine-readable rejection code.
type Reason string

// Rejection reasons.
const (
	ReasonKillSwitch Reason = "kill_switch"
	ReasonInventory  Reason = "inventory_limit"
	ReasonNotional   Reason = "notional_limit"
	ReasonOpenOrders Reason = "open_order_limit"
	ReasonRate       Reason = "rate_limit"
	ReasonDailyLoss  Reason = "daily_loss_limit"
	ReasonSlippage   Reason = "taker_slippage"
	ReasonFeedStale  Reason = "feed_stale"
)

// Sentinel errors, one per reason.
var (
	ErrKillSwitchActive = errors.New("kill switch is active")
	ErrInventoryLimit   = errors.New("inventory limit exceeded")
	ErrNotionalLimit    = errors.New("notional limit exceeded")
	ErrOpenOrderLimit   = errors.New("open order limit reached")
	ErrRateLimit        = errors.New("order rate limit exceeded")
	ErrDailyLossLimit   = errors.New("daily loss limit exceeded")
	ErrTakerSlippage    = errors.New("taker slippage exceeded")
	ErrFeedStale        = errors.New("market feed is stale")
)

var sentinels = map[Reason]error{
	ReasonKillSwitch: ErrKillSwitchActive,
	ReasonInventory:  ErrInventoryLimit,
	ReasonNotional:   ErrNotionalLimit,
	ReasonOpenOrders: ErrOpenOrderLimit,
	ReasonRate:       ErrRateLimit,
	ReasonDailyLoss:  ErrDailyLossLimit,
	ReasonSlippage:   ErrTakerSlippage,
	ReasonFeedStale:  ErrFeedStale,
}

// Rejection is a failed risk check.
type Rejection struct {
	Reason Reason
	Detail string
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", sentinels[r.Reason], r.Detail)
}

// Unwrap returns the reason's sentinel error.
func (r *Rejection) Unwrap() error {
	return sentinels[r.Reason]
}

// ReasonOf returns the rejection reason of err, or "" if err is not a Rejection.
func ReasonOf(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}
