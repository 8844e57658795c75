package engine

import (
	"fmt"

	"github.com/mselser95/kalshi-mm/pkg/types"
)

// Action names a decision variant.
type Action string

// Decision actions.
const (
	ActionNone         Action = "NONE"
	ActionBuyYes       Action = "BUY_YES"
	ActionBuyNo        Action = "BUY_NO"
	ActionQuoteBoth    Action = "QUOTE_BOTH"
	ActionQuoteBidOnly Action = "QUOTE_BID_ONLY"
	ActionQuoteAskOnly Action = "QUOTE_ASK_ONLY"
)

// Info is carried by every decision.
type Info struct {
	Ticker    string `json:"ticker"`
	Reason    string `json:"reason"`
	FairCents int    `json:"fair_cents,omitempty"`
	MarketBid int    `json:"market_bid,omitempty"`
	MarketAsk int    `json:"market_ask,omitempty"`
}

// Decision is the engine's output for one market. The variants are NoAction,
// BuyYes, BuyNo, QuoteBoth, QuoteBidOnly and QuoteAskOnly.
type Decision interface {
	Action() Action
	Meta() Info
	isDecision()
}

// TakerOrder crosses the spread.
type TakerOrder struct {
	Side       types.Side `json:"side"`
	PriceCents int        `json:"price_cents"` // price of the contract bought
	Quantity   int        `json:"quantity"`
	EdgeCents  int        `json:"edge_cents"`
}

// Quote is one resting maker price in YES terms.
type Quote struct {
	PriceCents int `json:"price_cents"`
	Quantity   int `json:"quantity"`
}

// NoAction means do nothing this cycle.
type NoAction struct {
	Info
}

// BuyYes lifts the YES ask.
type BuyYes struct {
	Info
	Order TakerOrder
}

// BuyNo hits the YES bid by buying NO at 100 - bid.
type BuyNo struct {
	Info
	Order TakerOrder
}

// QuoteBoth rests a bid and an ask.
type QuoteBoth struct {
	Info
	Bid Quote
	Ask Quote
}

// QuoteBidOnly rests only a bid; the short side is at its limit.
type QuoteBidOnly struct {
	Info
	Bid Quote
}

// QuoteAskOnly rests only an ask; the long side is at its limit.
type QuoteAskOnly struct {
	Info
	Ask Quote
}

func (NoAction) Action() Action     { return ActionNone }
func (BuyYes) Action() Action       { return ActionBuyYes }
func (BuyNo) Action() Action        { return ActionBuyNo }
func (QuoteBoth) Action() Action    { return ActionQuoteBoth }
func (QuoteBidOnly) Action() Action { return ActionQuoteBidOnly }
func (QuoteAskOnly) Action() Action { return ActionQuoteAskOnly }

func (d NoAction) Meta() Info     { return d.Info }
func (d BuyYes) Meta() Info       { return d.Info }
func (d BuyNo) Meta() Info        { return d.Info }
func (d QuoteBoth) Meta() Info    { return d.Info }
func (d QuoteBidOnly) Meta() Info { return d.Info }
func (d QuoteAskOnly) Meta() Info { return d.Info }

func (NoAction) isDecision()     {}
func (BuyYes) isDecision()       {}
func (BuyNo) isDecision()        {}
func (QuoteBoth) isDecision()    {}
func (QuoteBidOnly) isDecision() {}
func (QuoteAskOnly) isDecision() {}

// View is the flat JSON form of a decision.
type View struct {
	Action Action      `json:"action"`
	Info   Info        `json:"info"`
	Taker  *TakerOrder `json:"taker,omitempty"`
	Bid    *Quote      `json:"bid,omitempty"`
	Ask    *Quote      `json:"ask,omitempty"`
}

// ToView flattens d for serialization.
func ToView(d Decision) View {
	v := View{Action: d.Action(), Info: d.Meta()}

	switch dd := d.(type) {
	case BuyYes:
		v.Taker = &dd.Order
	case BuyNo:
		v.Taker = &dd.Order
	case QuoteBoth:
		v.Bid, v.Ask = &dd.Bid, &dd.Ask
	case QuoteBidOnly:
		v.Bid = &dd.Bid
	case QuoteAskOnly:
		v.Ask = &dd.Ask
	}

	return v
}

// Describe renders a one-line summary of d.
func Describe(d Decision) string {
	info := d.Meta()

	switch dd := d.(type) {
	case BuyYes:
		return fmt.Sprintf("%s: BUY YES %d @ %dc (edge %dc)", info.Ticker, dd.Order.Quantity, dd.Order.PriceCents, dd.Order.EdgeCents)
	case BuyNo:
		return fmt.Sprintf("%s: BUY NO %d @ %dc (edge %dc)", info.Ticker, dd.Order.Quantity, dd.Order.PriceCents, dd.Order.EdgeCents)
	case QuoteBoth:
		return fmt.Sprintf("%s: QUOTE %dc x %d / %dc x %d", info.Ticker, dd.Bid.PriceCents, dd.Bid.Quantity, dd.Ask.PriceCents, dd.Ask.Quantity)
	case QuoteBidOnly:
		return fmt.Sprintf("%s: BID %dc x %d", info.Ticker, dd.Bid.PriceCents, dd.Bid.Quantity)
	case QuoteAskOnly:
		return fmt.Sprintf("%s: ASK %dc x %d", info.Ticker, dd.Ask.PriceCents, dd.Ask.Quantity)
	default:
		return fmt.Sprintf("%s: NO ACTION - %s", info.Ticker, info.Reason)
	}
}
