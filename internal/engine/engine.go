package engine

import (
	"fmt"
	"time"

	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookSource provides copy-out order book snapshots.
type BookSource interface {
	Snapshot(ticker string) (*orderbook.Book, bool)
}

// FairValueSource provides the model fair value of YES in cents.
type FairValueSource interface {
	FairValue(ticker string) (int, bool)
}

// PositionSource provides the signed YES-equivalent net position.
type PositionSource interface {
	NetPosition(ticker string) int
}

// RiskState reports whether trading is halted.
type RiskState interface {
	TradingHalted() (bool, string)
}

// Config holds decision engine configuration.
type Config struct {
	Logger     *zap.Logger
	Books      BookSource
	FairValues FairValueSource
	Positions  PositionSource
	Risk       RiskState

	BaseSize       int // contracts per order
	MaxPosition    int // absolute net position limit per market
	BaseHalfSpread int // cents
	SkewDivisor    int // contracts of inventory per cent of skew
	CrossClamp     int // cents a quote may sit through the market
	TakerEnabled   bool
	MakerEnabled   bool

	// MaxBookAge of zero disables the staleness gate.
	MaxBookAge time.Duration
	Clock      func() time.Time
}

// DefaultConfig returns the stock sizing and spread parameters with both
// maker and taker enabled. Collaborators must still be set.
func DefaultConfig() Config {
	return Config{
		BaseSize:       10,
		MaxPosition:    100,
		BaseHalfSpread: 2,
		SkewDivisor:    10,
		CrossClamp:     1,
		TakerEnabled:   true,
		MakerEnabled:   true,
		MaxBookAge:     5 * time.Second,
	}
}

// Engine turns a book, a fair value and a position into one decision per market.
// It holds no per-market state of its own.
type Engine struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a decision engine.
func New(cfg *Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Books == nil || cfg.FairValues == nil || cfg.Positions == nil || cfg.Risk == nil {
		return nil, fmt.Errorf("books, fair values, positions and risk are required")
	}
	if cfg.BaseSize <= 0 {
		return nil, fmt.Errorf("base size must be positive")
	}
	if cfg.MaxPosition <= 0 {
		return nil, fmt.Errorf("max position must be positive")
	}
	if cfg.SkewDivisor <= 0 {
		return nil, fmt.Errorf("skew divisor must be positive")
	}
	if cfg.BaseHalfSpread < 0 || cfg.CrossClamp < 0 {
		return nil, fmt.Errorf("half spread and cross clamp cannot be negative")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{cfg: *cfg, logger: cfg.Logger, now: clock}, nil
}

// Evaluate decides what to do in ticker's market.
//
// Gates run first: a halt, a missing or invalid book, a stale book or a
// missing fair value all yield NoAction. A taker trade is taken when an edge
// clears fees; otherwise the engine quotes around fair value.
func (e *Engine) Evaluate(ticker string) Decision {
	timer := prometheus.NewTimer(EvaluationDuration)
	defer timer.ObserveDuration()

	d := e.evaluate(ticker)
	DecisionsTotal.WithLabelValues(string(d.Action())).Inc()

	e.logger.Debug("decision-evaluated",
		zap.String("ticker", ticker),
		zap.String("action", string(d.Action())),
		zap.String("reason", d.Meta().Reason))

	return d
}

func (e *Engine) evaluate(ticker string) Decision {
	if halted, why := e.cfg.Risk.TradingHalted(); halted {
		return none(Info{Ticker: ticker}, "trading halted: %s", why)
	}

	book, ok := e.cfg.Books.Snapshot(ticker)
	if !ok || !book.IsValid() {
		return none(Info{Ticker: ticker}, "no valid orderbook")
	}
	if e.cfg.MaxBookAge > 0 && book.IsStale(e.now(), e.cfg.MaxBookAge) {
		return none(Info{Ticker: ticker}, "stale orderbook")
	}

	fair, ok := e.cfg.FairValues.FairValue(ticker)
	if !ok {
		return none(Info{Ticker: ticker}, "no fair value")
	}
	fair = clampInt(fair, 1, 99)

	bid := book.BestYesBid()
	ask := book.BestYesAsk()
	if ask == 0 {
		ask = 100
	}

	info := Info{Ticker: ticker, FairCents: fair, MarketBid: bid, MarketAsk: ask}
	net := e.cfg.Positions.NetPosition(ticker)

	if e.cfg.TakerEnabled {
		if d, ok := e.evaluateTaker(info, net); ok {
			return d
		}
	}

	if e.cfg.MakerEnabled {
		return e.makerQuotes(info, net)
	}

	return none(info, "no taker edge and maker disabled")
}

// evaluateTaker returns a decision when a taker edge clears fees. The second
// result is false when the engine should fall through to quoting.
func (e *Engine) evaluateTaker(info Info, net int) (Decision, bool) {
	fair, bid, ask := info.FairCents, info.MarketBid, info.MarketAsk

	buyEdge := fair - ask
	minBuy := pricing.MinProfitableEdgeTaker(ask, e.cfg.BaseSize)
	buyClears := decimal.NewFromInt(int64(buyEdge)).GreaterThan(minBuy)

	sellEdge := bid - fair
	minSell := pricing.MinProfitableEdgeTaker(bid, e.cfg.BaseSize)
	sellClears := bid > 0 && decimal.NewFromInt(int64(sellEdge)).GreaterThan(minSell)

	if buyClears && sellClears {
		if buyEdge >= sellEdge {
			sellClears = false
		} else {
			buyClears = false
		}
	}

	switch {
	case buyClears:
		capacity := e.cfg.MaxPosition - net
		if capacity <= 0 {
			return none(info, "position limit (long): %d", net), true
		}
		info.Reason = fmt.Sprintf("cheap YES: edge=%dc > min=%sc", buyEdge, minBuy)
		return BuyYes{
			Info: info,
			Order: TakerOrder{
				Side:       types.SideYes,
				PriceCents: ask,
				Quantity:   min(e.cfg.BaseSize, capacity),
				EdgeCents:  buyEdge,
			},
		}, true

	case sellClears:
		capacity := e.cfg.MaxPosition + net
		if capacity <= 0 {
			return none(info, "position limit (short): %d", net), true
		}
		info.Reason = fmt.Sprintf("expensive YES: edge=%dc > min=%sc", sellEdge, minSell)
		return BuyNo{
			Info: info,
			Order: TakerOrder{
				Side:       types.SideNo,
				PriceCents: 100 - bid,
				Quantity:   min(e.cfg.BaseSize, capacity),
				EdgeCents:  sellEdge,
			},
		}, true
	}

	return nil, false
}

// makerQuotes prices a two-sided quote around fair value, skewed against
// inventory and kept from improving the market by more than CrossClamp.
func (e *Engine) makerQuotes(info Info, net int) Decision {
	fair, mktBid, mktAsk := info.FairCents, info.MarketBid, info.MarketAsk

	minHalf := int(pricing.MinProfitableSpreadMaker(fair, e.cfg.BaseSize).IntPart())
	halfSpread := max(e.cfg.BaseHalfSpread, minHalf)
	skew := floorDiv(net, e.cfg.SkewDivisor)

	bidPrice := fair - halfSpread - skew
	askPrice := fair + halfSpread - skew

	if mktBid > 0 {
		bidPrice = min(bidPrice, mktBid+e.cfg.CrossClamp)
	}
	if mktAsk < 100 {
		askPrice = max(askPrice, mktAsk-e.cfg.CrossClamp)
	}

	bidPrice = clampInt(bidPrice, 1, 98)
	askPrice = clampInt(askPrice, 2, 99)

	if bidPrice >= askPrice {
		return none(info, "insufficient room: market too tight for maker (spread would be %dc)", askPrice-bidPrice)
	}

	// A two-sided market narrower than our full spread leaves no room to quote.
	if mktBid > 0 && mktAsk < 100 && mktAsk-mktBid < 2*halfSpread {
		return none(info, "insufficient room: market spread %dc < required %dc", mktAsk-mktBid, 2*halfSpread)
	}

	bidQty := min(e.cfg.BaseSize, e.cfg.MaxPosition-net)
	askQty := min(e.cfg.BaseSize, e.cfg.MaxPosition+net)

	bid := Quote{PriceCents: bidPrice, Quantity: bidQty}
	ask := Quote{PriceCents: askPrice, Quantity: askQty}

	switch {
	case bidQty <= 0 && askQty <= 0:
		return none(info, "position limits prevent quoting")
	case bidQty <= 0:
		info.Reason = "long position limit: ask only"
		return QuoteAskOnly{Info: info, Ask: ask}
	case askQty <= 0:
		info.Reason = "short position limit: bid only"
		return QuoteBidOnly{Info: info, Bid: bid}
	default:
		info.Reason = fmt.Sprintf("quoting around fair=%dc with %dc half-spread", fair, halfSpread)
		return QuoteBoth{Info: info, Bid: bid, Ask: ask}
	}
}

func none(info Info, format string, args ...any) NoAction {
	info.Reason = fmt.Sprintf(format, args...)
	return NoAction{Info: info}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
