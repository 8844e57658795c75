package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/execution"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/internal/storage"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const auditTimeout = 2 * time.Second

// intentsFor converts a decision into risk intents in YES terms. Taker
// decisions become one intent; quotes become one per resting side.
func intentsFor(d engine.Decision, ttl time.Duration) []risk.Intent {
	info := d.Meta()

	taker := func(action risk.Action, price, size int) risk.Intent {
		return risk.Intent{
			Ticker:     info.Ticker,
			Action:     action,
			PriceCents: price,
			Size:       size,
			Mode:       risk.ModeTaker,
			Reason:     info.Reason,
		}
	}
	maker := func(action risk.Action, q engine.Quote) risk.Intent {
		return risk.Intent{
			Ticker:     info.Ticker,
			Action:     action,
			PriceCents: q.PriceCents,
			Size:       q.Quantity,
			Mode:       risk.ModeMaker,
			TTL:        ttl,
			Reason:     info.Reason,
		}
	}

	switch dd := d.(type) {
	case engine.BuyYes:
		return []risk.Intent{taker(risk.ActionBuy, dd.Order.PriceCents, dd.Order.Quantity)}
	case engine.BuyNo:
		// buying NO at p sells YES at 100 - p
		return []risk.Intent{taker(risk.ActionSell, 100-dd.Order.PriceCents, dd.Order.Quantity)}
	case engine.QuoteBoth:
		return []risk.Intent{maker(risk.ActionBuy, dd.Bid), maker(risk.ActionSell, dd.Ask)}
	case engine.QuoteBidOnly:
		return []risk.Intent{maker(risk.ActionBuy, dd.Bid)}
	case engine.QuoteAskOnly:
		return []risk.Intent{maker(risk.ActionSell, dd.Ask)}
	}

	return nil
}

// runDecisionLoop evaluates every tracked market once per interval. It is the
// only goroutine that makes trading decisions.
func (a *App) runDecisionLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.EngineEvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.runCycle()
		}
	}
}

func (a *App) runCycle() {
	timer := prometheus.NewTimer(DecisionCycleDuration)
	defer timer.ObserveDuration()

	a.executor.ExpireOrders()

	for _, ticker := range a.obManager.Tickers() {
		a.processTicker(ticker)
	}
}

// processTicker settles resting quotes the book has crossed, withdraws quotes
// the fresh decision no longer makes, then acts on it.
func (a *App) processTicker(ticker string) {
	if book, ok := a.obManager.Snapshot(ticker); ok {
		a.executor.CheckRestingFills(book)
	}

	d := a.engine.Evaluate(ticker)
	intents := intentsFor(d, a.cfg.EngineOrderTTL)

	a.withdrawUnquoted(ticker, intents)

	if d.Action() == engine.ActionNone {
		return
	}

	for _, intent := range intents {
		a.submit(d, intent)
	}
}

// withdrawUnquoted cancels resting quotes on every contract side the maker
// intents do not cover. Taker and NONE decisions quote neither side.
func (a *App) withdrawUnquoted(ticker string, intents []risk.Intent) {
	quoted := make(map[types.Side]bool, 2)
	for _, intent := range intents {
		if intent.Mode != risk.ModeMaker {
			continue
		}
		side, _ := intent.Contract()
		quoted[side] = true
	}

	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		if quoted[side] {
			continue
		}
		if n := a.executor.CancelSide(ticker, side); n > 0 {
			a.logger.Info("quotes-withdrawn",
				zap.String("ticker", ticker),
				zap.String("side", string(side)),
				zap.Int("count", n))
		}
	}
}

func (a *App) submit(d engine.Decision, intent risk.Intent) {
	if intent.Mode == risk.ModeMaker && a.alreadyResting(intent) {
		IntentsTotal.WithLabelValues("unchanged").Inc()
		return
	}

	now := time.Now()
	rec := newDecisionRecord(d, intent, now)

	err := a.checkIntent(intent)
	if err != nil {
		code := string(risk.ReasonOf(err))
		if code == "" {
			code = "error"
		}
		rec.Accepted = false
		rec.RejectCode = code
		rec.Reason = err.Error()

		IntentsTotal.WithLabelValues("rejected").Inc()
		a.logger.Warn("risk-intent-rejected",
			zap.String("ticker", intent.Ticker),
			zap.String("action", string(intent.Action)),
			zap.Int("price", intent.PriceCents),
			zap.Int("size", intent.Size),
			zap.String("code", code),
			zap.Error(err))

		a.audit(rec)
		return
	}

	a.risk.RecordOrder()
	order := execution.NewOrder(intent, now)

	select {
	case a.orderChan <- order:
		IntentsTotal.WithLabelValues("accepted").Inc()
		a.logger.Info("order-submitted",
			zap.String("order-id", order.ID),
			zap.String("ticker", order.Ticker),
			zap.String("side", string(order.Side)),
			zap.Int("price", order.PriceCents),
			zap.Int("size", order.Size),
			zap.String("mode", string(order.Mode)))
	default:
		OrdersDroppedTotal.Inc()
		rec.Accepted = false
		rec.RejectCode = "queue_full"
		a.logger.Warn("order-channel-full-dropping-order",
			zap.String("ticker", order.Ticker))
	}

	a.audit(rec)
}

// checkIntent runs the risk checks against a fresh copy of the book: the
// limit checks first, then feed freshness and taker slippage.
func (a *App) checkIntent(intent risk.Intent) error {
	book, ok := a.obManager.Snapshot(intent.Ticker)
	if !ok {
		return fmt.Errorf("no orderbook for %s", intent.Ticker)
	}

	mid := book.Mid()
	if mid == 0 {
		mid = float64(intent.PriceCents)
	}

	err := a.risk.CheckIntent(intent, a.ledger.Positions(), a.ledger.OpenOrders(), mid)
	if err != nil {
		return err
	}

	err = a.risk.CheckFeedFresh(book.LastUpdate())
	if err != nil {
		return err
	}

	reference := book.BestYesAsk()
	if intent.Action == risk.ActionSell {
		reference = book.BestYesBid()
	}
	return a.risk.CheckSlippage(intent, reference)
}

// alreadyResting reports whether an identical quote is already working, so
// an unchanged decision does not churn the order rate.
func (a *App) alreadyResting(intent risk.Intent) bool {
	side, price := intent.Contract()
	for _, o := range a.ledger.OpenOrdersFor(intent.Ticker) {
		if o.Side == side && o.PriceCents == price && o.Remaining() == intent.Size {
			return true
		}
	}
	return false
}

func (a *App) audit(rec storage.DecisionRecord) {
	ctx, cancel := context.WithTimeout(a.ctx, auditTimeout)
	defer cancel()

	err := a.storage.StoreDecision(ctx, rec)
	if err != nil {
		a.logger.Warn("decision-store-failed",
			zap.String("ticker", rec.Ticker),
			zap.Error(err))
	}
}

func newDecisionRecord(d engine.Decision, intent risk.Intent, at time.Time) storage.DecisionRecord {
	info := d.Meta()
	side, _ := intent.Contract()

	rec := storage.NewDecisionRecord(info.Ticker, string(d.Action()), info.Reason, at)
	rec.Side = string(side)
	rec.PriceCents = intent.PriceCents
	rec.Size = intent.Size
	rec.Mode = string(intent.Mode)
	rec.FairCents = info.FairCents
	rec.MarketBid = info.MarketBid
	rec.MarketAsk = info.MarketAsk
	return rec
}
