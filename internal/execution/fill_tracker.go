package execution

import (
	"github.com/google/uuid"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

// crossed reports whether the book trades through a resting quote.
// A YES bid at p fills once the YES ask is at or below p; a NO bid at q fills
// once the NO ask is at or below q.
func crossed(o ledger.OpenOrder, book *orderbook.Book) bool {
	var ask int
	if o.Side == types.SideNo {
		ask = book.BestNoAsk()
	} else {
		ask = book.BestYesAsk()
	}
	return ask > 0 && ask <= o.PriceCents
}

// CheckRestingFills fills every resting quote on book's ticker that the book
// has crossed. Fills are booked at the quote price with the maker fee.
func (e *Executor) CheckRestingFills(book *orderbook.Book) []ledger.Fill {
	if book == nil || !book.IsValid() {
		return nil
	}

	var fills []ledger.Fill
	for _, o := range e.ledger.OpenOrdersFor(book.Ticker) {
		if !crossed(o, book) {
			continue
		}

		size := o.Remaining()
		if _, ok := e.ledger.FillOpenOrder(o.ID, size); !ok {
			continue
		}

		fee := pricing.MakerFee(size, o.PriceCents)
		fill := ledger.Fill{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Ticker:     o.Ticker,
			Side:       o.Side,
			PriceCents: o.PriceCents,
			Size:       size,
			FeeCents:   fee.TotalFeeCents.InexactFloat64(),
			Maker:      true,
			Time:       e.now(),
		}

		pnl := e.book(fill)
		fills = append(fills, fill)

		e.logger.Info("resting-quote-filled",
			zap.String("order-id", o.ID),
			zap.String("ticker", o.Ticker),
			zap.String("side", string(o.Side)),
			zap.Int("price", o.PriceCents),
			zap.Int("size", size),
			zap.Float64("realized-pnl", pnl))
	}

	return fills
}

// ExpireOrders cancels resting quotes that outlived their TTL.
func (e *Executor) ExpireOrders() int {
	expired := e.ledger.ExpireOrders(e.now())
	if len(expired) > 0 {
		OrdersCanceledTotal.WithLabelValues("expired").Add(float64(len(expired)))
		e.logger.Debug("quotes-expired", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// CancelTicker cancels every resting quote on ticker.
func (e *Executor) CancelTicker(ticker string) int {
	canceled := e.ledger.CancelTicker(ticker)
	if len(canceled) > 0 {
		OrdersCanceledTotal.WithLabelValues("canceled").Add(float64(len(canceled)))
	}
	return len(canceled)
}

// CancelSide cancels the resting quotes on one contract side of ticker.
func (e *Executor) CancelSide(ticker string, side types.Side) int {
	canceled := 0
	for _, o := range e.ledger.OpenOrdersFor(ticker) {
		if o.Side != side {
			continue
		}
		if _, ok := e.ledger.RemoveOpenOrder(o.ID); ok {
			canceled++
		}
	}

	if canceled > 0 {
		OrdersCanceledTotal.WithLabelValues("withdrawn").Add(float64(canceled))
		e.logger.Debug("quotes-withdrawn",
			zap.String("ticker", ticker),
			zap.String("side", string(side)),
			zap.Int("count", canceled))
	}
	return canceled
}
