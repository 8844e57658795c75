package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	gcInterval    = time.Minute
	resyncTimeout = 30 * time.Second
)

// handleNewMarkets subscribes to new markets as they are discovered.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case market, ok := <-a.discoveryService.NewMarketsChan():
			if !ok {
				return
			}

			a.subscribe(market.Ticker)
		}
	}
}

func (a *App) subscribe(tickers ...string) {
	err := a.wsPool.Subscribe(a.ctx, tickers)
	if err != nil {
		a.logger.Error("subscribe-failed",
			zap.Strings("tickers", tickers),
			zap.Error(err))
		return
	}

	a.logger.Info("subscribed-to-markets", zap.Strings("tickers", tickers))
}

// handleClosedMarkets removes markets discovery reports closed, and sweeps
// the registry for markets whose close time has passed.
func (a *App) handleClosedMarkets() {
	defer a.wg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	closed := a.discoveryService.ClosedMarketsChan()

	for {
		select {
		case <-a.ctx.Done():
			return
		case t, ok := <-closed:
			if !ok {
				closed = nil
				continue
			}
			a.removeMarket(t)
		case <-ticker.C:
			for _, t := range a.registry.Closed(time.Now()) {
				a.removeMarket(t)
			}
		}
	}
}

// removeMarket drops every piece of state held for ticker.
func (a *App) removeMarket(ticker string) {
	canceled := a.executor.CancelTicker(ticker)

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	err := a.wsPool.Unsubscribe(ctx, []string{ticker})
	cancel()
	if err != nil {
		a.logger.Warn("unsubscribe-failed",
			zap.String("ticker", ticker),
			zap.Error(err))
	}

	a.obManager.GC([]string{ticker})
	a.registry.Remove(ticker)
	a.fairValues.Delete(ticker)

	MarketsRemovedTotal.Inc()
	a.logger.Info("market-removed",
		zap.String("ticker", ticker),
		zap.Int("quotes-canceled", canceled))
}

// handleResyncs drains the order book manager's resync requests. Each runs on
// its own goroutine because the pool rate limits resyncs per ticker.
func (a *App) handleResyncs() {
	defer a.wg.Done()

	requests := a.obManager.ResyncChan()

	for {
		select {
		case <-a.ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}

			a.wg.Add(1)
			go func() {
				defer a.wg.Done()

				ctx, cancel := context.WithTimeout(a.ctx, resyncTimeout)
				defer cancel()

				err := a.wsPool.Resync(ctx, req.Ticker)
				if err != nil {
					ResyncRequestsTotal.WithLabelValues("failed").Inc()
					a.logger.Warn("resync-failed",
						zap.String("ticker", req.Ticker),
						zap.String("reason", req.Reason),
						zap.Error(err))
					a.obManager.ResyncFailed(req.Ticker)
					return
				}

				ResyncRequestsTotal.WithLabelValues("sent").Inc()
				a.logger.Info("resync-requested",
					zap.String("ticker", req.Ticker),
					zap.String("reason", req.Reason))
			}()
		}
	}
}
