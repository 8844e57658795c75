package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Decision, discovery and resync goroutines exit on the cancelled context.
	a.wg.Wait()

	err = a.executor.Close()
	if err != nil {
		a.logger.Error("executor-close-error", zap.Error(err))
	}

	err = a.wsPool.Close()
	if err != nil {
		a.logger.Error("websocket-pool-close-error", zap.Error(err))
	}

	err = a.obManager.Close()
	if err != nil {
		a.logger.Error("orderbook-manager-close-error", zap.Error(err))
	}

	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.telegram.Wait()
	a.cache.Close()

	a.logger.Info("application-shutdown-complete",
		zap.Float64("realized-pnl", a.ledger.RealizedPnL()),
		zap.Int("open-orders", len(a.ledger.OpenOrders())))

	return nil
}
