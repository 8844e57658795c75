package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Strings("series", a.cfg.DiscoverySeries),
		zap.Strings("tickers", a.opts.Tickers),
		zap.Duration("eval-interval", a.cfg.EngineEvalInterval),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		_ = a.Shutdown()
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.KalshiWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	err := a.wsPool.Start()
	if err != nil {
		return fmt.Errorf("start websocket pool: %w", err)
	}

	err = a.obManager.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start orderbook manager: %w", err)
	}

	a.wg.Add(1)
	go a.handleResyncs()

	err = a.executor.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start executor: %w", err)
	}

	if len(a.opts.Tickers) > 0 {
		a.subscribe(a.opts.Tickers...)
	}

	if !a.opts.NoDiscovery {
		a.wg.Add(3)
		go a.runDiscoveryService()
		go a.handleNewMarkets()
		go a.handleClosedMarkets()
	}

	a.wg.Add(1)
	go a.runDecisionLoop()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscoveryService() {
	defer a.wg.Done()
	err := a.discoveryService.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-service-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
