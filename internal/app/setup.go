package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/kalshi-mm/internal/alerts"
	"github.com/mselser95/kalshi-mm/internal/circuitbreaker"
	"github.com/mselser95/kalshi-mm/internal/discovery"
	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/execution"
	"github.com/mselser95/kalshi-mm/internal/fairvalue"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/markets"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/internal/storage"
	"github.com/mselser95/kalshi-mm/pkg/cache"
	"github.com/mselser95/kalshi-mm/pkg/config"
	"github.com/mselser95/kalshi-mm/pkg/healthprobe"
	"github.com/mselser95/kalshi-mm/pkg/httpserver"
	"github.com/mselser95/kalshi-mm/pkg/websocket"
	"go.uber.org/zap"
)

const orderBufferSize = 1000

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: setupHealthChecker(),
		orderChan:     make(chan execution.Order, orderBufferSize),
		opts:          *opts,
		ctx:           ctx,
		cancel:        cancel,
	}

	err := a.setup()
	if err != nil {
		cancel()
		if a.cache != nil {
			a.cache.Close()
		}
		if a.storage != nil {
			_ = a.storage.Close()
		}
		return nil, err
	}

	return a, nil
}

func (a *App) setup() (err error) {
	a.cache, err = setupCache(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup cache: %w", err)
	}

	a.registry = setupRegistry(a.cfg, a.logger, a.cache)
	a.discoveryService = setupDiscoveryService(a.cfg, a.logger, a.registry)
	a.wsPool = setupWebSocketPool(a.cfg, a.logger)
	a.obManager = setupOrderbookManager(a.logger, a.wsPool)

	a.fairValues, err = setupFairValueStore(a.cfg, a.logger, a.cache)
	if err != nil {
		return fmt.Errorf("setup fair value store: %w", err)
	}
	a.model = setupModel(a.cfg, a.logger, a.registry, a.fairValues, a.obManager)

	a.ledger = ledger.New(&ledger.Config{Logger: a.logger})

	a.killSwitch, err = circuitbreaker.New(&circuitbreaker.Config{Logger: a.logger})
	if err != nil {
		return fmt.Errorf("setup kill switch: %w", err)
	}

	a.risk, err = setupRisk(a.cfg, a.logger, a.killSwitch)
	if err != nil {
		return fmt.Errorf("setup risk engine: %w", err)
	}

	a.engine, err = setupEngine(a.cfg, a.logger, a.obManager, a.fairValues, a.ledger, a.risk)
	if err != nil {
		return fmt.Errorf("setup decision engine: %w", err)
	}

	a.storage, err = setupStorage(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	a.executor, err = setupExecutor(a.cfg, a.logger, a.orderChan, a.ledger, a.risk, a.storage)
	if err != nil {
		return fmt.Errorf("setup executor: %w", err)
	}

	a.telegram, err = setupTelegram(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup telegram: %w", err)
	}
	a.killSwitch.OnActivate(a.onKillSwitch)

	a.registerHealthChecks()
	a.httpServer = setupHTTPServer(a)

	return nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

func (a *App) registerHealthChecks() {
	a.healthChecker.AddCheck("feed", func() error {
		if a.wsPool.Connected() == 0 {
			return errors.New("no websocket connection")
		}
		return nil
	})
	a.healthChecker.AddCheck("kill-switch", func() error {
		if status := a.killSwitch.GetStatus(); status.Active {
			return fmt.Errorf("active: %s", status.Reason)
		}
		return nil
	})
}

func setupHTTPServer(a *App) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		Books:         a.obManager,
		Engine:        a.engine,
		Risk:          a.risk,
		Ledger:        a.ledger,
		KillSwitch:    a.killSwitch,
		FairValues:    a.fairValues,
		Model:         a.model,
	})
}

func setupCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(cache.DefaultRistrettoConfig(cfg.CacheMaxItems, logger))
}

func setupRegistry(cfg *config.Config, logger *zap.Logger, c cache.Cache) *markets.Registry {
	return markets.New(&markets.Config{
		Cache:  c,
		TTL:    24 * time.Hour,
		Logger: logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, registry *markets.Registry) *discovery.Service {
	client := discovery.NewClient(cfg.KalshiAPIURL, cfg.DiscoveryRequestRate, logger)
	return discovery.New(&discovery.Config{
		Client:       client,
		Registry:     registry,
		PollInterval: cfg.DiscoveryPollInterval,
		Series:       cfg.DiscoverySeries,
		Underlyings:  cfg.DiscoveryUnderlyings,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		Logger:       logger,
	})
}

func setupWebSocketPool(cfg *config.Config, logger *zap.Logger) *websocket.Pool {
	return websocket.NewPool(websocket.PoolConfig{
		Size:                  cfg.WSPoolSize,
		WSUrl:                 cfg.KalshiWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		ResyncInterval:        cfg.WSResyncInterval,
		Logger:                logger,
	})
}

func setupOrderbookManager(logger *zap.Logger, wsPool *websocket.Pool) *orderbook.Manager {
	return orderbook.New(&orderbook.Config{
		Logger:         logger,
		MessageChannel: wsPool.MessageChan(),
	})
}

func setupFairValueStore(cfg *config.Config, logger *zap.Logger, c cache.Cache) (*fairvalue.Store, error) {
	return fairvalue.NewStore(&fairvalue.StoreConfig{
		Cache:  c,
		TTL:    cfg.FairValueTTL,
		Logger: logger,
	})
}

func setupModel(
	cfg *config.Config,
	logger *zap.Logger,
	registry *markets.Registry,
	store *fairvalue.Store,
	books *orderbook.Manager,
) *fairvalue.Model {
	return fairvalue.NewModel(&fairvalue.ModelConfig{
		Registry:                registry,
		Store:                   store,
		Books:                   books,
		FallbackVol:             cfg.PricerFallbackVol,
		SettlementWindowSeconds: cfg.PricerSettlementWindow,
		BasisRiskBuffer:         cfg.PricerBasisBuffer,
		Logger:                  logger,
	})
}

func setupRisk(cfg *config.Config, logger *zap.Logger, ks *circuitbreaker.KillSwitch) (*risk.Engine, error) {
	return risk.New(&risk.Config{
		Logger: logger,
		Limits: risk.Limits{
			MaxNotionalPerMarket: cfg.RiskMaxNotionalPerMarket,
			MaxInventoryPerToken: cfg.RiskMaxInventory,
			MaxOpenOrdersTotal:   cfg.RiskMaxOpenOrders,
			MaxOrdersPerMin:      cfg.RiskMaxOrdersPerMin,
			MaxDailyLoss:         cfg.RiskMaxDailyLoss,
			MaxTakerSlippage:     cfg.RiskMaxTakerSlippage,
			FeedStale:            cfg.RiskFeedStale,
		},
		KillSwitch: ks,
	})
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	books *orderbook.Manager,
	fairValues *fairvalue.Store,
	led *ledger.Ledger,
	riskEngine *risk.Engine,
) (*engine.Engine, error) {
	return engine.New(&engine.Config{
		Logger:         logger,
		Books:          books,
		FairValues:     fairValues,
		Positions:      led,
		Risk:           riskEngine,
		BaseSize:       cfg.EngineBaseSize,
		MaxPosition:    cfg.EngineMaxPosition,
		BaseHalfSpread: cfg.EngineBaseHalfSpread,
		SkewDivisor:    cfg.EngineSkewDivisor,
		CrossClamp:     cfg.EngineCrossClamp,
		TakerEnabled:   cfg.EngineTakerEnabled,
		MakerEnabled:   cfg.EngineMakerEnabled,
		MaxBookAge:     cfg.EngineMaxBookAge,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageMode {
	case config.StoragePostgres:
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Migrate:  cfg.PostgresMigrate,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil

	case config.StorageSQLite:
		sqliteStorage, err := storage.NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return sqliteStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupExecutor(
	cfg *config.Config,
	logger *zap.Logger,
	orders <-chan execution.Order,
	led *ledger.Ledger,
	riskEngine *risk.Engine,
	store storage.Storage,
) (*execution.Executor, error) {
	return execution.New(&execution.Config{
		Mode:         cfg.ExecutionMode,
		Logger:       logger,
		OrderChannel: orders,
		Ledger:       led,
		PnL:          riskEngine,
		Storage:      store,
	})
}

func setupTelegram(cfg *config.Config, logger *zap.Logger) (*alerts.Telegram, error) {
	return alerts.New(&alerts.Config{
		Enabled: cfg.TelegramEnabled,
		Token:   cfg.TelegramToken,
		ChatID:  cfg.TelegramChatID,
		Logger:  logger,
	})
}

// onKillSwitch pulls every resting quote and alerts the operator.
func (a *App) onKillSwitch(reason string) {
	canceled := 0
	for _, ticker := range a.openOrderTickers() {
		canceled += a.executor.CancelTicker(ticker)
	}

	a.logger.Warn("kill-switch-quotes-canceled",
		zap.Int("canceled", canceled),
		zap.String("reason", reason))

	a.telegram.SendAsync(fmt.Sprintf("Kalshi MM kill switch activated: %s (%d quotes canceled)", reason, canceled))
}

func (a *App) openOrderTickers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range a.ledger.OpenOrders() {
		if _, ok := seen[o.Ticker]; ok {
			continue
		}
		seen[o.Ticker] = struct{}{}
		out = append(out, o.Ticker)
	}
	return out
}
