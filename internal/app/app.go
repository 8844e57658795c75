package app

import (
	"context"
	"sync"

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

// App is the main application orchestrator.
type App struct {
	cfg              *config.Config
	logger           *zap.Logger
	healthChecker    *healthprobe.HealthChecker
	httpServer       *httpserver.Server
	cache            cache.Cache
	registry         *markets.Registry
	discoveryService *discovery.Service
	wsPool           *websocket.Pool
	obManager        *orderbook.Manager
	fairValues       *fairvalue.Store
	model            *fairvalue.Model
	ledger           *ledger.Ledger
	killSwitch       *circuitbreaker.KillSwitch
	risk             *risk.Engine
	engine           *engine.Engine
	executor         *execution.Executor
	orderChan        chan execution.Order
	storage          storage.Storage
	telegram         *alerts.Telegram
	opts             Options
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Tickers are subscribed at startup in addition to discovered markets.
	// Their fair values must come from the HTTP API.
	Tickers []string

	// NoDiscovery disables REST polling; only Tickers are traded.
	NoDiscovery bool
}
