package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/internal/storage"
	"go.uber.org/zap"
)

// PnLSink receives realized PnL from fills.
type PnLSink interface {
	UpdateDailyPnL(delta float64)
}

// Result is the outcome of executing one order.
type Result struct {
	Order   Order
	Fill    *ledger.Fill // nil when the order rests
	Resting bool
	PnL     float64
	Error   error
}

// Executor executes accepted orders.
type Executor struct {
	mode      string // only "paper" is supported
	logger    *zap.Logger
	orderChan <-chan Order
	ledger    *ledger.Ledger
	pnl       PnLSink
	store     storage.Storage
	now       func() time.Time
	ctx       context.Context
	wg        sync.WaitGroup

	mu               sync.Mutex
	cumulativeProfit float64
}

// Config holds executor configuration.
type Config struct {
	Mode         string
	Logger       *zap.Logger
	OrderChannel <-chan Order
	Ledger       *ledger.Ledger
	PnL          PnLSink
	Storage      storage.Storage // optional
	Clock        func() time.Time
}

// New creates a new executor.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Ledger == nil || cfg.PnL == nil {
		return nil, fmt.Errorf("ledger and pnl sink are required")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "paper"
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Executor{
		mode:      mode,
		logger:    cfg.Logger,
		orderChan: cfg.OrderChannel,
		ledger:    cfg.Ledger,
		pnl:       cfg.PnL,
		store:     cfg.Storage,
		now:       clock,
		ctx:       context.Background(),
	}, nil
}

// Start starts the execution loop.
func (e *Executor) Start(ctx context.Context) error {
	if e.orderChan == nil {
		return fmt.Errorf("order channel not configured")
	}

	e.ctx = ctx
	e.logger.Info("executor-starting", zap.String("mode", e.mode))

	e.wg.Add(1)
	go e.executionLoop()

	return nil
}

func (e *Executor) executionLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("executor-stopping")
			return
		case order, ok := <-e.orderChan:
			if !ok {
				e.logger.Info("order-channel-closed")
				return
			}

			start := time.Now()
			result := e.Execute(order)
			ExecutionDurationSeconds.Observe(time.Since(start).Seconds())

			if result.Error != nil {
				e.logger.Error("execution-failed",
					zap.String("order-id", order.ID),
					zap.String("ticker", order.Ticker),
					zap.Error(result.Error))
				ExecutionErrorsTotal.Inc()
			}
		}
	}
}

// Execute executes one order synchronously.
func (e *Executor) Execute(order Order) *Result {
	OrdersTotal.WithLabelValues(string(order.Mode), string(order.Side)).Inc()

	switch e.mode {
	case "paper":
		return e.executePaper(order)
	default:
		return &Result{Order: order, Error: fmt.Errorf("unknown execution mode: %s", e.mode)}
	}
}

// executePaper fills taker orders at their limit and rests maker orders.
func (e *Executor) executePaper(order Order) *Result {
	if order.Size <= 0 || order.PriceCents < 1 || order.PriceCents > 99 {
		return &Result{Order: order, Error: fmt.Errorf("invalid order: %d @ %dc", order.Size, order.PriceCents)}
	}

	if order.Mode == risk.ModeMaker {
		e.rest(order)
		return &Result{Order: order, Resting: true}
	}

	fee := pricing.TakerFee(order.Size, order.PriceCents)
	fill := ledger.Fill{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		Ticker:     order.Ticker,
		Side:       order.Side,
		PriceCents: order.PriceCents,
		Size:       order.Size,
		FeeCents:   fee.TotalFeeCents.InexactFloat64(),
		Time:       e.now(),
	}

	pnl := e.book(fill)

	e.logger.Info("paper-trade-executed",
		zap.String("order-id", order.ID),
		zap.String("ticker", order.Ticker),
		zap.String("side", string(order.Side)),
		zap.Int("price", order.PriceCents),
		zap.Int("size", order.Size),
		zap.Float64("fee-cents", fill.FeeCents),
		zap.Float64("realized-pnl", pnl),
		zap.String("reason", order.Reason))

	return &Result{Order: order, Fill: &fill, PnL: pnl}
}

// rest places a maker quote, replacing any resting quote on the same side.
func (e *Executor) rest(order Order) {
	for _, o := range e.ledger.OpenOrdersFor(order.Ticker) {
		if o.Side == order.Side {
			e.ledger.RemoveOpenOrder(o.ID)
			OrdersCanceledTotal.WithLabelValues("replaced").Inc()
		}
	}

	e.ledger.AddOpenOrder(ledger.OpenOrder{
		ID:         order.ID,
		Ticker:     order.Ticker,
		Side:       order.Side,
		PriceCents: order.PriceCents,
		Size:       order.Size,
		CreatedAt:  order.CreatedAt,
		TTL:        order.TTL,
	})

	e.logger.Debug("quote-resting",
		zap.String("order-id", order.ID),
		zap.String("ticker", order.Ticker),
		zap.String("side", string(order.Side)),
		zap.Int("price", order.PriceCents),
		zap.Int("size", order.Size))
}

// book records a fill in the ledger, the daily PnL and storage.
func (e *Executor) book(fill ledger.Fill) float64 {
	pnl := e.ledger.ProcessFill(fill)
	e.pnl.UpdateDailyPnL(pnl)

	FillsTotal.WithLabelValues(fillKind(fill)).Inc()
	FeesPaidCents.Add(fill.FeeCents)
	ProfitRealizedUSD.Add(pnl)

	e.mu.Lock()
	e.cumulativeProfit += pnl
	e.mu.Unlock()

	if e.store != nil {
		ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
		defer cancel()

		err := e.store.StoreFill(ctx, fill)
		if err != nil {
			e.logger.Warn("fill-store-failed",
				zap.String("fill-id", fill.ID),
				zap.Error(err))
		}
	}

	return pnl
}

// CumulativeProfit returns the realized PnL booked by this executor.
func (e *Executor) CumulativeProfit() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cumulativeProfit
}

// Close waits for the execution loop to exit.
func (e *Executor) Close() error {
	e.logger.Info("closing-executor")
	e.wg.Wait()

	e.logger.Info("executor-closed",
		zap.Float64("total-profit-usd", e.CumulativeProfit()),
		zap.String("mode", e.mode))

	return nil
}

func fillKind(f ledger.Fill) string {
	if f.Maker {
		return "maker"
	}
	return "taker"
}
