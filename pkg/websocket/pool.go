package websocket

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

// PoolConfig holds WebSocket pool configuration.
type PoolConfig struct {
	Size                  int // connections, default 1
	WSUrl                 string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int // per connection
	ResyncInterval        time.Duration
	Logger                *zap.Logger
}

// Pool spreads ticker subscriptions over several connections and merges
// their feeds into one channel.
type Pool struct {
	cfg           PoolConfig
	managers      []*Manager
	tickerToIndex map[string]int
	mu            sync.RWMutex
	messageChan   chan *types.FeedMessage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	logger        *zap.Logger
}

// NewPool creates a new WebSocket connection pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		cfg:           cfg,
		managers:      make([]*Manager, cfg.Size),
		tickerToIndex: make(map[string]int),
		messageChan:   make(chan *types.FeedMessage, cfg.Size*cfg.MessageBufferSize),
		ctx:           ctx,
		cancel:        cancel,
		logger:        cfg.Logger,
	}

	for i := 0; i < cfg.Size; i++ {
		pool.managers[i] = New(Config{
			URL:                   cfg.WSUrl,
			DialTimeout:           cfg.DialTimeout,
			PongTimeout:           cfg.PongTimeout,
			PingInterval:          cfg.PingInterval,
			ReconnectInitialDelay: cfg.ReconnectInitialDelay,
			ReconnectMaxDelay:     cfg.ReconnectMaxDelay,
			ReconnectBackoffMult:  cfg.ReconnectBackoffMult,
			MessageBufferSize:     cfg.MessageBufferSize,
			ResyncInterval:        cfg.ResyncInterval,
			Logger:                cfg.Logger.With(zap.Int("manager-id", i)),
		})
	}

	return pool
}

// Start starts all WebSocket managers in the pool.
func (p *Pool) Start() error {
	p.logger.Info("websocket-pool-starting", zap.Int("pool-size", p.cfg.Size))

	errChan := make(chan error, p.cfg.Size)
	var startWg sync.WaitGroup

	for i, mgr := range p.managers {
		startWg.Add(1)
		go func(index int, manager *Manager) {
			defer startWg.Done()

			if err := manager.Start(); err != nil {
				p.logger.Error("manager-start-failed",
					zap.Int("manager-id", index),
					zap.Error(err))
				errChan <- fmt.Errorf("manager %d start failed: %w", index, err)
			}
		}(i, mgr)
	}

	startWg.Wait()
	close(errChan)

	var startErrors []error
	for err := range errChan {
		startErrors = append(startErrors, err)
	}
	if len(startErrors) > 0 {
		return fmt.Errorf("failed to start %d managers: %w", len(startErrors), errors.Join(startErrors...))
	}

	p.wg.Add(1)
	go p.multiplexMessages()

	PoolActiveConnections.Set(float64(p.cfg.Size))

	p.logger.Info("websocket-pool-started", zap.Int("active-managers", p.cfg.Size))

	return nil
}

// Subscribe shards tickers over managers by crc32 and subscribes each batch.
func (p *Pool) Subscribe(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	byManager := make(map[int][]string)

	p.mu.Lock()
	for _, ticker := range tickers {
		if _, exists := p.tickerToIndex[ticker]; exists {
			continue
		}
		idx := p.managerIndex(ticker)
		p.tickerToIndex[ticker] = idx
		byManager[idx] = append(byManager[idx], ticker)
	}
	p.mu.Unlock()

	err := p.fanOut(byManager, func(mgr *Manager, batch []string) error {
		return mgr.Subscribe(ctx, batch)
	})
	if err != nil {
		p.mu.Lock()
		for _, batch := range byManager {
			for _, t := range batch {
				delete(p.tickerToIndex, t)
			}
		}
		p.mu.Unlock()
		return fmt.Errorf("subscribe: %w", err)
	}

	p.updateDistributionMetrics()

	p.logger.Info("pool-subscribed-to-tickers",
		zap.Int("requested", len(tickers)),
		zap.Int("total-subscriptions", p.Len()),
		zap.Int("managers-used", len(byManager)))

	return nil
}

// Unsubscribe removes tickers from their managers.
func (p *Pool) Unsubscribe(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	byManager := make(map[int][]string)

	p.mu.Lock()
	for _, ticker := range tickers {
		if idx, exists := p.tickerToIndex[ticker]; exists {
			byManager[idx] = append(byManager[idx], ticker)
			delete(p.tickerToIndex, ticker)
		}
	}
	p.mu.Unlock()

	err := p.fanOut(byManager, func(mgr *Manager, batch []string) error {
		return mgr.Unsubscribe(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}

	p.logger.Info("pool-unsubscribed-from-tickers",
		zap.Int("total-subscriptions", p.Len()),
		zap.Int("managers-used", len(byManager)))

	return nil
}

// Resync routes a single-ticker resync to the manager that owns ticker.
func (p *Pool) Resync(ctx context.Context, ticker string) error {
	p.mu.RLock()
	idx, ok := p.tickerToIndex[ticker]
	p.mu.RUnlock()

	if !ok {
		return ErrNotSubscribed
	}

	return p.managers[idx].Resync(ctx, ticker)
}

// Len returns the number of subscribed tickers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tickerToIndex)
}

// Connected reports how many managers currently hold a live connection.
func (p *Pool) Connected() int {
	n := 0
	for _, mgr := range p.managers {
		if mgr.Connected() {
			n++
		}
	}
	return n
}

// MessageChan returns the multiplexed message channel.
func (p *Pool) MessageChan() <-chan *types.FeedMessage {
	return p.messageChan
}

// Close gracefully closes all WebSocket managers in the pool.
func (p *Pool) Close() error {
	p.logger.Info("closing-websocket-pool")

	p.cancel()

	var closeWg sync.WaitGroup
	for i, mgr := range p.managers {
		closeWg.Add(1)
		go func(index int, manager *Manager) {
			defer closeWg.Done()

			if err := manager.Close(); err != nil {
				p.logger.Error("manager-close-failed",
					zap.Int("manager-id", index),
					zap.Error(err))
			}
		}(i, mgr)
	}
	closeWg.Wait()

	p.wg.Wait()
	close(p.messageChan)

	PoolActiveConnections.Set(0)

	p.logger.Info("websocket-pool-closed")

	return nil
}

func (p *Pool) fanOut(byManager map[int][]string, fn func(*Manager, []string) error) error {
	errChan := make(chan error, len(byManager))
	var wg sync.WaitGroup

	for idx, batch := range byManager {
		wg.Add(1)
		go func(i int, tickers []string) {
			defer wg.Done()

			if err := fn(p.managers[i], tickers); err != nil {
				p.logger.Error("manager-operation-failed",
					zap.Int("manager-id", i),
					zap.Int("ticker-count", len(tickers)),
					zap.Error(err))
				errChan <- fmt.Errorf("manager %d: %w", i, err)
			}
		}(idx, batch)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// multiplexMessages forwards every manager's messages to the pool channel.
func (p *Pool) multiplexMessages() {
	defer p.wg.Done()

	cases := make([]reflect.SelectCase, len(p.managers)+1)
	cases[0] = reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(p.ctx.Done()),
	}
	for i, mgr := range p.managers {
		cases[i+1] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(mgr.MessageChan()),
		}
	}

	p.logger.Info("message-multiplexer-started", zap.Int("manager-count", len(p.managers)))

	for {
		chosen, value, ok := reflect.Select(cases)

		if chosen == 0 {
			p.logger.Info("message-multiplexer-stopped")
			return
		}

		if !ok {
			// A nil channel is never selected.
			p.logger.Warn("manager-channel-closed", zap.Int("manager-id", chosen-1))
			cases[chosen].Chan = reflect.ValueOf((chan *types.FeedMessage)(nil))
			continue
		}

		start := time.Now()
		msg, ok := value.Interface().(*types.FeedMessage)
		if !ok {
			p.logger.Error("invalid-message-type",
				zap.Int("manager-id", chosen-1),
				zap.String("type", fmt.Sprintf("%T", value.Interface())))
			continue
		}

		select {
		case p.messageChan <- msg:
		default:
			MessagesDroppedTotal.WithLabelValues("pool_full").Inc()
			p.logger.Warn("dropped-message-from-multiplexer",
				zap.Int("manager-id", chosen-1),
				zap.String("ticker", msg.Ticker()))
		}

		PoolMessageMultiplexLatency.Observe(time.Since(start).Seconds())
	}
}

func (p *Pool) managerIndex(ticker string) int {
	return int(crc32.ChecksumIEEE([]byte(ticker)) % uint32(p.cfg.Size))
}

func (p *Pool) updateDistributionMetrics() {
	perManager := make(map[int]int)

	p.mu.RLock()
	for _, idx := range p.tickerToIndex {
		perManager[idx]++
	}
	p.mu.RUnlock()

	for _, count := range perManager {
		PoolSubscriptionDistribution.Observe(float64(count))
	}
}
