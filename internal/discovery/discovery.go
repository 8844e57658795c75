package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/internal/markets"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

// Service discovers open markets by polling the REST API and reports markets
// that stopped trading.
type Service struct {
	client       *Client
	registry     *markets.Registry
	pollInterval time.Duration
	series       []string
	underlyings  map[string]string
	marketLimit  int
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	reported map[string]struct{} // closed tickers already sent

	newMarketsCh    chan types.Market
	closedMarketsCh chan string
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Registry     *markets.Registry
	PollInterval time.Duration

	// Series restricts discovery to these series tickers; empty polls all.
	Series []string

	// Underlyings maps a series ticker to the spot symbol it settles on.
	Underlyings map[string]string

	// MarketLimit caps markets read per series; 0 reads all.
	MarketLimit int
	Logger      *zap.Logger
	Clock       func() time.Time
}

// New creates a new discovery service.
func New(cfg *Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		client:          cfg.Client,
		registry:        cfg.Registry,
		pollInterval:    cfg.PollInterval,
		series:          cfg.Series,
		underlyings:     cfg.Underlyings,
		marketLimit:     cfg.MarketLimit,
		logger:          cfg.Logger,
		now:             clock,
		reported:        make(map[string]struct{}),
		newMarketsCh:    make(chan types.Market, 100),
		closedMarketsCh: make(chan string, 100),
	}
}

// Run starts the discovery polling loop. It closes both channels on return.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Strings("series", s.series),
		zap.Int("market-limit", s.marketLimit))

	defer close(s.newMarketsCh)
	defer close(s.closedMarketsCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			return ctx.Err()
		case <-ticker.C:
			err := s.Poll(ctx)
			if err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll runs one discovery pass.
func (s *Service) Poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	open := make(map[string]types.Market)
	complete := true

	sources := s.series
	if len(sources) == 0 {
		sources = []string{""}
	}

	for _, series := range sources {
		list, err := s.client.FetchOpenMarkets(ctx, series, s.marketLimit)
		if err != nil {
			PollErrorsTotal.Inc()
			return fmt.Errorf("fetch open markets for %q: %w", series, err)
		}
		if s.marketLimit > 0 && len(list) >= s.marketLimit {
			complete = false
		}

		MarketsDiscoveredTotal.Add(float64(len(list)))

		for _, m := range list {
			if !m.IsOpen(now) {
				continue
			}
			m.Underlying = s.underlyingFor(series, m)
			open[m.Ticker] = m
		}
	}

	added := 0
	for _, m := range open {
		s.mu.Lock()
		delete(s.reported, m.Ticker)
		s.mu.Unlock()

		if !s.registry.Add(m) {
			continue
		}
		added++

		select {
		case s.newMarketsCh <- m:
			NewMarketsTotal.Inc()
			s.logger.Info("new-market-discovered",
				zap.String("ticker", m.Ticker),
				zap.String("underlying", m.Underlying),
				zap.Time("close-time", m.CloseTime))
		default:
			DroppedEventsTotal.WithLabelValues("new").Inc()
			s.logger.Warn("new-markets-channel-full", zap.String("ticker", m.Ticker))
		}
	}

	closed := s.registry.Closed(now)
	if complete {
		for _, t := range s.registry.Tickers() {
			if _, ok := open[t]; !ok {
				closed = append(closed, t)
			}
		}
	}
	s.reportClosed(closed)

	s.logger.Debug("poll-complete",
		zap.Int("open-markets", len(open)),
		zap.Int("new-markets", added),
		zap.Duration("duration", time.Since(start)))

	return nil
}

func (s *Service) reportClosed(tickers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tickers {
		if _, done := s.reported[t]; done {
			continue
		}

		select {
		case s.closedMarketsCh <- t:
			s.reported[t] = struct{}{}
			ClosedMarketsTotal.Inc()
			s.logger.Info("market-closed", zap.String("ticker", t))
		default:
			DroppedEventsTotal.WithLabelValues("closed").Inc()
		}
	}
}

// underlyingFor resolves the spot symbol for m from its series. The series is
// taken from the poll, then the market, then the event ticker prefix.
func (s *Service) underlyingFor(series string, m types.Market) string {
	if m.Underlying != "" {
		return m.Underlying
	}

	candidates := []string{series, m.SeriesTicker}
	if prefix, _, ok := strings.Cut(m.EventTicker, "-"); ok {
		candidates = append(candidates, prefix)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if u, ok := s.underlyings[c]; ok {
			return u
		}
	}
	return ""
}

// NewMarketsChan returns the channel of newly discovered markets.
func (s *Service) NewMarketsChan() <-chan types.Market {
	return s.newMarketsCh
}

// ClosedMarketsChan returns the channel of tickers that stopped trading.
func (s *Service) ClosedMarketsChan() <-chan string {
	return s.closedMarketsCh
}
