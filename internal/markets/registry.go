package markets

import (
	"sort"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/cache"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

const cacheNamespace = "market"

// Registry holds metadata for every tracked market. The map is authoritative;
// entries are mirrored into the cache for lookups by ticker.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]types.Market
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// Config holds registry configuration.
type Config struct {
	Cache  cache.Cache // optional
	TTL    time.Duration
	Logger *zap.Logger
}

// New creates an empty registry.
func New(cfg *Config) *Registry {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Registry{
		markets: make(map[string]types.Market),
		cache:   cfg.Cache,
		ttl:     ttl,
		logger:  cfg.Logger,
	}
}

// Add stores or refreshes a market. It returns true if the ticker was new.
func (r *Registry) Add(m types.Market) bool {
	r.mu.Lock()
	_, exists := r.markets[m.Ticker]
	r.markets[m.Ticker] = m
	count := len(r.markets)
	r.mu.Unlock()

	if r.cache != nil {
		key := cache.Key(cacheNamespace, m.Ticker)
		if !r.cache.Set(key, m, r.ttl) {
			// never serve the previous version
			r.cache.Delete(key)
		}
	}

	MarketsTracked.Set(float64(count))

	if !exists {
		r.logger.Debug("market-registered",
			zap.String("ticker", m.Ticker),
			zap.String("underlying", m.Underlying),
			zap.String("strike-type", m.StrikeType))
	}

	return !exists
}

// Get returns the market for ticker.
func (r *Registry) Get(ticker string) (types.Market, bool) {
	if r.cache != nil {
		if v, ok := r.cache.Get(cache.Key(cacheNamespace, ticker)); ok {
			if m, ok := v.(types.Market); ok {
				LookupsTotal.WithLabelValues("cache").Inc()
				return m, true
			}
		}
	}

	r.mu.RLock()
	m, ok := r.markets[ticker]
	r.mu.RUnlock()

	if ok {
		LookupsTotal.WithLabelValues("map").Inc()
	} else {
		LookupsTotal.WithLabelValues("miss").Inc()
	}
	return m, ok
}

// ByUnderlying returns the markets priced off symbol, sorted by ticker.
func (r *Registry) ByUnderlying(symbol string) []types.Market {
	r.mu.RLock()
	var out []types.Market
	for _, m := range r.markets {
		if m.Underlying == symbol {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Tickers returns every tracked ticker, sorted.
func (r *Registry) Tickers() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.markets))
	for t := range r.markets {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Closed returns the tickers of markets that are no longer open at now.
func (r *Registry) Closed(now time.Time) []string {
	r.mu.RLock()
	var out []string
	for t, m := range r.markets {
		if !m.IsOpen(now) {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Remove drops ticker. It returns false if it was not tracked.
func (r *Registry) Remove(ticker string) bool {
	r.mu.Lock()
	_, ok := r.markets[ticker]
	delete(r.markets, ticker)
	count := len(r.markets)
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Delete(cache.Key(cacheNamespace, ticker))
	}

	MarketsTracked.Set(float64(count))
	return ok
}

// Len returns the number of tracked markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
