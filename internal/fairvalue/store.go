package fairvalue

import (
	"fmt"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/cache"
	"go.uber.org/zap"
)

const cacheNamespace = "fair"

// Sources of a fair value.
const (
	SourceManual = "manual"
	SourceModel  = "model"
)

// Entry is one fair value estimate for a market.
type Entry struct {
	Ticker    string    `json:"ticker"`
	Cents     int       `json:"cents"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`

	// CI is the model's confidence interval in probability terms; zero for manual input.
	CI [2]float64 `json:"confidence_interval"`
}

// Store holds fair values with a TTL so estimates that are not refreshed
// drop out and the engine stops trading the market.
type Store struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// StoreConfig holds store configuration.
type StoreConfig struct {
	Cache  cache.Cache
	TTL    time.Duration
	Logger *zap.Logger
	Clock  func() time.Time
}

// NewStore creates a fair value store.
func NewStore(cfg *StoreConfig) (*Store, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Store{cache: cfg.Cache, ttl: cfg.TTL, logger: cfg.Logger, now: clock}, nil
}

// Set records a fair value. Cents must be within [0, 100].
func (s *Store) Set(ticker string, cents int, source string) error {
	return s.Put(Entry{Ticker: ticker, Cents: cents, Source: source})
}

// Put records a full entry, stamping UpdatedAt if unset.
func (s *Store) Put(e Entry) error {
	if e.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if e.Cents < 0 || e.Cents > 100 {
		return fmt.Errorf("fair value %d out of range [0,100]", e.Cents)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}

	key := cache.Key(cacheNamespace, e.Ticker)
	if !s.cache.Set(key, e, s.ttl) {
		s.cache.Delete(key)
		UpdatesDroppedTotal.Inc()
		return fmt.Errorf("fair value for %s was not admitted", e.Ticker)
	}

	UpdatesTotal.WithLabelValues(e.Source).Inc()
	s.logger.Debug("fair-value-updated",
		zap.String("ticker", e.Ticker),
		zap.Int("cents", e.Cents),
		zap.String("source", e.Source))

	return nil
}

// Get returns the current entry for ticker.
func (s *Store) Get(ticker string) (Entry, bool) {
	v, ok := s.cache.Get(cache.Key(cacheNamespace, ticker))
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

// FairValue returns the fair value of YES in cents.
func (s *Store) FairValue(ticker string) (int, bool) {
	e, ok := s.Get(ticker)
	return e.Cents, ok
}

// Delete forgets ticker's fair value.
func (s *Store) Delete(ticker string) {
	s.cache.Delete(cache.Key(cacheNamespace, ticker))
}
