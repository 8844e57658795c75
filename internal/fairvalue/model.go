package fairvalue

import (
	"math"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/internal/markets"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

const hoursPerYear = 365 * 24

// BookSource provides book snapshots for imbalance.
type BookSource interface {
	Snapshot(ticker string) (*orderbook.Book, bool)
}

// Model reprices every market on an underlying when its spot price moves.
type Model struct {
	registry    *markets.Registry
	store       *Store
	forecaster  *pricing.VolatilityForecaster
	books       BookSource
	fallbackVol float64
	window      int
	basisBuffer float64
	logger      *zap.Logger

	mu   sync.RWMutex
	spot map[string]float64
}

// ModelConfig holds model configuration.
type ModelConfig struct {
	Registry   *markets.Registry
	Store      *Store
	Forecaster *pricing.VolatilityForecaster
	Books      BookSource // optional; up/down markets price flat without it

	// FallbackVol is the annualized vol used until the forecaster has history.
	FallbackVol             float64
	SettlementWindowSeconds int
	BasisRiskBuffer         float64
	Logger                  *zap.Logger
}

// NewModel creates a spot-driven pricing model.
func NewModel(cfg *ModelConfig) *Model {
	forecaster := cfg.Forecaster
	if forecaster == nil {
		forecaster = pricing.NewVolatilityForecaster()
	}

	return &Model{
		registry:    cfg.Registry,
		store:       cfg.Store,
		forecaster:  forecaster,
		books:       cfg.Books,
		fallbackVol: cfg.FallbackVol,
		window:      cfg.SettlementWindowSeconds,
		basisBuffer: cfg.BasisRiskBuffer,
		logger:      cfg.Logger,
		spot:        make(map[string]float64),
	}
}

// OnSpot records a spot observation and reprices the markets on symbol.
// It returns the number of markets repriced.
func (m *Model) OnSpot(symbol string, price float64, at time.Time) int {
	if price <= 0 {
		return 0
	}

	m.forecaster.AddPrice(symbol, price)

	m.mu.Lock()
	m.spot[symbol] = price
	m.mu.Unlock()

	SpotUpdatesTotal.Inc()

	var forecast *pricing.VolForecast
	if f, ok := m.forecaster.Forecast(symbol); ok {
		forecast = &f
	}

	repriced := 0
	for _, mkt := range m.registry.ByUnderlying(symbol) {
		if !mkt.IsOpen(at) {
			continue
		}

		vol := m.fallbackVol
		if forecast != nil {
			if v := forecast.ForHorizon(mkt.HoursToExpiry(at)); v > 0 {
				vol = v
			}
		}

		out, ok := m.Price(mkt, price, vol, at)
		if !ok {
			continue
		}

		err := m.store.Put(Entry{
			Ticker:    mkt.Ticker,
			Cents:     out.FairValueCents,
			Source:    SourceModel,
			UpdatedAt: at,
			CI:        out.CI,
		})
		if err != nil {
			m.logger.Warn("fair-value-store-failed",
				zap.String("ticker", mkt.Ticker),
				zap.Error(err))
			continue
		}
		repriced++
	}

	m.logger.Debug("spot-repriced",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Int("markets", repriced))

	return repriced
}

// Spot returns the last observed price for symbol.
func (m *Model) Spot(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.spot[symbol]
	return p, ok
}

// Price prices one market at spot. It returns false for strike types the
// model does not cover or markets missing their strikes.
func (m *Model) Price(mkt types.Market, spot, vol float64, at time.Time) (pricing.Output, bool) {
	in := pricing.Input{
		Spot:                    spot,
		HoursToExpiry:           mkt.HoursToExpiry(at),
		Volatility:              vol,
		SettlementWindowSeconds: m.window,
		BasisRiskBuffer:         m.basisBuffer,
	}

	switch mkt.StrikeType {
	case types.StrikeGreater:
		if mkt.FloorStrike <= 0 {
			return pricing.Output{}, false
		}
		in.Strike = mkt.FloorStrike
		return pricing.PriceAbove(in), true

	case types.StrikeLess:
		if mkt.CapStrike <= 0 {
			return pricing.Output{}, false
		}
		in.Strike = mkt.CapStrike
		return pricing.PriceBelow(in), true

	case types.StrikeBetween:
		if mkt.FloorStrike <= 0 || mkt.CapStrike <= mkt.FloorStrike {
			return pricing.Output{}, false
		}
		return pricing.PriceRange(in, mkt.FloorStrike, mkt.CapStrike), true

	case types.StrikeUpDown:
		return pricing.PriceUpDown(vol, m.imbalance(mkt.Ticker), momentumZ(mkt, spot, vol, at)), true
	}

	UnpricedTotal.WithLabelValues(mkt.StrikeType).Inc()
	return pricing.Output{}, false
}

func (m *Model) imbalance(ticker string) float64 {
	if m.books == nil {
		return 0
	}
	book, ok := m.books.Snapshot(ticker)
	if !ok || !book.IsValid() {
		return 0
	}
	return book.Imbalance()
}

// momentumZ is the move from the reference price in standard deviations of
// the elapsed interval. The reference is the market's floor strike.
func momentumZ(mkt types.Market, spot, vol float64, at time.Time) float64 {
	if mkt.FloorStrike <= 0 || vol <= 0 || mkt.OpenTime.IsZero() {
		return 0
	}

	elapsed := at.Sub(mkt.OpenTime).Hours() / hoursPerYear
	if elapsed <= 0 {
		return 0
	}

	return math.Log(spot/mkt.FloorStrike) / (vol * math.Sqrt(elapsed))
}
