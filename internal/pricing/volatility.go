package pricing

import (
	"math"
	"sync"
	"time"
)

const (
	minutesPerYear = 525600

	defaultMaxObservations = 10080 // one week of minute bars
	defaultMinObservations = 60

	ewmaSpan       = 60
	ewmaMinPeriods = 20

	minVariance = 1e-10
	maxVariance = 1.0
)

// Regime classifies annualized volatility.
type Regime string

// Volatility regimes.
const (
	RegimeLow     Regime = "low"
	RegimeMedium  Regime = "medium"
	RegimeHigh    Regime = "high"
	RegimeExtreme Regime = "extreme"
)

// ClassifyRegime maps annualized volatility to a regime.
func ClassifyRegime(vol float64) Regime {
	switch {
	case vol < 0.20:
		return RegimeLow
	case vol < 0.60:
		return RegimeMedium
	case vol < 1.00:
		return RegimeHigh
	default:
		return RegimeExtreme
	}
}

// GARCHParams are the GARCH(1,1) coefficients.
type GARCHParams struct {
	Omega float64
	Alpha float64
	Beta  float64
}

// DefaultGARCHParams returns the stock crypto-minute-bar coefficients.
func DefaultGARCHParams() GARCHParams {
	return GARCHParams{Omega: 0.00001, Alpha: 0.1, Beta: 0.85}
}

// Persistence is alpha + beta.
func (p GARCHParams) Persistence() float64 {
	return p.Alpha + p.Beta
}

// LongRunVariance is the unconditional variance, capped when near-integrated.
func (p GARCHParams) LongRunVariance() float64 {
	if p.Persistence() >= 1 {
		return p.Omega / 0.01
	}
	return p.Omega / (1 - p.Persistence())
}

// VolForecast is the forecaster output for one symbol. All vols are annualized.
type VolForecast struct {
	Symbol         string    `json:"symbol"`
	At             time.Time `json:"at"`
	RealizedVol1h  float64   `json:"realized_vol_1h"`
	RealizedVol24h float64   `json:"realized_vol_24h"`
	Forecast1h     float64   `json:"forecast_1h"`
	Forecast24h    float64   `json:"forecast_24h"`
	Regime         Regime    `json:"regime"`
}

// ForHorizon picks the forecast matching hours to expiry.
func (f VolForecast) ForHorizon(hours float64) float64 {
	if hours <= 1 {
		return f.Forecast1h
	}
	return f.Forecast24h
}

type series struct {
	lastPrice float64
	prices    int
	returns   []float64
	variance  float64
}

// VolatilityForecaster tracks per-symbol log returns of minute prices and
// blends EWMA and GARCH(1,1) estimates. It is safe for concurrent use.
type VolatilityForecaster struct {
	mu              sync.Mutex
	series          map[string]*series
	garch           GARCHParams
	maxObservations int
	minObservations int
	now             func() time.Time
}

// NewVolatilityForecaster creates a forecaster with default parameters.
func NewVolatilityForecaster() *VolatilityForecaster {
	return &VolatilityForecaster{
		series:          make(map[string]*series),
		garch:           DefaultGARCHParams(),
		maxObservations: defaultMaxObservations,
		minObservations: defaultMinObservations,
		now:             time.Now,
	}
}

// AddPrice records a new observation and updates the GARCH state.
// Non-positive prices are ignored.
func (f *VolatilityForecaster) AddPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.series[symbol]
	if !ok {
		s = &series{variance: f.garch.LongRunVariance()}
		f.series[symbol] = s
	}

	if s.lastPrice > 0 {
		r := math.Log(price / s.lastPrice)
		s.returns = append(s.returns, r)
		if len(s.returns) > f.maxObservations {
			s.returns = s.returns[len(s.returns)-f.maxObservations:]
		}

		v := f.garch.Omega + f.garch.Alpha*r*r + f.garch.Beta*s.variance
		s.variance = math.Max(minVariance, math.Min(v, maxVariance))
	}

	s.lastPrice = price
	if s.prices < f.maxObservations {
		s.prices++
	}
}

// Forecast returns the current forecast, or false while history is too short.
func (f *VolatilityForecaster) Forecast(symbol string) (VolForecast, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.series[symbol]
	if !ok || s.prices < f.minObservations {
		return VolForecast{}, false
	}

	vol1h, ok := f.realizedVol(s.returns, 60)
	if !ok {
		return VolForecast{}, false
	}
	vol24h, ok := f.realizedVol(s.returns, 1440)
	if !ok {
		vol24h = vol1h
	}

	garchVol := math.Sqrt(s.variance * minutesPerYear)
	forecast1h, forecast24h := garchVol, garchVol
	if ewma, ok := ewmaVol(s.returns); ok && ewma > 0 {
		forecast1h = 0.6*ewma + 0.4*garchVol
		forecast24h = 0.4*ewma + 0.6*garchVol
	}

	return VolForecast{
		Symbol:         symbol,
		At:             f.now(),
		RealizedVol1h:  vol1h,
		RealizedVol24h: vol24h,
		Forecast1h:     forecast1h,
		Forecast24h:    forecast24h,
		Regime:         ClassifyRegime(vol24h),
	}, true
}

// Observations returns the number of returns recorded for symbol.
func (f *VolatilityForecaster) Observations(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.series[symbol]; ok {
		return len(s.returns)
	}
	return 0
}

// realizedVol is the annualized sample standard deviation of the last window returns.
func (f *VolatilityForecaster) realizedVol(returns []float64, window int) (float64, bool) {
	if len(returns) < f.minObservations {
		return 0, false
	}

	if len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance * minutesPerYear), true
}

func ewmaVol(returns []float64) (float64, bool) {
	if len(returns) < ewmaMinPeriods {
		return 0, false
	}

	alpha := 2.0 / (ewmaSpan + 1)

	variance := 0.0
	for _, r := range returns[:ewmaMinPeriods] {
		variance += r * r
	}
	variance /= ewmaMinPeriods

	for _, r := range returns[ewmaMinPeriods:] {
		variance = alpha*r*r + (1-alpha)*variance
	}

	return math.Sqrt(variance * minutesPerYear), true
}
