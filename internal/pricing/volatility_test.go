package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		vol  float64
		want Regime
	}{
		{vol: 0, want: RegimeLow},
		{vol: 0.19, want: RegimeLow},
		{vol: 0.2, want: RegimeMedium},
		{vol: 0.59, want: RegimeMedium},
		{vol: 0.6, want: RegimeHigh},
		{vol: 0.99, want: RegimeHigh},
		{vol: 1.0, want: RegimeExtreme},
		{vol: 4.2, want: RegimeExtreme},
	}

	for _, tt := range tests {
		if got := ClassifyRegime(tt.vol); got != tt.want {
			t.Errorf("ClassifyRegime(%v) = %s, want %s", tt.vol, got, tt.want)
		}
	}
}

func TestGARCHParams_LongRunVariance(t *testing.T) {
	p := DefaultGARCHParams()
	assert.InDelta(t, 0.95, p.Persistence(), 1e-12)
	assert.InDelta(t, 0.0002, p.LongRunVariance(), 1e-12)

	integrated := GARCHParams{Omega: 0.00001, Alpha: 0.2, Beta: 0.8}
	assert.InDelta(t, 0.001, integrated.LongRunVariance(), 1e-12)
}

func TestForecaster_InsufficientHistory(t *testing.T) {
	f := NewVolatilityForecaster()

	for i := 0; i < 60; i++ {
		f.AddPrice("BTC", 100+float64(i%2))
	}

	// 60 prices give 59 returns, one short of the minimum.
	_, ok := f.Forecast("BTC")
	assert.False(t, ok)

	_, ok = f.Forecast("UNKNOWN")
	assert.False(t, ok)
}

func TestForecaster_FlatPrices(t *testing.T) {
	f := NewVolatilityForecaster()
	for i := 0; i < 200; i++ {
		f.AddPrice("ETH", 2500)
	}

	fc, ok := f.Forecast("ETH")
	require.True(t, ok)

	assert.Equal(t, 0.0, fc.RealizedVol1h)
	assert.Equal(t, RegimeLow, fc.Regime)
	// With no shocks the forecast falls back to the GARCH floor omega/(1-beta).
	assert.Equal(t, fc.Forecast1h, fc.Forecast24h)
	assert.Greater(t, fc.Forecast1h, 0.0)
}

func TestForecaster_ChoppyPrices(t *testing.T) {
	f := NewVolatilityForecaster()
	for i := 0; i < 300; i++ {
		f.AddPrice("BTC", 100+float64(i%2))
	}

	fc, ok := f.Forecast("BTC")
	require.True(t, ok)

	assert.Greater(t, fc.RealizedVol1h, 1.0)
	assert.Equal(t, RegimeExtreme, fc.Regime)
	assert.Greater(t, fc.Forecast1h, 0.0)
	assert.Equal(t, fc.Forecast1h, fc.ForHorizon(0.5))
	assert.Equal(t, fc.Forecast24h, fc.ForHorizon(6))
}

func TestForecaster_IgnoresNonPositive(t *testing.T) {
	f := NewVolatilityForecaster()
	f.AddPrice("BTC", 100)
	f.AddPrice("BTC", 0)
	f.AddPrice("BTC", -5)
	f.AddPrice("BTC", 101)

	assert.Equal(t, 1, f.Observations("BTC"))
}

func TestForecaster_BoundedHistory(t *testing.T) {
	f := NewVolatilityForecaster()
	f.maxObservations = 100

	for i := 0; i < 500; i++ {
		f.AddPrice("SOL", 150+float64(i%3))
	}

	assert.Equal(t, 100, f.Observations("SOL"))
}
