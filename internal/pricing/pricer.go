package pricing

import (
	"math"
)

const (
	hoursPerYear = 365 * 24

	// DefaultSettlementWindowSeconds is the averaging window of the settlement index.
	DefaultSettlementWindowSeconds = 60
	// DefaultBasisRiskBuffer is added to volatility for reference-feed basis risk.
	DefaultBasisRiskBuffer = 0.01

	volUncertainty = 0.1
	maxProbSE      = 0.15
	ciZ            = 1.96
)

// Input describes a binary threshold contract and its underlying.
type Input struct {
	Spot                    float64 // current underlying price
	Strike                  float64
	HoursToExpiry           float64
	Volatility              float64 // annualized
	Drift                   float64 // annualized, usually 0
	SettlementWindowSeconds int
	BasisRiskBuffer         float64
}

// NewInput returns an Input with the default settlement adjustments.
func NewInput(spot, strike, hoursToExpiry, vol float64) Input {
	return Input{
		Spot:                    spot,
		Strike:                  strike,
		HoursToExpiry:           hoursToExpiry,
		Volatility:              vol,
		SettlementWindowSeconds: DefaultSettlementWindowSeconds,
		BasisRiskBuffer:         DefaultBasisRiskBuffer,
	}
}

// Output is the priced contract.
type Output struct {
	FairValue      float64    `json:"fair_value"`
	FairValueCents int        `json:"fair_value_cents"`
	CI             [2]float64 `json:"confidence_interval"`
	D2             float64    `json:"d2"`
	EffectiveVol   float64    `json:"effective_vol"`
}

// EffectiveVol inflates vol for settlement averaging and adds the basis buffer.
func EffectiveVol(in Input) float64 {
	adj := 1.0 + (float64(in.SettlementWindowSeconds)/3600.0)*0.1
	return in.Volatility*adj + in.BasisRiskBuffer
}

// PriceAbove prices a contract paying $1 if the underlying settles at or above
// the strike: P = N(d2), d2 = (ln(S/K) + (mu - sigma^2/2)T) / (sigma sqrt(T)).
//
// With no time left or no volatility the result is 1 or 0 by comparing spot to
// strike, with the widest confidence interval.
func PriceAbove(in Input) Output {
	t := in.HoursToExpiry / hoursPerYear
	sigma := EffectiveVol(in)

	if t <= 0 || sigma <= 0 || in.Spot <= 0 || in.Strike <= 0 {
		fair, cents := 0.0, 0
		if in.Spot >= in.Strike {
			fair, cents = 1.0, 100
		}
		return Output{
			FairValue:      fair,
			FairValueCents: cents,
			CI:             [2]float64{0, 1},
			D2:             0,
			EffectiveVol:   sigma,
		}
	}

	sqrtT := math.Sqrt(t)
	d2 := (math.Log(in.Spot/in.Strike) + (in.Drift-0.5*sigma*sigma)*t) / (sigma * sqrtT)
	prob := NormCDF(d2)

	se := math.Min(NormPDF(d2)*volUncertainty, maxProbSE)

	return Output{
		FairValue:      prob,
		FairValueCents: toCents(prob),
		CI:             [2]float64{math.Max(0, prob-ciZ*se), math.Min(1, prob+ciZ*se)},
		D2:             d2,
		EffectiveVol:   sigma,
	}
}

// PriceBelow prices a contract paying $1 if the underlying settles below the strike.
func PriceBelow(in Input) Output {
	above := PriceAbove(in)
	return Output{
		FairValue:      1 - above.FairValue,
		FairValueCents: 100 - above.FairValueCents,
		CI:             [2]float64{1 - above.CI[1], 1 - above.CI[0]},
		D2:             -above.D2,
		EffectiveVol:   above.EffectiveVol,
	}
}

// PriceRange prices a contract paying $1 if lower <= S_T < upper as the
// difference of two threshold prices, floored at zero.
func PriceRange(in Input, lower, upper float64) Output {
	lowIn, highIn := in, in
	lowIn.Strike = lower
	highIn.Strike = upper

	aboveLower := PriceAbove(lowIn)
	aboveUpper := PriceAbove(highIn)

	prob := math.Max(0, aboveLower.FairValue-aboveUpper.FairValue)

	return Output{
		FairValue:      prob,
		FairValueCents: toCents(prob),
		CI: [2]float64{
			math.Max(0, aboveLower.CI[0]-aboveUpper.CI[1]),
			math.Min(1, aboveLower.CI[1]-aboveUpper.CI[0]),
		},
		D2:           aboveLower.D2,
		EffectiveVol: aboveLower.EffectiveVol,
	}
}

// Up/down adjustment bounds.
const (
	upDownBase        = 0.5
	imbalanceWeight   = 0.03
	momentumWeight    = 0.02
	maxMomentumAdjust = 0.05
	upDownFloor       = 0.05
	upDownCeil        = 0.95
	upDownCIHalfWidth = 0.10
)

// PriceUpDown prices a short-horizon "will it go up" contract. It starts at a
// coin flip and nudges by book imbalance (+/-3%) and momentum z-score (+/-5%),
// never leaving [0.05, 0.95].
func PriceUpDown(vol, imbalance, momentumZ float64) Output {
	imbalance = clamp(imbalance, -1, 1)
	momentum := clamp(momentumZ*momentumWeight, -maxMomentumAdjust, maxMomentumAdjust)

	fair := clamp(upDownBase+imbalance*imbalanceWeight+momentum, upDownFloor, upDownCeil)

	return Output{
		FairValue:      fair,
		FairValueCents: toCents(fair),
		CI:             [2]float64{fair - upDownCIHalfWidth, fair + upDownCIHalfWidth},
		D2:             0,
		EffectiveVol:   vol,
	}
}

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func toCents(p float64) int {
	return int(math.Round(p * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
