package pricing

import (
	"github.com/shopspring/decimal"
)

// Kalshi fee rates, applied to contracts x P x (1-P) in dollars.
var (
	TakerFeeRate = decimal.RequireFromString("0.07")
	MakerFeeRate = decimal.RequireFromString("0.0175")

	slippageBuffer         = decimal.RequireFromString("0.5")
	adverseSelectionBuffer = decimal.RequireFromString("0.5")

	hundred = decimal.NewFromInt(100)
)

// MinFeeCentsPerContract is the floor applied to every non-zero fee.
const MinFeeCentsPerContract = 1

// FeeBreakdown is the full fee picture for one order.
type FeeBreakdown struct {
	Contracts        int             `json:"contracts"`
	PriceCents       int             `json:"price_cents"`
	IsMaker          bool            `json:"is_maker"`
	FeePerContract   decimal.Decimal `json:"fee_per_contract_cents"`
	TotalFeeCents    decimal.Decimal `json:"total_fee_cents"`
	FeeAsPriceImpact decimal.Decimal `json:"fee_as_price_impact_cents"`
}

// FeeFactor returns P x (1-P) with P = priceCents/100. It peaks at 50c.
func FeeFactor(priceCents int) decimal.Decimal {
	p := decimal.NewFromInt(int64(priceCents)).Div(hundred)
	return p.Mul(decimal.NewFromInt(1).Sub(p))
}

// TakerFee returns the fee for crossing the spread.
func TakerFee(contracts, priceCents int) FeeBreakdown {
	return computeFee(TakerFeeRate, contracts, priceCents, false)
}

// MakerFee returns the fee for a resting order that gets filled.
func MakerFee(contracts, priceCents int) FeeBreakdown {
	return computeFee(MakerFeeRate, contracts, priceCents, true)
}

// computeFee rounds the dollar fee up to the next whole cent and floors it at
// one cent per contract.
func computeFee(rate decimal.Decimal, contracts, priceCents int, maker bool) FeeBreakdown {
	fb := FeeBreakdown{
		Contracts:        contracts,
		PriceCents:       priceCents,
		IsMaker:          maker,
		FeePerContract:   decimal.Zero,
		TotalFeeCents:    decimal.Zero,
		FeeAsPriceImpact: decimal.Zero,
	}

	if contracts <= 0 || priceCents <= 0 || priceCents >= 100 {
		return fb
	}

	c := decimal.NewFromInt(int64(contracts))
	rawDollars := rate.Mul(c).Mul(FeeFactor(priceCents))
	total := rawDollars.Mul(hundred).Ceil()

	floor := decimal.NewFromInt(int64(MinFeeCentsPerContract * contracts))
	if total.LessThan(floor) {
		total = floor
	}

	perContract := total.Div(c)

	fb.TotalFeeCents = total
	fb.FeePerContract = perContract
	fb.FeeAsPriceImpact = perContract

	return fb
}

// MinProfitableEdgeTaker returns the edge in cents a taker trade needs to be
// positive after fees and a half-cent slippage buffer.
func MinProfitableEdgeTaker(priceCents, contracts int) decimal.Decimal {
	return TakerFee(contracts, priceCents).FeeAsPriceImpact.Add(slippageBuffer)
}

// MinProfitableSpreadMaker returns the half-spread in cents a maker quote needs
// to be positive after fees and a half-cent adverse-selection buffer.
func MinProfitableSpreadMaker(priceCents, contracts int) decimal.Decimal {
	return MakerFee(contracts, priceCents).FeeAsPriceImpact.Add(adverseSelectionBuffer)
}

// BreakevenRow is one line of the fee breakeven table.
type BreakevenRow struct {
	PriceCents     int
	FeeFactor      decimal.Decimal
	TakerFee       decimal.Decimal
	MakerFee       decimal.Decimal
	MinTakerEdge   decimal.Decimal
	MinMakerSpread decimal.Decimal
}

// DefaultBreakevenPrices are the price points shown by the fees command.
var DefaultBreakevenPrices = []int{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 95}

// BreakevenTable computes fees and minimum edges at each price for contracts.
func BreakevenTable(prices []int, contracts int) []BreakevenRow {
	rows := make([]BreakevenRow, 0, len(prices))
	for _, price := range prices {
		rows = append(rows, BreakevenRow{
			PriceCents:     price,
			FeeFactor:      FeeFactor(price),
			TakerFee:       TakerFee(contracts, price).TotalFeeCents,
			MakerFee:       MakerFee(contracts, price).TotalFeeCents,
			MinTakerEdge:   MinProfitableEdgeTaker(price, contracts),
			MinMakerSpread: MinProfitableSpreadMaker(price, contracts),
		})
	}
	return rows
}
