package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeFactor(t *testing.T) {
	tests := []struct {
		price int
		want  string
	}{
		{price: 50, want: "0.25"},
		{price: 10, want: "0.09"},
		{price: 90, want: "0.09"},
		{price: 1, want: "0.0099"},
	}

	for _, tt := range tests {
		got := FeeFactor(tt.price)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("FeeFactor(%d) = %s, want %s", tt.price, got, tt.want)
		}
	}
}

func TestFeeFactor_PeaksAtFifty(t *testing.T) {
	peak := FeeFactor(50)
	for p := 1; p < 100; p++ {
		if FeeFactor(p).GreaterThan(peak) {
			t.Errorf("FeeFactor(%d) exceeds FeeFactor(50)", p)
		}
	}
}

func TestTakerFee(t *testing.T) {
	tests := []struct {
		name      string
		contracts int
		price     int
		wantTotal string
		wantPer   string
	}{
		{name: "single-contract-at-50", contracts: 1, price: 50, wantTotal: "2", wantPer: "2"},
		{name: "ten-contracts-at-50", contracts: 10, price: 50, wantTotal: "18", wantPer: "1.8"},
		{name: "ten-contracts-at-60", contracts: 10, price: 60, wantTotal: "17", wantPer: "1.7"},
		{name: "hundred-contracts-at-50", contracts: 100, price: 50, wantTotal: "175", wantPer: "1.75"},
		{name: "tail-price-hits-floor", contracts: 1, price: 5, wantTotal: "1", wantPer: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := TakerFee(tt.contracts, tt.price)
			assert.True(t, fb.TotalFeeCents.Equal(decimal.RequireFromString(tt.wantTotal)),
				"total: got %s want %s", fb.TotalFeeCents, tt.wantTotal)
			assert.True(t, fb.FeePerContract.Equal(decimal.RequireFromString(tt.wantPer)),
				"per contract: got %s want %s", fb.FeePerContract, tt.wantPer)
			assert.False(t, fb.IsMaker)
		})
	}
}

func TestMakerFee_FloorsAtOneCentPerContract(t *testing.T) {
	fb := MakerFee(10, 50)

	// 0.0175 * 10 * 0.25 = 4.375c rounds to 5c, below the 10c floor.
	assert.True(t, fb.TotalFeeCents.Equal(decimal.NewFromInt(10)), "got %s", fb.TotalFeeCents)
	assert.True(t, fb.FeePerContract.Equal(decimal.NewFromInt(1)))
	assert.True(t, fb.IsMaker)
}

func TestFee_ZeroOutsideDomain(t *testing.T) {
	tests := []struct {
		name      string
		contracts int
		price     int
	}{
		{name: "no-contracts", contracts: 0, price: 50},
		{name: "negative-contracts", contracts: -3, price: 50},
		{name: "price-zero", contracts: 10, price: 0},
		{name: "price-hundred", contracts: 10, price: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, TakerFee(tt.contracts, tt.price).TotalFeeCents.IsZero())
			assert.True(t, MakerFee(tt.contracts, tt.price).TotalFeeCents.IsZero())
		})
	}
}

func TestFee_SymmetricAroundFifty(t *testing.T) {
	for p := 1; p < 50; p++ {
		low, high := TakerFee(10, p), TakerFee(10, 100-p)
		if !low.TotalFeeCents.Equal(high.TotalFeeCents) {
			t.Errorf("taker fee at %d (%s) != at %d (%s)", p, low.TotalFeeCents, 100-p, high.TotalFeeCents)
		}
	}
}

func TestMinProfitableEdge(t *testing.T) {
	edge := MinProfitableEdgeTaker(50, 10)
	assert.True(t, edge.Equal(decimal.RequireFromString("2.3")), "got %s", edge)

	spread := MinProfitableSpreadMaker(50, 10)
	assert.True(t, spread.Equal(decimal.RequireFromString("1.5")), "got %s", spread)

	// Taker always needs more room than maker at the same size.
	for _, p := range DefaultBreakevenPrices {
		assert.True(t, MinProfitableEdgeTaker(p, 10).GreaterThanOrEqual(MinProfitableSpreadMaker(p, 10)), "price %d", p)
	}
}

func TestBreakevenTable(t *testing.T) {
	rows := BreakevenTable(DefaultBreakevenPrices, 10)

	assert.Len(t, rows, len(DefaultBreakevenPrices))
	assert.Equal(t, 5, rows[0].PriceCents)
	assert.Equal(t, 95, rows[len(rows)-1].PriceCents)

	for _, row := range rows {
		assert.True(t, row.TakerFee.GreaterThanOrEqual(row.MakerFee), "price %d", row.PriceCents)
	}
}
