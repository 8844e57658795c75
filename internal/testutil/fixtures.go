package testutil

import (
	"time"

	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/pkg/types"
)

// CreateTestMarket creates an open "greater" market on underlying that closes
// a day after now.
func CreateTestMarket(ticker, underlying string, floor float64, now time.Time) types.Market {
	return types.Market{
		Ticker:       ticker,
		EventTicker:  ticker + "-EVT",
		SeriesTicker: "KXTEST",
		Title:        "Test market " + ticker,
		Status:       types.MarketStatusOpen,
		OpenTime:     now.Add(-time.Hour),
		CloseTime:    now.Add(24 * time.Hour),
		StrikeType:   types.StrikeGreater,
		FloorStrike:  floor,
		Underlying:   underlying,
	}
}

// CreateTestSnapshot creates a snapshot with one YES level and one NO level.
// The implied YES ask is 100 - noBid.
func CreateTestSnapshot(ticker string, seq int64, yesBid, noBid int, at time.Time) *types.SnapshotMessage {
	return &types.SnapshotMessage{
		Ticker:     ticker,
		Seq:        seq,
		Yes:        []types.PriceLevel{{Price: yesBid, Quantity: 100}},
		No:         []types.PriceLevel{{Price: noBid, Quantity: 100}},
		ReceivedAt: at,
	}
}

// CreateTestDelta creates a delta message.
func CreateTestDelta(ticker string, seq int64, side types.Side, price, delta int, at time.Time) *types.DeltaMessage {
	return &types.DeltaMessage{
		Ticker:     ticker,
		Seq:        seq,
		Side:       side,
		Price:      price,
		Delta:      delta,
		ReceivedAt: at,
	}
}

// CreateTestFill creates a taker fill.
func CreateTestFill(ticker string, side types.Side, price, size int, at time.Time) ledger.Fill {
	return ledger.Fill{
		ID:         ticker + "-fill",
		OrderID:    ticker + "-order",
		Ticker:     ticker,
		Side:       side,
		PriceCents: price,
		Size:       size,
		Time:       at,
	}
}
