package types

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Side identifies one leg of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// PriceLevel is a single bid level. Price is in cents [1,99].
// On the wire a level is a two-element array: [price, quantity].
type PriceLevel struct {
	Price    int `json:"price"`
	Quantity int `json:"quantity"`
}

// UnmarshalJSON decodes the [price, quantity] array form.
func (p *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []int
	err := json.Unmarshal(data, &pair)
	if err != nil {
		return fmt.Errorf("decode price level: %w", err)
	}

	if len(pair) != 2 {
		return &ProtocolError{Reason: "malformed-level", Detail: fmt.Sprintf("expected 2 elements, got %d", len(pair))}
	}

	p.Price = pair[0]
	p.Quantity = pair[1]

	return nil
}

// MarshalJSON encodes the level back into its [price, quantity] form.
func (p PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Price, p.Quantity})
}

// BookSummary is the observable state of one market's order book.
// Best prices are 0 when the corresponding side is empty.
type BookSummary struct {
	Ticker          string    `json:"ticker"`
	BestYesBid      int       `json:"best_yes_bid"`
	BestYesAsk      int       `json:"best_yes_ask"`
	BestNoBid       int       `json:"best_no_bid"`
	BestNoAsk       int       `json:"best_no_ask"`
	Spread          int       `json:"spread"`
	Mid             float64   `json:"mid"`
	YesLevels       int       `json:"yes_levels"`
	NoLevels        int       `json:"no_levels"`
	LastSnapshotSeq int64     `json:"last_snapshot_seq"`
	LastDeltaSeq    int64     `json:"last_delta_seq"`
	Valid           bool      `json:"valid"`
	LastUpdate      time.Time `json:"last_update"`
}
