package orderbook

import (
	"sort"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
)

// Side holds one leg's resting bids keyed by price in cents.
// A price never maps to zero; empty levels are deleted.
type Side map[int]int

// Best returns the highest bid price, or 0 if the side is empty.
func (s Side) Best() int {
	best := 0
	for price := range s {
		if price > best {
			best = price
		}
	}
	return best
}

// Depth returns the total resting quantity.
func (s Side) Depth() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// Levels returns the top n levels ordered from best to worst. n <= 0 returns all.
func (s Side) Levels(n int) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(s))
	for price, qty := range s {
		levels = append(levels, types.PriceLevel{Price: price, Quantity: qty})
	}

	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price > levels[j].Price
	})

	if n > 0 && len(levels) > n {
		levels = levels[:n]
	}
	return levels
}

func (s Side) clone() Side {
	out := make(Side, len(s))
	for price, qty := range s {
		out[price] = qty
	}
	return out
}

func sideFromLevels(levels []types.PriceLevel) Side {
	s := make(Side, len(levels))
	for _, lvl := range levels {
		if lvl.Quantity <= 0 || lvl.Price <= 0 || lvl.Price >= 100 {
			continue
		}
		s[lvl.Price] = lvl.Quantity
	}
	return s
}

// Book is the reconstructed order book of a single market.
//
// Kalshi only publishes bids for each leg. Asks are derived: a NO bid at P is
// a YES offer at 100-P, so bestYesAsk = 100 - bestNoBid and vice versa.
//
// Book is not safe for concurrent use; Manager serializes access per ticker
// and hands out copies to readers.
type Book struct {
	Ticker          string
	yes             Side
	no              Side
	lastSnapshotSeq int64
	lastDeltaSeq    int64
	lastUpdate      time.Time
	valid           bool
}

// NewBook returns an empty, invalid book. It becomes valid on the first snapshot.
func NewBook(ticker string) *Book {
	return &Book{
		Ticker: ticker,
		yes:    make(Side),
		no:     make(Side),
	}
}

// ApplySnapshot replaces both sides wholesale and restores validity.
func (b *Book) ApplySnapshot(yes, no []types.PriceLevel, seq int64, at time.Time) {
	b.yes = sideFromLevels(yes)
	b.no = sideFromLevels(no)
	b.lastSnapshotSeq = seq
	b.lastDeltaSeq = seq
	b.lastUpdate = at
	b.valid = true
}

// ApplyDelta sets the quantity at one price level.
//
// A seq at or below the last applied one is a duplicate and is ignored (true).
// The next seq is applied (true). Anything further ahead is a gap: the book is
// marked invalid and false is returned; the caller must resync, not retry.
func (b *Book) ApplyDelta(side types.Side, price, newQty int, seq int64, at time.Time) bool {
	if seq <= b.lastDeltaSeq {
		return true
	}

	if seq > b.lastDeltaSeq+1 {
		b.valid = false
		return false
	}

	target := b.yes
	if side == types.SideNo {
		target = b.no
	}

	if newQty <= 0 {
		delete(target, price)
	} else {
		target[price] = newQty
	}

	b.lastDeltaSeq = seq
	b.lastUpdate = at

	return true
}

// Invalidate marks the book as needing a fresh snapshot.
func (b *Book) Invalidate() {
	b.valid = false
}

// Quantity returns the resting quantity at price on side.
func (b *Book) Quantity(side types.Side, price int) int {
	if side == types.SideNo {
		return b.no[price]
	}
	return b.yes[price]
}

// BestYesBid returns the best YES bid, or 0 if none.
func (b *Book) BestYesBid() int { return b.yes.Best() }

// BestNoBid returns the best NO bid, or 0 if none.
func (b *Book) BestNoBid() int { return b.no.Best() }

// BestYesAsk returns the implied YES ask, or 0 if there are no NO bids.
func (b *Book) BestYesAsk() int {
	noBid := b.no.Best()
	if noBid == 0 {
		return 0
	}
	return 100 - noBid
}

// BestNoAsk returns the implied NO ask, or 0 if there are no YES bids.
func (b *Book) BestNoAsk() int {
	yesBid := b.yes.Best()
	if yesBid == 0 {
		return 0
	}
	return 100 - yesBid
}

// Spread returns bestYesAsk - bestYesBid, or 0 if either side is empty.
func (b *Book) Spread() int {
	bid, ask := b.BestYesBid(), b.BestYesAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// Mid returns the YES mid in cents, or 0 if either side is empty.
func (b *Book) Mid() float64 {
	bid, ask := b.BestYesBid(), b.BestYesAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return float64(bid+ask) / 2
}

// IsValid reports whether the book reflects an unbroken delta sequence.
func (b *Book) IsValid() bool { return b.valid }

// LastDeltaSeq returns the sequence number of the last applied update.
func (b *Book) LastDeltaSeq() int64 { return b.lastDeltaSeq }

// LastUpdate returns when the book was last mutated.
func (b *Book) LastUpdate() time.Time { return b.lastUpdate }

// IsStale reports whether the book has not been updated within maxAge of now.
// A book that was never updated is stale.
func (b *Book) IsStale(now time.Time, maxAge time.Duration) bool {
	if b.lastUpdate.IsZero() {
		return true
	}
	return now.Sub(b.lastUpdate) > maxAge
}

// Imbalance returns (yesDepth - noDepth) / (yesDepth + noDepth) in [-1, 1].
func (b *Book) Imbalance() float64 {
	yesDepth, noDepth := b.yes.Depth(), b.no.Depth()
	total := yesDepth + noDepth
	if total == 0 {
		return 0
	}
	return float64(yesDepth-noDepth) / float64(total)
}

// Depth returns the top n YES and NO bid levels.
func (b *Book) Depth(n int) (yes, no []types.PriceLevel) {
	return b.yes.Levels(n), b.no.Levels(n)
}

// Summary returns the observable state of the book.
func (b *Book) Summary() types.BookSummary {
	return types.BookSummary{
		Ticker:          b.Ticker,
		BestYesBid:      b.BestYesBid(),
		BestYesAsk:      b.BestYesAsk(),
		BestNoBid:       b.BestNoBid(),
		BestNoAsk:       b.BestNoAsk(),
		Spread:          b.Spread(),
		Mid:             b.Mid(),
		YesLevels:       len(b.yes),
		NoLevels:        len(b.no),
		LastSnapshotSeq: b.lastSnapshotSeq,
		LastDeltaSeq:    b.lastDeltaSeq,
		Valid:           b.valid,
		LastUpdate:      b.lastUpdate,
	}
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	return &Book{
		Ticker:          b.Ticker,
		yes:             b.yes.clone(),
		no:              b.no.clone(),
		lastSnapshotSeq: b.lastSnapshotSeq,
		lastDeltaSeq:    b.lastDeltaSeq,
		lastUpdate:      b.lastUpdate,
		valid:           b.valid,
	}
}
