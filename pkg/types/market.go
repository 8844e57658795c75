package types

import "time"

// Kalshi market statuses.
const (
	MarketStatusOpen      = "open"
	MarketStatusActive    = "active"
	MarketStatusClosed    = "closed"
	MarketStatusSettled   = "settled"
	MarketStatusFinalized = "finalized"
)

// Strike types describing how a market settles against its underlying.
const (
	StrikeGreater = "greater"
	StrikeLess    = "less"
	StrikeBetween = "between"
	StrikeUpDown  = "up_down"
)

// Market is a Kalshi market as returned by the public REST API.
type Market struct {
	Ticker       string    `json:"ticker"`
	EventTicker  string    `json:"event_ticker"`
	SeriesTicker string    `json:"series_ticker,omitempty"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	OpenTime     time.Time `json:"open_time"`
	CloseTime    time.Time `json:"close_time"`
	StrikeType   string    `json:"strike_type,omitempty"`
	FloorStrike  float64   `json:"floor_strike,omitempty"`
	CapStrike    float64   `json:"cap_strike,omitempty"`
	YesBid       int       `json:"yes_bid"`
	YesAsk       int       `json:"yes_ask"`
	Volume24h    int64     `json:"volume_24h"`

	// Underlying is the reference symbol used for pricing (e.g. BTC-USD).
	// It is not part of the API payload; discovery fills it from the series mapping.
	Underlying string `json:"underlying,omitempty"`
}

// IsOpen reports whether the market is still tradable at now.
func (m *Market) IsOpen(now time.Time) bool {
	if m.Status != MarketStatusOpen && m.Status != MarketStatusActive {
		return false
	}
	return m.CloseTime.IsZero() || now.Before(m.CloseTime)
}

// HoursToExpiry returns the time remaining until close, in hours, floored at 0.
func (m *Market) HoursToExpiry(now time.Time) float64 {
	if m.CloseTime.IsZero() {
		return 0
	}
	h := m.CloseTime.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// MarketsResponse is one page of GET /markets.
type MarketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}
