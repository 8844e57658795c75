package types

import "time"

// Kalshi websocket message types.
const (
	MsgOrderbookSnapshot = "orderbook_snapshot"
	MsgOrderbookDelta    = "orderbook_delta"
	MsgSubscribed        = "subscribed"
	MsgUnsubscribed      = "unsubscribed"
	MsgError             = "error"

	ChannelOrderbookDelta = "orderbook_delta"
)

// Envelope is the outer frame of every Kalshi websocket message.
// Seq lives on the envelope and is scoped to the subscription (Sid).
type Envelope struct {
	Type string `json:"type"`
	ID   int64  `json:"id,omitempty"`
	Sid  int64  `json:"sid,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// SnapshotPayload is the msg body of an orderbook_snapshot frame.
type SnapshotPayload struct {
	MarketTicker string       `json:"market_ticker"`
	Seq          int64        `json:"seq,omitempty"`
	Yes          []PriceLevel `json:"yes"`
	No           []PriceLevel `json:"no"`
}

// DeltaPayload is the msg body of an orderbook_delta frame.
// Delta is a change in resting quantity, not the new quantity.
type DeltaPayload struct {
	MarketTicker string `json:"market_ticker"`
	Seq          int64  `json:"seq,omitempty"`
	Price        int    `json:"price"`
	Delta        int    `json:"delta"`
	Side         Side   `json:"side"`
}

// SubscribedPayload acknowledges a subscribe command.
type SubscribedPayload struct {
	Channel string `json:"channel"`
	Sid     int64  `json:"sid"`
}

// ErrorPayload is the msg body of an error frame.
type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Command is a client to server websocket command.
type Command struct {
	ID     int64         `json:"id"`
	Cmd    string        `json:"cmd"`
	Params CommandParams `json:"params"`
}

// CommandParams holds parameters for subscribe and unsubscribe commands.
type CommandParams struct {
	Channels      []string `json:"channels,omitempty"`
	MarketTickers []string `json:"market_tickers,omitempty"`
	Sids          []int64  `json:"sids,omitempty"`
}

// SnapshotMessage is a decoded snapshot handed to the order book manager.
type SnapshotMessage struct {
	Ticker     string
	Seq        int64
	Yes        []PriceLevel
	No         []PriceLevel
	ReceivedAt time.Time
}

// DeltaMessage is a decoded delta handed to the order book manager.
type DeltaMessage struct {
	Ticker     string
	Seq        int64
	Side       Side
	Price      int
	Delta      int
	ReceivedAt time.Time
}

// FeedMessage carries exactly one of Snapshot or Delta.
type FeedMessage struct {
	Snapshot *SnapshotMessage
	Delta    *DeltaMessage
}

// Ticker returns the market ticker of whichever payload is set.
func (m *FeedMessage) Ticker() string {
	switch {
	case m.Snapshot != nil:
		return m.Snapshot.Ticker
	case m.Delta != nil:
		return m.Delta.Ticker
	default:
		return ""
	}
}

// Kind returns the wire type name of the payload.
func (m *FeedMessage) Kind() string {
	if m.Snapshot != nil {
		return MsgOrderbookSnapshot
	}
	return MsgOrderbookDelta
}
