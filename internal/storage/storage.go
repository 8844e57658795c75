package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/kalshi-mm/internal/ledger"
)

// DecisionRecord is one audited outcome of the decision loop: a non-NONE
// decision that was sent, or one that risk rejected.
type DecisionRecord struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Side       string    `json:"side,omitempty"`
	PriceCents int       `json:"price_cents"`
	Size       int       `json:"size"`
	Mode       string    `json:"mode"`
	FairCents  int       `json:"fair_cents"`
	MarketBid  int       `json:"market_bid"`
	MarketAsk  int       `json:"market_ask"`
	Accepted   bool      `json:"accepted"`
	RejectCode string    `json:"reject_code,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// NewDecisionRecord returns a record with a fresh id.
func NewDecisionRecord(ticker, action, reason string, at time.Time) DecisionRecord {
	return DecisionRecord{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Action:    action,
		Reason:    reason,
		Accepted:  true,
		DecidedAt: at,
	}
}

// Storage is the interface for the decision and fill audit trail.
type Storage interface {
	// StoreDecision records a decision and its risk outcome.
	StoreDecision(ctx context.Context, rec DecisionRecord) error

	// StoreFill records an executed trade.
	StoreFill(ctx context.Context, fill ledger.Fill) error

	// Close closes the storage connection.
	Close() error
}
