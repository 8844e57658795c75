package types

import "fmt"

// ProtocolError reports a malformed or unexpected feed message.
// It is never fatal: the affected market is invalidated and resynced.
type ProtocolError struct {
	Ticker string
	Reason string // machine-readable, kebab-case
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("protocol error on %s: %s (%s)", e.Ticker, e.Reason, e.Detail)
	}

	return fmt.Sprintf("protocol error: %s (%s)", e.Reason, e.Detail)
}
