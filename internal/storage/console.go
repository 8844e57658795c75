package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to a writer.
type ConsoleStorage struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to w.
func NewConsoleStorageWriter(w io.Writer, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    w,
		logger: logger,
	}
}

// StoreDecision prints a decision as a one-row table.
func (c *ConsoleStorage) StoreDecision(ctx context.Context, rec DecisionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "SENT"
	if !rec.Accepted {
		status = "REJECTED " + rec.RejectCode
	}

	fmt.Fprintf(c.out, "\n[%s] %s %s\n", rec.DecidedAt.Format("15:04:05.000"), rec.Ticker, status)

	table := tablewriter.NewWriter(c.out)
	table.Header("Action", "Side", "Price", "Size", "Mode", "Fair", "Bid/Ask")
	err := table.Append(
		rec.Action,
		rec.Side,
		fmt.Sprintf("%dc", rec.PriceCents),
		fmt.Sprintf("%d", rec.Size),
		rec.Mode,
		fmt.Sprintf("%dc", rec.FairCents),
		fmt.Sprintf("%d/%d", rec.MarketBid, rec.MarketAsk),
	)
	if err != nil {
		return fmt.Errorf("append decision row: %w", err)
	}
	err = table.Render()
	if err != nil {
		return fmt.Errorf("render decision: %w", err)
	}

	fmt.Fprintf(c.out, "  %s\n", rec.Reason)

	return nil
}

// StoreFill prints a fill on one line.
func (c *ConsoleStorage) StoreFill(ctx context.Context, fill ledger.Fill) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := "taker"
	if fill.Maker {
		kind = "maker"
	}

	fmt.Fprintf(c.out, "[%s] FILL %s %s %d @ %dc fee %.0fc (%s)\n",
		fill.Time.Format("15:04:05.000"), fill.Ticker, fill.Side, fill.Size, fill.PriceCents, fill.FeeCents, kind)

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
