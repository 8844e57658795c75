package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/internal/discovery"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/pkg/config"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/mselser95/kalshi-mm/pkg/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchOrderbookCmd = &cobra.Command{
	Use:   "watch-orderbook <ticker>",
	Short: "Watch the order book of one market",
	Long: `Connects to the Kalshi WebSocket, maintains the order book for one market
and prints its top of book on every update. Sequence gaps trigger a resync.

Example:
  kalshi-mm watch-orderbook KXBTCD-26MAR0217-T97499.99`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchOrderbookCmd)
	watchOrderbookCmd.Flags().BoolP("json", "j", false, "Output book summaries as JSON")
}

func runWatchOrderbook(cmd *cobra.Command, args []string) error {
	ticker := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := discovery.NewClient(cfg.KalshiAPIURL, cfg.DiscoveryRequestRate, logger)
	market, err := client.FetchMarket(ctx, ticker)
	if err != nil {
		logger.Warn("market-metadata-unavailable", zap.String("ticker", ticker), zap.Error(err))
	} else {
		fmt.Printf("Market: %s\n", market.Title)
		fmt.Printf("Status: %s, closes %s\n\n", market.Status, market.CloseTime.Format(time.RFC3339))
	}

	wsManager := websocket.New(websocket.Config{
		URL:                   cfg.KalshiWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		ResyncInterval:        cfg.WSResyncInterval,
		Logger:                logger,
	})

	err = wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}
	defer wsManager.Close()

	err = wsManager.Subscribe(ctx, []string{ticker})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Println("Subscribed! Watching for order book updates...")

	// The manager is fed by hand so gaps surface here.
	books := orderbook.New(&orderbook.Config{Logger: logger})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	msgChan := wsManager.MessageChan()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		case req := <-books.ResyncChan():
			fmt.Printf("gap detected (%s), resyncing\n", req.Reason)
			go func() {
				rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
				defer rcancel()
				if err := wsManager.Resync(rctx, req.Ticker); err != nil {
					logger.Warn("resync-failed", zap.Error(err))
				}
			}()
		case msg, ok := <-msgChan:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			applyFeedMessage(books, msg)

			summary, found := books.Summary(ticker)
			if !found {
				continue
			}

			if jsonOutput {
				out, _ := json.Marshal(summary)
				fmt.Println(string(out))
			} else {
				printSummary(w, msg.Kind(), summary)
			}
		}
	}
}

func applyFeedMessage(books *orderbook.Manager, msg *types.FeedMessage) {
	switch {
	case msg.Snapshot != nil:
		books.HandleSnapshot(msg.Snapshot)
	case msg.Delta != nil:
		books.HandleDelta(msg.Delta)
	}
}

func printSummary(w *tabwriter.Writer, kind string, s types.BookSummary) {
	state := "valid"
	if !s.Valid {
		state = "INVALID"
	}

	fmt.Fprintf(w, "[%s] %s\tseq=%d\t", s.LastUpdate.Format("15:04:05.000"), kind, s.LastDeltaSeq)
	fmt.Fprintf(w, "YES %s / %s\t", formatCents(s.BestYesBid), formatCents(s.BestYesAsk))
	fmt.Fprintf(w, "NO %s / %s\t", formatCents(s.BestNoBid), formatCents(s.BestNoAsk))
	fmt.Fprintf(w, "spread=%d\t%s\n", s.Spread, state)

	w.Flush()
}

func formatCents(c int) string {
	if c == 0 {
		return "-"
	}
	return fmt.Sprintf("%dc", c)
}
