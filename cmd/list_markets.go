package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mselser95/kalshi-mm/internal/discovery"
	"github.com/mselser95/kalshi-mm/pkg/config"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List open markets from the Kalshi REST API",
	Long: `Fetches and displays open markets, soonest close first.

Example:
  kalshi-mm list-markets --series KXBTCD --limit 50`,
	RunE: runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
	listMarketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to fetch")
	listMarketsCmd.Flags().StringP("series", "s", "", "Series ticker to list (default all)")
	listMarketsCmd.Flags().BoolP("verbose", "v", false, "Show strikes and underlying")
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	limit, _ := cmd.Flags().GetInt("limit")
	series, _ := cmd.Flags().GetString("series")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	mkts, err := fetchMarkets(ctx, cfg.KalshiAPIURL, cfg.DiscoveryRequestRate, series, limit, logger)
	if err != nil {
		return err
	}

	return renderMarkets(cmd.OutOrStdout(), mkts, time.Now(), verbose)
}

func fetchMarkets(ctx context.Context, baseURL string, rps float64, series string, limit int, logger *zap.Logger) ([]types.Market, error) {
	client := discovery.NewClient(baseURL, rps, logger)

	mkts, err := client.FetchOpenMarkets(ctx, series, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	sort.SliceStable(mkts, func(i, j int) bool {
		return mkts[i].CloseTime.Before(mkts[j].CloseTime)
	})
	return mkts, nil
}

func renderMarkets(w io.Writer, mkts []types.Market, now time.Time, verbose bool) error {
	if len(mkts) == 0 {
		fmt.Fprintln(w, "No open markets found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	if verbose {
		table.Header("Ticker", "Title", "Bid", "Ask", "Closes in", "Strike", "Floor", "Cap")
	} else {
		table.Header("Ticker", "Title", "Bid", "Ask", "Closes in")
	}

	for i := range mkts {
		m := &mkts[i]

		title := m.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}

		row := []any{
			m.Ticker,
			title,
			fmt.Sprintf("%dc", m.YesBid),
			fmt.Sprintf("%dc", m.YesAsk),
			fmt.Sprintf("%.1fh", m.HoursToExpiry(now)),
		}
		if verbose {
			row = append(row, m.StrikeType, fmt.Sprintf("%g", m.FloorStrike), fmt.Sprintf("%g", m.CapStrike))
		}

		err := table.Append(row...)
		if err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	fmt.Fprintf(w, "\nTotal: %d markets\n", len(mkts))
	return nil
}
