package cmd

import (
	"fmt"

	"github.com/mselser95/kalshi-mm/internal/app"
	"github.com/mselser95/kalshi-mm/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the market maker",
	Long: `Starts the market maker, which will:
1. Discover open markets from the Kalshi REST API
2. Subscribe to their order books via WebSocket
3. Price each market from manual or spot-driven fair values
4. Take or quote, subject to the risk limits, in paper mode

Use --ticker to trade specific markets, with --no-discovery to trade only those.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceP("ticker", "t", nil, "Market ticker to subscribe at startup (repeatable)")
	runCmd.Flags().Bool("no-discovery", false, "Disable market discovery; trade only --ticker markets")
}

func runBot(cmd *cobra.Command, args []string) error {
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

	tickers, _ := cmd.Flags().GetStringSlice("ticker")
	noDiscovery, _ := cmd.Flags().GetBool("no-discovery")

	if noDiscovery && len(tickers) == 0 {
		return fmt.Errorf("--no-discovery requires at least one --ticker")
	}

	opts := &app.Options{
		Tickers:     tickers,
		NoDiscovery: noDiscovery,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
