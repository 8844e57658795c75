package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "kalshi-mm",
	Short: "Kalshi binary market maker",
	Long: `Market-making core for Kalshi binary markets.

The bot discovers open markets over the Kalshi REST API, keeps a local order
book per market from the WebSocket feed, prices each market against a fair
value, and either takes mispriced liquidity or quotes around fair value.
Every order passes the risk engine and trades on paper.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
