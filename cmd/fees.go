package cmd

import (
	"fmt"
	"io"

	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Print the fee breakeven table",
	Long: `Prints Kalshi taker and maker fees and the minimum profitable edge at
each price for an order of --contracts contracts.

Example:
  kalshi-mm fees --contracts 25
  kalshi-mm fees --prices 10,50,90`,
	RunE: runFees,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(feesCmd)
	feesCmd.Flags().IntP("contracts", "c", 10, "Contracts per order")
	feesCmd.Flags().IntSlice("prices", pricing.DefaultBreakevenPrices, "Prices in cents")
}

func runFees(cmd *cobra.Command, args []string) error {
	contracts, _ := cmd.Flags().GetInt("contracts")
	prices, _ := cmd.Flags().GetIntSlice("prices")

	if contracts <= 0 {
		return fmt.Errorf("contracts must be positive, got %d", contracts)
	}
	for _, p := range prices {
		if p < 1 || p > 99 {
			return fmt.Errorf("price must be in 1..99 cents, got %d", p)
		}
	}

	return renderBreakeven(cmd.OutOrStdout(), pricing.BreakevenTable(prices, contracts), contracts)
}

func renderBreakeven(w io.Writer, rows []pricing.BreakevenRow, contracts int) error {
	fmt.Fprintf(w, "Fee breakeven for %d contracts (taker %s, maker %s)\n\n",
		contracts, pricing.TakerFeeRate, pricing.MakerFeeRate)

	table := tablewriter.NewWriter(w)
	table.Header("Price", "P(1-P)", "Taker fee", "Maker fee", "Min taker edge", "Min maker half-spread")

	for _, r := range rows {
		err := table.Append(
			fmt.Sprintf("%dc", r.PriceCents),
			r.FeeFactor.StringFixed(4),
			r.TakerFee.StringFixed(0)+"c",
			r.MakerFee.StringFixed(0)+"c",
			r.MinTakerEdge.StringFixed(2)+"c",
			r.MinMakerSpread.StringFixed(2)+"c",
		)
		if err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	fmt.Fprintln(w, "  Fees are totals for the order, rounded up to the cent.")
	fmt.Fprintln(w, "  Min edges are per contract and include a half-cent buffer.")
	return nil
}
