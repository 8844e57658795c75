package cmd

import (
	"fmt"
	"io"

	"github.com/mselser95/kalshi-mm/internal/pricing"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a binary contract",
	Long: `Runs the fair value model for one contract.

Examples:
  kalshi-mm price above --spot 97500 --strike 100000 --hours 6 --vol 0.55
  kalshi-mm price range --spot 97500 --lower 97000 --upper 98000 --hours 2 --vol 0.5
  kalshi-mm price updown --vol 0.5 --imbalance 0.4 --momentum 1.2`,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	priceAboveCmd = &cobra.Command{
		Use:   "above",
		Short: "Price a contract paying if spot settles at or above the strike",
		RunE:  runPriceThreshold(pricing.PriceAbove),
	}
	priceBelowCmd = &cobra.Command{
		Use:   "below",
		Short: "Price a contract paying if spot settles below the strike",
		RunE:  runPriceThreshold(pricing.PriceBelow),
	}
	priceRangeCmd = &cobra.Command{
		Use:   "range",
		Short: "Price a contract paying if spot settles inside [lower, upper)",
		RunE:  runPriceRange,
	}
	priceUpDownCmd = &cobra.Command{
		Use:   "updown",
		Short: "Price a short-horizon up/down contract",
		RunE:  runPriceUpDown,
	}
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.AddCommand(priceAboveCmd, priceBelowCmd, priceRangeCmd, priceUpDownCmd)

	for _, c := range []*cobra.Command{priceAboveCmd, priceBelowCmd, priceRangeCmd} {
		c.Flags().Float64("spot", 0, "Underlying spot price")
		c.Flags().Float64("hours", 0, "Hours to expiry")
		c.Flags().Float64("vol", 0.5, "Annualized volatility")
		c.Flags().Float64("drift", 0, "Annualized drift")
		c.Flags().Int("settlement-window", pricing.DefaultSettlementWindowSeconds, "Settlement averaging window in seconds")
		c.Flags().Float64("basis-buffer", pricing.DefaultBasisRiskBuffer, "Volatility added for basis risk")
		_ = c.MarkFlagRequired("spot")
		_ = c.MarkFlagRequired("hours")
	}

	for _, c := range []*cobra.Command{priceAboveCmd, priceBelowCmd} {
		c.Flags().Float64("strike", 0, "Strike price")
		_ = c.MarkFlagRequired("strike")
	}

	priceRangeCmd.Flags().Float64("lower", 0, "Lower bound, inclusive")
	priceRangeCmd.Flags().Float64("upper", 0, "Upper bound, exclusive")
	_ = priceRangeCmd.MarkFlagRequired("lower")
	_ = priceRangeCmd.MarkFlagRequired("upper")

	priceUpDownCmd.Flags().Float64("vol", 0.5, "Annualized volatility")
	priceUpDownCmd.Flags().Float64("imbalance", 0, "Book imbalance in [-1, 1]")
	priceUpDownCmd.Flags().Float64("momentum", 0, "Momentum z-score")
}

func inputFromFlags(cmd *cobra.Command, strike float64) (pricing.Input, error) {
	spot, _ := cmd.Flags().GetFloat64("spot")
	hours, _ := cmd.Flags().GetFloat64("hours")
	vol, _ := cmd.Flags().GetFloat64("vol")
	drift, _ := cmd.Flags().GetFloat64("drift")
	window, _ := cmd.Flags().GetInt("settlement-window")
	buffer, _ := cmd.Flags().GetFloat64("basis-buffer")

	switch {
	case spot <= 0:
		return pricing.Input{}, fmt.Errorf("spot must be positive, got %v", spot)
	case hours < 0:
		return pricing.Input{}, fmt.Errorf("hours cannot be negative, got %v", hours)
	case vol < 0:
		return pricing.Input{}, fmt.Errorf("vol cannot be negative, got %v", vol)
	}

	in := pricing.NewInput(spot, strike, hours, vol)
	in.Drift = drift
	in.SettlementWindowSeconds = window
	in.BasisRiskBuffer = buffer
	return in, nil
}

func runPriceThreshold(price func(pricing.Input) pricing.Output) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		strike, _ := cmd.Flags().GetFloat64("strike")
		if strike <= 0 {
			return fmt.Errorf("strike must be positive, got %v", strike)
		}

		in, err := inputFromFlags(cmd, strike)
		if err != nil {
			return err
		}

		return renderPrice(cmd.OutOrStdout(), cmd.Name(), price(in))
	}
}

func runPriceRange(cmd *cobra.Command, args []string) error {
	lower, _ := cmd.Flags().GetFloat64("lower")
	upper, _ := cmd.Flags().GetFloat64("upper")
	if lower <= 0 || upper <= lower {
		return fmt.Errorf("need 0 < lower < upper, got lower=%v upper=%v", lower, upper)
	}

	in, err := inputFromFlags(cmd, lower)
	if err != nil {
		return err
	}

	return renderPrice(cmd.OutOrStdout(), "range", pricing.PriceRange(in, lower, upper))
}

func runPriceUpDown(cmd *cobra.Command, args []string) error {
	vol, _ := cmd.Flags().GetFloat64("vol")
	imbalance, _ := cmd.Flags().GetFloat64("imbalance")
	momentum, _ := cmd.Flags().GetFloat64("momentum")

	return renderPrice(cmd.OutOrStdout(), "updown", pricing.PriceUpDown(vol, imbalance, momentum))
}

func renderPrice(w io.Writer, kind string, out pricing.Output) error {
	table := tablewriter.NewWriter(w)
	table.Header("Contract", "Fair", "Cents", "CI low", "CI high", "d2", "Eff vol")

	err := table.Append(
		kind,
		fmt.Sprintf("%.4f", out.FairValue),
		fmt.Sprintf("%dc", out.FairValueCents),
		fmt.Sprintf("%.4f", out.CI[0]),
		fmt.Sprintf("%.4f", out.CI[1]),
		fmt.Sprintf("%.4f", out.D2),
		fmt.Sprintf("%.4f", out.EffectiveVol),
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
