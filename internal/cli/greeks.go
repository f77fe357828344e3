package cli

import (
	"github.com/spf13/cobra"

	"github.com/svirmi/options-scanner/internal/greeks"
	"github.com/svirmi/options-scanner/internal/models"
)

type greeksView struct {
	Input  greeks.Input  `json:"input"`
	Greeks models.Greeks `json:"greeks"`
	Price  float64       `json:"price"`
}

func newGreeksCmd(app *App) *cobra.Command {
	var (
		in      greeks.Input
		optType string
	)

	cmd := &cobra.Command{
		Use:     "greeks",
		Short:   "Compute Black-Scholes price and Greeks for one option",
		Example: `  optscan greeks --spot 108390 --strike 110000 --days 14 --iv 55 --type call`,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := models.ParseOptionType(optType)
			if err != nil {
				return err
			}
			in.Type = typ
			if !cmd.Flags().Changed("rate") {
				in.RiskFreeRate = app.ScanConfig.RiskFreeRate
			}

			view := greeksView{Input: in, Greeks: greeks.Compute(in), Price: greeks.Price(in)}
			output := NewOutput(cmd)
			if output.Format() == FormatJSON {
				return output.JSON(view)
			}
			output.Table([]string{"Price", "Delta", "Gamma", "Theta/day", "Vega/1%"}, [][]string{{
				money(view.Price),
				num(view.Greeks.Delta, 4),
				num(view.Greeks.Gamma, 8),
				num(view.Greeks.Theta, 2),
				num(view.Greeks.Vega, 2),
			}})
			return nil
		},
	}

	cmd.Flags().Float64Var(&in.Spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&in.Strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&in.DaysToExpiry, "days", 30, "days to expiry")
	cmd.Flags().Float64Var(&in.ImpliedVol, "iv", 60, "implied volatility in percent")
	cmd.Flags().Float64Var(&in.RiskFreeRate, "rate", 0.05, "annual risk-free rate")
	cmd.Flags().StringVar(&optType, "type", "call", "call or put")
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
	return cmd
}
