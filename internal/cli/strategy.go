package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/strategy"
)

func newStrategyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Build and analyze multi-leg option strategies",
	}
	cmd.AddCommand(newStrategyTemplatesCmd())
	cmd.AddCommand(newStrategyAnalyzeCmd(app))
	cmd.AddCommand(newStrategySaveCmd(app))
	cmd.AddCommand(newStrategyListCmd(app))
	return cmd
}

func newStrategyTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List strategy templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.Format() == FormatJSON {
				return output.JSON(strategy.TemplateNames())
			}
			output.Printf("%s\n", strings.Join(strategy.TemplateNames(), "\n"))
			return nil
		},
	}
}

// legSource collects the flags that select a set of legs
type legSource struct {
	template string
	file     string
	saved    string
	spot     float64
}

func (s *legSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.template, "template", "", "template name (see 'strategy templates')")
	cmd.Flags().StringVar(&s.file, "legs", "", "JSON file with an array of legs")
	cmd.Flags().StringVar(&s.saved, "saved", "", "name of a saved strategy")
	cmd.Flags().Float64Var(&s.spot, "spot", 0, "underlying price (default: live spot)")
}

// resolveSpot uses the flag or fetches the live spot for the currency
func (s *legSource) resolveSpot(cmd *cobra.Command, app *App) (float64, error) {
	if s.spot > 0 {
		return s.spot, nil
	}
	spot, fallback, err := app.Ingestion().Spot(contextOf(cmd), currencyFlag(cmd))
	if err != nil {
		return 0, err
	}
	if fallback {
		app.Logger.Warn().Float64("spot", spot).Msg("Live spot unavailable, using fallback")
	}
	s.spot = spot
	return spot, nil
}

func (s *legSource) legs(cmd *cobra.Command, app *App) ([]models.StrategyLeg, error) {
	switch {
	case s.template != "":
		spot, err := s.resolveSpot(cmd, app)
		if err != nil {
			return nil, err
		}
		return app.Engine().Template(s.template, spot)

	case s.file != "":
		data, err := os.ReadFile(s.file)
		if err != nil {
			return nil, err
		}
		var legs []models.StrategyLeg
		if err := json.Unmarshal(data, &legs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.file, err)
		}
		book, err := strategy.NewBook(legs...)
		if err != nil {
			return nil, err
		}
		return book.Legs(), nil

	case s.saved != "":
		store, err := app.OpenStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadStrategy(s.saved)
	}
	return nil, errors.New("one of --template, --legs or --saved is required")
}

func newStrategyAnalyzeCmd(app *App) *cobra.Command {
	var src legSource

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Payoff curve, breakevens and Greeks of a strategy",
		Example: `  optscan strategy analyze --template iron-condor --spot 108390
  optscan strategy analyze --legs legs.json --csv > curve.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			legs, err := src.legs(cmd, app)
			if err != nil {
				return err
			}
			spot, err := src.resolveSpot(cmd, app)
			if err != nil {
				return err
			}
			analysis, err := app.Engine().Analyze(legs, spot)
			if err != nil {
				return err
			}
			return printAnalysis(NewOutput(cmd), legs, analysis)
		},
	}
	src.register(cmd)
	return cmd
}

func printAnalysis(output *Output, legs []models.StrategyLeg, a models.StrategyAnalysis) error {
	switch output.Format() {
	case FormatJSON:
		return output.JSON(struct {
			Legs     []models.StrategyLeg    `json:"legs"`
			Analysis models.StrategyAnalysis `json:"analysis"`
		}{legs, a})
	case FormatCSV:
		return output.CSV(&a.Curve)
	}

	rows := make([][]string, 0, len(legs))
	for _, l := range legs {
		rows = append(rows, []string{string(l.Action), fmt.Sprintf("%d", l.Quantity), string(l.Type), num(l.Strike, 0), money(l.Premium), num(l.ImpliedVol, 1)})
	}
	output.Table([]string{"Action", "Qty", "Type", "Strike", "Premium", "IV"}, rows)

	maxProfit, maxLoss := money(a.MaxProfit), money(a.MaxLoss)
	if a.ProfitUnbounded {
		maxProfit = "unlimited"
	}
	if a.LossUnbounded {
		maxLoss = "unlimited"
	}
	bes := make([]string, len(a.Breakevens))
	for i, b := range a.Breakevens {
		bes[i] = num(b, 0)
	}
	if len(bes) == 0 {
		bes = []string{"none"}
	}

	output.Printf("spot %s  net premium %s\n", money(a.Spot), money(a.NetPremium))
	output.Printf("max profit %s  max loss %s  breakevens %s\n", maxProfit, maxLoss, strings.Join(bes, ", "))
	output.Printf("delta %s  gamma %s  theta %s  vega %s\n",
		num(a.Greeks.Delta, 4), num(a.Greeks.Gamma, 8), num(a.Greeks.Theta, 2), num(a.Greeks.Vega, 2))
	return nil
}

func newStrategySaveCmd(app *App) *cobra.Command {
	var src legSource

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a strategy's legs under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			legs, err := src.legs(cmd, app)
			if err != nil {
				return err
			}
			store, err := app.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveStrategy(args[0], legs); err != nil {
				return err
			}
			NewOutput(cmd).Printf("saved %s (%d legs)\n", args[0], len(legs))
			return nil
		},
	}
	src.register(cmd)
	return cmd
}

func newStrategyListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()
			names, err := store.Strategies()
			if err != nil {
				return err
			}
			output := NewOutput(cmd)
			if output.Format() == FormatJSON {
				if names == nil {
					names = []string{}
				}
				return output.JSON(names)
			}
			for _, n := range names {
				output.Printf("%s\n", n)
			}
			return nil
		},
	}
}
