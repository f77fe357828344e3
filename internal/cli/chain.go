package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svirmi/options-scanner/internal/processor"
)

type chainView struct {
	Currency string               `json:"currency"`
	Spot     float64              `json:"spot"`
	Expiry   string               `json:"expiry"`
	Expiries []string             `json:"expiries"`
	Rows     []processor.ChainRow `json:"rows"`
}

type chainCSVRow struct {
	Strike  float64 `csv:"strike"`
	CallBid float64 `csv:"call_bid"`
	CallAsk float64 `csv:"call_ask"`
	CallIV  float64 `csv:"call_iv"`
	PutBid  float64 `csv:"put_bid"`
	PutAsk  float64 `csv:"put_ask"`
	PutIV   float64 `csv:"put_iv"`
}

func newChainCmd(app *App) *cobra.Command {
	var expiry string

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Print the normalized option chain for one expiry",
		Example: `  optscan chain -c BTC
  optscan chain -c ETH --expiry 26SEP25 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ccy := currencyFlag(cmd)
			snap, err := app.Ingestion().LoadSnapshot(contextOf(cmd), ccy)
			if err != nil {
				return err
			}

			cycle := &processor.Cycle{
				Currency:     ccy,
				Spot:         snap.Spot,
				SpotFallback: snap.SpotFallback,
				Instruments:  snap.Instruments,
				Books:        snap.Books,
			}
			pipeline := processor.NewPipeline(nil,
				&processor.ValidationStage{},
				&processor.NormalizationStage{QuotedInUnderlying: app.Config.QuoteInUnderlying},
				&processor.GroupingStage{Prefer: processor.TighterSpread},
			)
			if err := pipeline.Run(contextOf(cmd), cycle); err != nil {
				return err
			}

			g := cycle.Grouping
			if len(g.Expiries) == 0 {
				return fmt.Errorf("no usable %s contracts", ccy)
			}
			if expiry == "" {
				expiry = g.Expiries[0]
			}
			expiry = strings.ToUpper(expiry)
			rows := g.Chain(expiry)
			if len(rows) == 0 {
				return fmt.Errorf("unknown expiry %s (available: %s)", expiry, strings.Join(g.Expiries, ", "))
			}

			view := chainView{Currency: ccy, Spot: cycle.Spot, Expiry: expiry, Expiries: g.Expiries, Rows: rows}
			return printChain(NewOutput(cmd), view)
		},
	}

	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry code such as 27JUN25 (default: nearest)")
	return cmd
}

func printChain(output *Output, view chainView) error {
	switch output.Format() {
	case FormatJSON:
		return output.JSON(view)
	case FormatCSV:
		out := make([]chainCSVRow, len(view.Rows))
		for i, r := range view.Rows {
			out[i].Strike = r.Strike
			if r.Call != nil {
				out[i].CallBid, out[i].CallAsk, out[i].CallIV = r.Call.Bid, r.Call.Ask, r.Call.ImpliedVol
			}
			if r.Put != nil {
				out[i].PutBid, out[i].PutAsk, out[i].PutIV = r.Put.Bid, r.Put.Ask, r.Put.ImpliedVol
			}
		}
		return output.CSV(&out)
	}

	output.Printf("%s %s, spot %s\n", view.Currency, view.Expiry, money(view.Spot))
	rows := make([][]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		row := []string{"-", "-", "-", num(r.Strike, 0), "-", "-", "-"}
		if r.Call != nil {
			row[0], row[1], row[2] = orDash(r.Call.Bid, 2), orDash(r.Call.Ask, 2), orDash(r.Call.ImpliedVol, 1)
		}
		if r.Put != nil {
			row[4], row[5], row[6] = orDash(r.Put.Bid, 2), orDash(r.Put.Ask, 2), orDash(r.Put.ImpliedVol, 1)
		}
		rows = append(rows, row)
	}
	output.Table([]string{"Call Bid", "Call Ask", "Call IV", "Strike", "Put Bid", "Put Ask", "Put IV"}, rows)
	return nil
}
