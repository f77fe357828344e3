package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/scanner"
)

func newScanCmd(app *App) *cobra.Command {
	var (
		typeFilter string
		minProfit  float64
		limit      int
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the option chain for arbitrage opportunities",
		Example: `  optscan scan -c BTC
  optscan scan -c ETH --type box --min-profit 5 --csv
  optscan scan --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.Filter{MinProfit: minProfit}
			if typeFilter != "" && typeFilter != "all" {
				typ, ok := models.ParseArbitrageType(typeFilter)
				if !ok {
					return fmt.Errorf("invalid --type %q (conversion, reversal, box or all)", typeFilter)
				}
				filter.Type = typ
			}

			output := NewOutput(cmd)
			printer := &reportPrinter{output: output, filter: filter, limit: limit}
			sch := scanner.NewScheduler(currencyFlag(cmd), app.Ingestion(),
				arbitrage.NewDetector(app.ScanConfig),
				scanner.Options{
					Interval:           app.Config.ScanInterval,
					QuotedInUnderlying: app.Config.QuoteInUnderlying,
					ScanTimeout:        app.Config.RequestTimeout * 3,
				},
				printer,
			)

			if !watch {
				_, err := sch.Trigger(contextOf(cmd))
				if err != nil {
					return err
				}
				return printer.err
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := sch.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			sch.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "all", "arbitrage type: conversion, reversal, box or all")
	cmd.Flags().Float64Var(&minProfit, "min-profit", 0, "minimum profit to display")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows in table output (0 for all)")
	cmd.Flags().BoolVar(&watch, "watch", false, "rescan on the configured interval until interrupted")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reportPrinter renders each committed report
type reportPrinter struct {
	output *Output
	filter models.Filter
	limit  int
	err    error
}

func (p *reportPrinter) Publish(report models.ScanReport) {
	p.err = p.print(report.Filtered(p.filter))
}

func (p *reportPrinter) print(report models.ScanReport) error {
	switch p.output.Format() {
	case FormatJSON:
		return p.output.JSON(report)
	case FormatCSV:
		return p.output.CSV(&report.Opportunities)
	}

	spotNote := ""
	if report.SpotFallback {
		spotNote = " (fallback)"
	}
	p.output.Printf("%s spot %s%s, %d contracts, %d opportunities\n",
		report.Currency, money(report.Spot), spotNote, report.ContractCount, len(report.Opportunities))
	if len(report.Opportunities) == 0 {
		return nil
	}

	opps := report.Opportunities
	if p.limit > 0 && len(opps) > p.limit {
		opps = opps[:p.limit]
	}
	rows := make([][]string, 0, len(opps))
	for _, o := range opps {
		strike := num(o.Strike, 0)
		if o.Type == models.Box {
			strike += "/" + num(o.HighStrike, 0)
		}
		rows = append(rows, []string{
			string(o.Type),
			o.Expiry,
			strike,
			money(o.Profit),
			pct(o.ProfitPercent),
			pct(o.AnnualizedReturn),
			fmt.Sprintf("%d", o.DaysToExpiry),
			num(o.LiquidityScore, 0),
			num(o.Confidence, 0),
			string(o.RiskLevel),
		})
	}
	p.output.Table([]string{"Type", "Expiry", "Strike", "Profit", "Profit %", "Annual %", "Days", "Liquidity", "Confidence", "Risk"}, rows)

	s := report.Summary
	p.output.Printf("mean %s  median %s  best %s  total %s\n",
		money(s.MeanProfit), money(s.MedianProfit), money(s.BestProfit), money(s.TotalProfit))
	return nil
}
