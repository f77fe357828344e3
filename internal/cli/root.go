// Package cli provides the optscan command-line interface.
package cli

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/config"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/storage"
	"github.com/svirmi/options-scanner/internal/strategy"
)

const Version = "1.0.0"

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	ScanConfig arbitrage.Config
	Logger     zerolog.Logger

	ingestion *ingestion.DataIngestionService
}

// Ingestion builds the Deribit-backed ingestion service on first use
func (a *App) Ingestion() *ingestion.DataIngestionService {
	if a.ingestion == nil {
		svc := ingestion.NewDataIngestionService(ingestion.ServiceOptions{
			InstrumentTTL: a.Config.InstrumentCacheTTL,
			FallbackSpot:  a.Config.FallbackSpot,
		})
		// The only error is a duplicate ID, impossible on a fresh service
		_ = svc.AddSource(ingestion.NewDeribitSource("deribit", a.Config.DeribitBaseURL, a.Config.RequestTimeout))
		a.ingestion = svc
	}
	return a.ingestion
}

func (a *App) Engine() *strategy.Engine {
	return strategy.NewEngine(a.ScanConfig.RiskFreeRate)
}

func (a *App) OpenStore() (*storage.SQLiteStore, error) {
	return storage.NewSQLiteStore(a.Config.DatabasePath)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, scanCfg arbitrage.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:     cfg,
		ScanConfig: scanCfg,
		Logger:     logger,
	}

	rootCmd := &cobra.Command{
		Use:   "optscan",
		Short: "Deribit options arbitrage scanner",
		Long: `optscan scans Deribit option chains for conversion, reversal and
box-spread mispricings, prints option chains and Black-Scholes Greeks, and
analyzes multi-leg strategies at expiry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("csv", false, "output in CSV format where supported")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("currency", "c", defaultCurrency(cfg), "underlying currency")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newGreeksCmd(app))
	rootCmd.AddCommand(newStrategyCmd(app))

	return rootCmd
}

func defaultCurrency(cfg *config.Config) string {
	if len(cfg.Currencies) > 0 {
		return cfg.Currencies[0]
	}
	return "BTC"
}

func currencyFlag(cmd *cobra.Command) string {
	ccy, _ := cmd.Flags().GetString("currency")
	return strings.ToUpper(ccy)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.Format() == FormatJSON {
				return output.JSON(map[string]string{"version": Version})
			}
			output.Printf("optscan %s\n", Version)
			return nil
		},
	}
}
