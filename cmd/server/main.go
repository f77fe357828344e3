package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/broadcast"
	"github.com/svirmi/options-scanner/internal/config"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/scanner"
	"github.com/svirmi/options-scanner/internal/storage"
	"github.com/svirmi/options-scanner/internal/strategy"
	"github.com/svirmi/options-scanner/internal/websocket"
)

const AppVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})

	scanCfg, err := config.LoadScanConfig(cfg.ScanConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scan config")
	}

	log.Info().
		Str("version", AppVersion).
		Str("environment", cfg.Environment).
		Strs("currencies", cfg.Currencies).
		Interface("scan_config", scanCfg).
		Msg(fmt.Sprintf("Starting options scanner v%s", AppVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data
	ingestionService := ingestion.NewDataIngestionService(ingestion.ServiceOptions{
		InstrumentTTL: cfg.InstrumentCacheTTL,
		FallbackSpot:  cfg.FallbackSpot,
	})
	deribit := ingestion.NewDeribitSource("deribit", cfg.DeribitBaseURL, cfg.RequestTimeout)
	if err := ingestionService.AddSource(deribit); err != nil {
		log.Fatal().Err(err).Msg("Failed to add Deribit source")
	}
	log.Info().
		Str("base_url", cfg.DeribitBaseURL).
		Dur("request_timeout", cfg.RequestTimeout).
		Msg("Configured Deribit source")

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer store.Close()

	broadcastService := broadcast.NewBroadcastService(cfg.BufferSize)

	// One scheduler per currency, seeded with the last persisted report
	registry := scanner.NewRegistry()
	for _, ccy := range cfg.Currencies {
		sch := scanner.NewScheduler(ccy, ingestionService, arbitrage.NewDetector(scanCfg),
			scanner.Options{
				Interval:           cfg.ScanInterval,
				QuotedInUnderlying: cfg.QuoteInUnderlying,
			},
			broadcastService,
		)
		report, err := store.LoadReport(ccy)
		switch {
		case err == nil:
			sch.Restore(report)
			log.Info().Str("currency", ccy).Uint64("generation", report.Generation).Msg("Restored last report")
		case !errors.Is(err, storage.ErrNotFound):
			log.Warn().Err(err).Str("currency", ccy).Msg("Failed to restore last report")
		}
		registry.Add(sch)
	}

	hub := websocket.NewHub(cfg.MaxConnections, cfg.BufferSize, registry.Reports)
	wsServer := websocket.NewServer(cfg, websocket.Deps{
		Hub:       hub,
		Registry:  registry,
		Engine:    strategy.NewEngine(scanCfg.RiskFreeRate),
		Store:     store,
		Broadcast: broadcastService,
		Sources:   ingestionService.GetAllSourceStatuses,
	})

	// Connect components
	_, hubReports := broadcastService.Subscribe()
	go hub.Consume(ctx, hubReports)

	_, storeReports := broadcastService.Subscribe()
	go store.Persist(ctx, storeReports)

	broadcastService.Start()
	log.Info().Msg("Started broadcast service")

	go func() {
		if err := wsServer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	if err := registry.StartAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start schedulers")
	}
	log.Info().Dur("interval", cfg.ScanInterval).Msg("Started scan schedulers")

	log.Info().
		Str("ws_url", fmt.Sprintf("ws://%s%s/ws", cfg.Host, cfg.WSPort)).
		Str("api_url", fmt.Sprintf("http://%s%s/api/opportunities", cfg.Host, cfg.WSPort)).
		Str("health_url", fmt.Sprintf("http://%s%s/health", cfg.Host, cfg.WSPort)).
		Msg("Server endpoints available")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
	}

	// Stop all components in reverse order
	log.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("Stopped HTTP server")

	registry.StopAll()
	log.Info().Msg("Stopped scan schedulers")

	broadcastService.Stop()
	log.Info().Msg("Stopped broadcast service")

	cancel()

	select {
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded")
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
