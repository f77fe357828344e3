package main

import (
	"context"
	"fmt"
	"os"

	"github.com/svirmi/options-scanner/internal/cli"
	"github.com/svirmi/options-scanner/internal/config"
	"github.com/svirmi/options-scanner/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger.Init(logger.Options{
		Environment: cfg.Environment,
		Level:       level,
		File:        cfg.LogFile,
	})

	scanCfg, err := config.LoadScanConfig(cfg.ScanConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan config:", err)
		os.Exit(1)
	}

	root := cli.NewRootCmd(cfg, scanCfg, logger.GetLogger("cli"))
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
