package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"

	"github.com/svirmi/options-scanner/internal/arbitrage"
)

// LoadScanConfig reads scan tuning from an optional TOML file and SCAN_*
// environment variables, in that order of precedence: env wins.
func LoadScanConfig(path string) (arbitrage.Config, error) {
	defaults := arbitrage.DefaultConfig()

	v := viper.New()
	v.SetDefault("min_profit", defaults.MinProfit)
	v.SetDefault("max_risk", defaults.MaxRisk)
	v.SetDefault("transaction_cost", defaults.TransactionCost)
	v.SetDefault("slippage", defaults.Slippage)
	v.SetDefault("min_volume", defaults.MinVolume)
	v.SetDefault("risk_free_rate", defaults.RiskFreeRate)

	v.SetEnvPrefix("SCAN")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return arbitrage.Config{}, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	var cfg arbitrage.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return arbitrage.Config{}, fmt.Errorf("decoding scan config: %w", err)
	}
	if err := ValidateScanConfig(cfg); err != nil {
		return arbitrage.Config{}, err
	}
	return cfg, nil
}

func ValidateScanConfig(cfg arbitrage.Config) error {
	if cfg.TransactionCost < 0 {
		return fmt.Errorf("transaction_cost must not be negative, got %v", cfg.TransactionCost)
	}
	if cfg.Slippage < 0 || cfg.Slippage > 1 {
		return fmt.Errorf("slippage must be a fraction in [0, 1], got %v", cfg.Slippage)
	}
	if cfg.MinVolume < 0 {
		return fmt.Errorf("min_volume must not be negative, got %v", cfg.MinVolume)
	}
	if cfg.MaxRisk < 0 {
		return fmt.Errorf("max_risk must not be negative, got %v", cfg.MaxRisk)
	}
	return nil
}
