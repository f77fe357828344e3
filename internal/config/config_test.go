package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/arbitrage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.WSPort)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Currencies)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Equal(t, 108390.0, cfg.FallbackSpot["BTC"])
	assert.True(t, cfg.QuoteInUnderlying)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CURRENCIES", " btc , sol ")
	t.Setenv("SCAN_INTERVAL", "45s")
	t.Setenv("FALLBACK_SPOT_SOL", "150.5")
	t.Setenv("QUOTE_IN_UNDERLYING", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Currencies)
	assert.Equal(t, 45*time.Second, cfg.ScanInterval)
	assert.Equal(t, 150.5, cfg.FallbackSpot["SOL"])
	assert.False(t, cfg.QuoteInUnderlying)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "10ms")

	_, err := Load()
	assert.ErrorContains(t, err, "SCAN_INTERVAL")
}

func TestLoadScanConfigDefaults(t *testing.T) {
	cfg, err := LoadScanConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, arbitrage.DefaultConfig(), cfg)
}

func TestLoadScanConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.toml")
	require.NoError(t, os.WriteFile(path, []byte("min_profit = 25\ntransaction_cost = 1.25\nmin_volume = 3\n"), 0o644))
	t.Setenv("SCAN_MIN_VOLUME", "7")

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.MinProfit)
	assert.Equal(t, 1.25, cfg.TransactionCost)
	assert.Equal(t, 7.0, cfg.MinVolume)
	assert.Equal(t, 0.05, cfg.RiskFreeRate)
}

func TestLoadScanConfigValidation(t *testing.T) {
	t.Setenv("SCAN_SLIPPAGE", "2")
	_, err := LoadScanConfig("")
	assert.ErrorContains(t, err, "slippage")
}
