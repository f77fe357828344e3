package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Host        string
	WSPort      string
	LogLevel    string
	LogFile     string
	Environment string

	// Database configuration
	DatabasePath string

	// Timeouts
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	RequestTimeout  time.Duration

	// Limits and buffer sizes
	MaxConnections int
	MaxMessageSize int64
	BufferSize     int

	// Market data
	DeribitBaseURL     string
	Currencies         []string
	ScanInterval       time.Duration
	InstrumentCacheTTL time.Duration
	QuoteInUnderlying  bool
	FallbackSpot       map[string]float64
	ScanConfigFile     string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Host:               getEnv("HOST", "localhost"),
		WSPort:             getEnv("WS_PORT", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		LogFile:            getEnv("LOG_FILE", ""),
		Environment:        getEnv("ENV", "development"),
		DatabasePath:       getEnv("DATABASE_PATH", "scanner.db"),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		WriteTimeout:       getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ReadTimeout:        getDurationEnv("READ_TIMEOUT", 10*time.Second),
		PingInterval:       getDurationEnv("PING_INTERVAL", 30*time.Second),
		PongWait:           getDurationEnv("PONG_WAIT", 60*time.Second),
		RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		MaxConnections:     getIntEnv("MAX_CONNECTIONS", 1000),
		MaxMessageSize:     getInt64Env("MAX_MESSAGE_SIZE", 512*1024), // 512KB default
		BufferSize:         getIntEnv("BUFFER_SIZE", 256),
		DeribitBaseURL:     getEnv("DERIBIT_BASE_URL", "https://www.deribit.com/api/v2"),
		Currencies:         getListEnv("CURRENCIES", []string{"BTC", "ETH"}),
		ScanInterval:       getDurationEnv("SCAN_INTERVAL", 30*time.Second),
		InstrumentCacheTTL: getDurationEnv("INSTRUMENT_CACHE_TTL", 5*time.Minute),
		QuoteInUnderlying:  getBoolEnv("QUOTE_IN_UNDERLYING", true),
		ScanConfigFile:     getEnv("SCAN_CONFIG_FILE", "scan.toml"),
		FallbackSpot:       make(map[string]float64),
	}

	defaults := map[string]float64{"BTC": 108390, "ETH": 2500}
	for _, ccy := range cfg.Currencies {
		cfg.FallbackSpot[ccy] = getFloatEnv("FALLBACK_SPOT_"+ccy, defaults[ccy])
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", c.MaxConnections)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE must be positive, got %d", c.BufferSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("READ_TIMEOUT must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive")
	}
	if c.PongWait <= c.PingInterval {
		return fmt.Errorf("PONG_WAIT must exceed PING_INTERVAL")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL must be at least 1s, got %s", c.ScanInterval)
	}
	if c.InstrumentCacheTTL < 0 {
		return fmt.Errorf("INSTRUMENT_CACHE_TTL must not be negative")
	}
	if len(c.Currencies) == 0 {
		return fmt.Errorf("CURRENCIES must name at least one currency")
	}
	if c.DeribitBaseURL == "" {
		return fmt.Errorf("DERIBIT_BASE_URL must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, upper-casing each entry
func getListEnv(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
