package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger
type Options struct {
	Environment string
	// Level overrides the environment default when set
	Level string
	// File enables a rotated JSON log file alongside the console
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Quiet drops console output, e.g. for --json CLI runs
	Quiet bool
}

func Init(opts Options) {
	// Set logger time format
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02 15:04:05.000",
			NoColor:    opts.Environment == "production",
		})
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultInt(opts.MaxSizeMB, 50),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			MaxAge:     defaultInt(opts.MaxAgeDays, 14),
			Compress:   true,
		})
	}

	switch len(writers) {
	case 0:
		log.Logger = zerolog.Nop()
	case 1:
		log.Logger = zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	}

	// Set log level based on environment
	switch opts.Environment {
	case "development":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "production":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if opts.Level != "" {
		if level, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	log.Info().
		Str("environment", opts.Environment).
		Str("level", zerolog.GlobalLevel().String()).
		Str("file", opts.File).
		Msg("Logger initialized")
}

// GetLogger returns a logger with component context
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
