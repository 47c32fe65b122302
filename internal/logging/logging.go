// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "opinion-arena", "logs", "arena.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// WithFirm adds a firm name to the logger context.
func WithFirm(logger zerolog.Logger, firmName string) zerolog.Logger {
	return logger.With().Str("firm", firmName).Logger()
}

// WithMarket adds a market ID to the logger context.
func WithMarket(logger zerolog.Logger, marketID int64) zerolog.Logger {
	return logger.With().Int64("market_id", marketID).Logger()
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID string) zerolog.Logger {
	return logger.With().Str("order_id", orderID).Logger()
}

// WithCycle adds a cycle ID to the logger context.
func WithCycle(logger zerolog.Logger, cycleID string) zerolog.Logger {
	return logger.With().Str("cycle_id", cycleID).Logger()
}

// LogBet logs a bet execution event.
func LogBet(logger zerolog.Logger, firm string, marketID int64, side string, size, price float64) {
	logger.Info().
		Str("event", "bet").
		Str("firm", firm).
		Int64("market_id", marketID).
		Str("side", side).
		Float64("size", size).
		Float64("price", price).
		Msg("Bet executed")
}

// LogSkip logs a skipped (firm, market) pair with its reason.
func LogSkip(logger zerolog.Logger, firm string, marketID int64, reason string) {
	logger.Info().
		Str("event", "skip").
		Str("firm", firm).
		Int64("market_id", marketID).
		Str("reason", reason).
		Msg("Pair skipped")
}

// LogDecision logs a firm's prediction.
func LogDecision(logger zerolog.Logger, firm string, marketID int64, probability, confidence float64, reasoning string) {
	logger.Info().
		Str("event", "decision").
		Str("firm", firm).
		Int64("market_id", marketID).
		Float64("probability", probability).
		Float64("confidence", confidence).
		Str("reasoning", reasoning).
		Msg("Firm decision")
}

// LogStrike logs a monitor strike against an open order.
func LogStrike(logger zerolog.Logger, orderID string, strikes int, reason string) {
	logger.Warn().
		Str("event", "strike").
		Str("order_id", orderID).
		Int("strikes", strikes).
		Str("reason", reason).
		Msg("Order strike")
}

// LogAPICall logs a venue API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
