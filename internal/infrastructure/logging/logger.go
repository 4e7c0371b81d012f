package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vwire-io/vwire-device/internal/infrastructure/config"
)

// Logger is the agent's structured logger, a thin layer over slog.
//
// Every record carries the service name and firmware version so logs from
// multiple devices can be separated when shipped to a central collector.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
//
// Format is JSON by default (gateway deployments ship logs to a collector)
// with "text" available for bench work. Output goes to stdout unless
// "stderr" is configured. The version string becomes a default field on
// every record.
func New(cfg config.LoggingConfig, version string) *Logger {
	// Determine output writer
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	// Add default fields
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "vwired"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger carrying extra default attributes. Each
// subsystem takes one tagged with its component name.
//
// Example:
//
//	gpioLog := logger.With("component", "gpio")
//	gpioLog.Info("pin added", "pin", "D4") // Includes component=gpio
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default returns a stdout JSON logger at info level for the window
// before config.yaml has been read. Config load failures are reported
// through this logger.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
