// Vwire Device Agent
//
// This is the main entry point for vwired, the Vwire gateway device agent.
// It connects to the Vwire cloud MQTT broker, exposes virtual pins to
// application code, manages local GPIO, and provides reliable (ACK-tracked)
// telemetry delivery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vwire-io/vwire-device/internal/client"
	"github.com/vwire-io/vwire-device/internal/infrastructure/config"
	"github.com/vwire-io/vwire-device/internal/infrastructure/logging"
	"github.com/vwire-io/vwire-device/internal/infrastructure/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting vwired",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Assemble the agent (opens the local store and restores GPIO state)
	agent, err := client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("assembling agent: %w", err)
	}
	defer func() {
		log.Info("shutting down agent")
		if closeErr := agent.Close(); closeErr != nil {
			log.Error("error closing agent", "error", closeErr)
		}
	}()

	// Attach local telemetry mirror (optional)
	if cfg.Telemetry.Enabled {
		tc, err := telemetry.Connect(cfg.Telemetry, cfg.DeviceID())
		if err != nil {
			return fmt.Errorf("connecting to telemetry: %w", err)
		}
		tc.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		agent.SetTelemetry(tc)
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Connect to the Vwire broker
	if err := agent.Connect(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	log.Info("broker connected",
		"device_id", agent.DeviceID(),
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	agent.OnConnect(func() {
		log.Info("broker session established")
	})
	agent.OnDisconnect(func() {
		log.Warn("broker session lost, reconnecting")
	})

	log.Info("initialisation complete, running")

	// Drive timers, GPIO polling, delivery retries, and heartbeats
	// until a shutdown signal arrives.
	if err := agent.Run(ctx); err != nil {
		return fmt.Errorf("agent run loop: %w", err)
	}

	log.Info("vwired stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VWIRE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VWIRE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
