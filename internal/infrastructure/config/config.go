package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Vwire device agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains device identity settings.
type DeviceConfig struct {
	// AuthToken is the token issued when the device was registered on the
	// dashboard. It doubles as MQTT username and password.
	AuthToken string `yaml:"auth_token"`

	// ID is an optional custom device identifier. When empty the auth
	// token is used as the device ID.
	ID string `yaml:"id"`

	// Firmware is the agent version string reported in heartbeats.
	Firmware string `yaml:"firmware"`

	// HeartbeatIntervalMS is the time between heartbeat publishes in
	// milliseconds. Zero disables heartbeats.
	HeartbeatIntervalMS int `yaml:"heartbeat_interval_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DeliveryConfig contains reliable delivery (application-level ACK) settings.
type DeliveryConfig struct {
	// Enabled turns on ACK tracking for virtual pin sends. When false,
	// sends are fire-and-forget.
	Enabled bool `yaml:"enabled"`

	// AckTimeoutMS is how long to wait for a server ACK before resending.
	AckTimeoutMS int `yaml:"ack_timeout_ms"`

	// MaxRetries is the number of resends before a message is dropped.
	MaxRetries int `yaml:"max_retries"`
}

// GPIOConfig contains GPIO pin table settings.
type GPIOConfig struct {
	// Board selects the pin name resolution table ("nodemcu" or "generic").
	Board string `yaml:"board"`
}

// StoreConfig contains local SQLite persistence settings.
type StoreConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains optional InfluxDB telemetry mirror settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VWIRE_SECTION_KEY
// For example: VWIRE_DEVICE_AUTH_TOKEN, VWIRE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Firmware:            "dev",
			HeartbeatIntervalMS: 30000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "mqtt.vwire.io",
				Port: 8883,
				TLS:  true,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Delivery: DeliveryConfig{
			Enabled:      false,
			AckTimeoutMS: 5000,
			MaxRetries:   3,
		},
		GPIO: GPIOConfig{
			Board: "generic",
		},
		Store: StoreConfig{
			Enabled:     true,
			Path:        "./data/vwire.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VWIRE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("VWIRE_DEVICE_AUTH_TOKEN"); v != "" {
		cfg.Device.AuthToken = v
	}
	if v := os.Getenv("VWIRE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("VWIRE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VWIRE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}

	// Store
	if v := os.Getenv("VWIRE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// Telemetry
	if v := os.Getenv("VWIRE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// DeviceID returns the effective device identifier: the custom ID when
// set, otherwise the auth token.
func (c *Config) DeviceID() string {
	if c.Device.ID != "" {
		return c.Device.ID
	}
	return c.Device.AuthToken
}

// GetHeartbeatInterval returns the heartbeat interval as a time.Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Device.HeartbeatIntervalMS) * time.Millisecond
}

// GetAckTimeout returns the delivery ACK timeout as a time.Duration.
func (c *Config) GetAckTimeout() time.Duration {
	return time.Duration(c.Delivery.AckTimeoutMS) * time.Millisecond
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.AuthToken == "" {
		errs = append(errs, "device.auth_token is required (set VWIRE_DEVICE_AUTH_TOKEN environment variable)")
	}
	if c.Device.HeartbeatIntervalMS < 0 {
		errs = append(errs, "device.heartbeat_interval_ms must not be negative")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Delivery.AckTimeoutMS <= 0 {
		errs = append(errs, "delivery.ack_timeout_ms must be positive")
	}
	if c.Delivery.MaxRetries < 0 {
		errs = append(errs, "delivery.max_retries must not be negative")
	}

	switch c.GPIO.Board {
	case "", "generic", "nodemcu":
	default:
		errs = append(errs, fmt.Sprintf("gpio.board %q is not supported (use generic or nodemcu)", c.GPIO.Board))
	}

	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, "store.path is required when store.enabled is true")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry.enabled is true")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry.enabled is true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
