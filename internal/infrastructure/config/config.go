package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for DoorSync Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Doors      DoorsConfig      `yaml:"doors"`
	Stream     StreamConfig     `yaml:"stream"`
	Command    CommandConfig    `yaml:"command"`
	Relay      RelayConfig      `yaml:"relay"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ControllerConfig contains the connection details of the garage-door
// controller backend (the HTTP/WebSocket API this core consumes).
type ControllerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Secure selects wss:// and https:// instead of ws:// and http://.
	Secure bool `yaml:"secure"`

	// AuthToken is an optional bearer token attached to command requests.
	// The controller only enforces it when its auth layer is enabled.
	AuthToken string `yaml:"auth_token"`
}

// DoorsConfig fixes the set of valid door identifiers.
// Door ids are never auto-discovered; events for ids outside this set are dropped.
type DoorsConfig struct {
	IDs []int `yaml:"ids"`
}

// StreamConfig contains WebSocket stream session settings.
type StreamConfig struct {
	Path             string `yaml:"path"`
	ReconnectDelay   int    `yaml:"reconnect_delay"`   // seconds between reconnect attempts (fixed delay)
	PingInterval     int    `yaml:"ping_interval"`     // seconds between keep-alive pings
	HandshakeTimeout int    `yaml:"handshake_timeout"` // seconds for the WebSocket handshake
	MaxMessageSize   int    `yaml:"max_message_size"`  // bytes
}

// CommandConfig contains trigger side-channel settings.
type CommandConfig struct {
	Timeout int `yaml:"timeout"` // seconds for one request/response round trip
}

// RelayConfig contains MQTT relay settings for republishing door transitions
// to companion devices.
type RelayConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Broker      RelayBrokerConfig `yaml:"broker"`
	Auth        RelayAuthConfig   `yaml:"auth"`
	QoS         int               `yaml:"qos"`
	TopicPrefix string            `yaml:"topic_prefix"`
}

// RelayBrokerConfig contains MQTT broker connection details.
type RelayBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// RelayAuthConfig contains MQTT authentication credentials.
type RelayAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HistoryConfig contains the transition history settings.
type HistoryConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
	Limit    int            `yaml:"limit"` // default rows returned by history queries
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB connection settings for door-state metrics.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// APIConfig contains the local read-only status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: DOORSYNC_SECTION_KEY
// For example: DOORSYNC_CONTROLLER_HOST, DOORSYNC_RELAY_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The stream and command defaults reproduce the controller's observed
// behaviour: 3-second fixed reconnect delay, 30-second keep-alive,
// 10-second command timeout.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Host: "localhost",
			Port: 8000,
		},
		Doors: DoorsConfig{
			IDs: []int{1, 2},
		},
		Stream: StreamConfig{
			Path:             "/ws",
			ReconnectDelay:   3,
			PingInterval:     30,
			HandshakeTimeout: 10,
			MaxMessageSize:   8192,
		},
		Command: CommandConfig{
			Timeout: 10,
		},
		Relay: RelayConfig{
			Broker: RelayBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorsync-core",
			},
			QoS:         1,
			TopicPrefix: "doorsync",
		},
		History: HistoryConfig{
			Database: DatabaseConfig{
				Path:        "./data/doorsync.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
			Limit: 50,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8091,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Controller
	if v := os.Getenv("DOORSYNC_CONTROLLER_HOST"); v != "" {
		cfg.Controller.Host = v
	}
	if v := os.Getenv("DOORSYNC_CONTROLLER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Controller.Port = port
		}
	}
	if v := os.Getenv("DOORSYNC_CONTROLLER_TOKEN"); v != "" {
		cfg.Controller.AuthToken = v
	}

	// Relay
	if v := os.Getenv("DOORSYNC_RELAY_USERNAME"); v != "" {
		cfg.Relay.Auth.Username = v
	}
	if v := os.Getenv("DOORSYNC_RELAY_PASSWORD"); v != "" {
		cfg.Relay.Auth.Password = v
	}

	// History
	if v := os.Getenv("DOORSYNC_HISTORY_PATH"); v != "" {
		cfg.History.Database.Path = v
	}

	// Telemetry
	if v := os.Getenv("DOORSYNC_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// API
	if v := os.Getenv("DOORSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Controller validation
	if c.Controller.Host == "" {
		errs = append(errs, "controller.host is required")
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		errs = append(errs, "controller.port must be between 1 and 65535")
	}

	// Door set validation: non-empty, positive, unique
	if len(c.Doors.IDs) == 0 {
		errs = append(errs, "doors.ids must list at least one door")
	}
	seen := make(map[int]struct{}, len(c.Doors.IDs))
	for _, id := range c.Doors.IDs {
		if id < 1 {
			errs = append(errs, fmt.Sprintf("doors.ids: %d is not a valid door id (must be positive)", id))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Sprintf("doors.ids: %d listed more than once", id))
		}
		seen[id] = struct{}{}
	}

	// Stream validation
	if c.Stream.ReconnectDelay < 1 {
		errs = append(errs, "stream.reconnect_delay must be at least 1 second")
	}
	if c.Stream.PingInterval < 1 {
		errs = append(errs, "stream.ping_interval must be at least 1 second")
	}

	// Command validation
	if c.Command.Timeout < 1 {
		errs = append(errs, "command.timeout must be at least 1 second")
	}

	// Relay validation
	if c.Relay.QoS < 0 || c.Relay.QoS > 2 {
		errs = append(errs, "relay.qos must be 0, 1, or 2")
	}
	if c.Relay.Enabled && c.Relay.Broker.Host == "" {
		errs = append(errs, "relay.broker.host is required when relay is enabled")
	}

	// History validation
	if c.History.Enabled && c.History.Database.Path == "" {
		errs = append(errs, "history.database.path is required when history is enabled")
	}

	// Telemetry validation
	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		errs = append(errs, "telemetry.url is required when telemetry is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StreamURL returns the WebSocket endpoint URL for the controller stream.
func (c *Config) StreamURL() string {
	scheme := "ws"
	if c.Controller.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.Controller.Host, c.Controller.Port, c.Stream.Path)
}

// BaseURL returns the HTTP base URL for the controller's command side-channel.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.Controller.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Controller.Host, c.Controller.Port)
}

// GetReconnectDelay returns the stream reconnect delay as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.Stream.ReconnectDelay) * time.Second
}

// GetPingInterval returns the stream keep-alive interval as a Duration.
func (c *Config) GetPingInterval() time.Duration {
	return time.Duration(c.Stream.PingInterval) * time.Second
}

// GetHandshakeTimeout returns the WebSocket handshake timeout as a Duration.
func (c *Config) GetHandshakeTimeout() time.Duration {
	return time.Duration(c.Stream.HandshakeTimeout) * time.Second
}

// GetCommandTimeout returns the trigger round-trip timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Command.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
