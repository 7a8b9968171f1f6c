package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for vendsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Stream    StreamConfig    `yaml:"stream"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
}

// ServiceConfig contains service identity settings.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// URL is the full broker URL (tcp://, ssl://, ws:// or wss://). An empty URL
// is a configuration error and is reported as such — never as a network error.
type MQTTConfig struct {
	URL string `yaml:"url"`
	QoS int    `yaml:"qos"`

	// ConnectTimeout is the maximum time to wait for a broker connection (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// KeepAlive is the MQTT keepalive interval (seconds).
	KeepAlive int `yaml:"keep_alive"`

	// ProductTopicTemplate is the publish topic for product operations.
	// The exact pattern is part of the broker contract and must match what the
	// machine controllers subscribe to; confirm with the broker owner before
	// changing. Placeholders: {enterpriseId}, {productId}.
	ProductTopicTemplate string `yaml:"product_topic_template"`

	// Credentials are the static fallback broker credentials, used when a
	// request carries no per-user MQTT identity.
	Credentials MQTTCredentialsConfig `yaml:"credentials"`
}

// MQTTCredentialsConfig contains static MQTT broker credentials.
type MQTTCredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	UserID   int64  `yaml:"user_id"`
}

// StreamConfig contains payment/sale event stream settings.
type StreamConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topics overrides the default subscription set
	// (machines/+/payments and enterprises/+/sales) when non-empty.
	Topics []string `yaml:"topics"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the payment
// metrics sink.
type InfluxDBConfig struct {
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// DispatchConfig contains rate limiting for command dispatch.
//
// Rapid repeated operations on the same entity (batch slot edits, impatient
// operators) are throttled here instead of by hidden global state.
type DispatchConfig struct {
	Enabled          bool    `yaml:"enabled"`
	OperationsPerSec float64 `yaml:"operations_per_sec"`
	Burst            int     `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VENDSYNC_SECTION_KEY
// For example: VENDSYNC_MQTT_URL, VENDSYNC_DATABASE_PATH.
// NEXT_PUBLIC_MQTT_URL is honoured as a broker URL alias because the admin
// dashboard is deployed with that variable.
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
		Service: ServiceConfig{
			Name: "vendsync",
		},
		MQTT: MQTTConfig{
			QoS:                  1,
			ConnectTimeout:       10,
			KeepAlive:            30,
			ProductTopicTemplate: "enterprises/{enterpriseId}/products/{productId}",
		},
		Stream: StreamConfig{
			Enabled: true,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/vendsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Dispatch: DispatchConfig{
			Enabled:          true,
			OperationsPerSec: 5,
			Burst:            10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VENDSYNC_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	// Broker URL. NEXT_PUBLIC_MQTT_URL is what the dashboard deployment
	// exports; VENDSYNC_MQTT_URL wins when both are set.
	if v := os.Getenv("NEXT_PUBLIC_MQTT_URL"); v != "" {
		cfg.MQTT.URL = v
	}
	if v := os.Getenv("VENDSYNC_MQTT_URL"); v != "" {
		cfg.MQTT.URL = v
	}
	if v := os.Getenv("VENDSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Credentials.Username = v
	}
	if v := os.Getenv("VENDSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Credentials.Password = v
	}
	if v := os.Getenv("VENDSYNC_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Credentials.ClientID = v
	}
	if v := os.Getenv("VENDSYNC_MQTT_PRODUCT_TOPIC"); v != "" {
		cfg.MQTT.ProductTopicTemplate = v
	}

	// Database
	if v := os.Getenv("VENDSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("VENDSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VENDSYNC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VENDSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("VENDSYNC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Note: an empty mqtt.url passes validation here — the broker URL is checked
// at session-dial time so that its absence surfaces through the MQTT error
// taxonomy as a configuration error, keeping the service bootable for
// diagnostics even when the broker is not yet configured.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}
	if c.MQTT.ProductTopicTemplate != "" &&
		(!strings.Contains(c.MQTT.ProductTopicTemplate, "{productId}") ||
			!strings.Contains(c.MQTT.ProductTopicTemplate, "{enterpriseId}")) {
		errs = append(errs, "mqtt.product_topic_template must contain {enterpriseId} and {productId}")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// JWT secret is required: the command endpoints reach physical machines,
	// and forged tokens would allow arbitrary inventory mutation and reboots.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set VENDSYNC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Dispatch.Enabled {
		if c.Dispatch.OperationsPerSec <= 0 {
			errs = append(errs, "dispatch.operations_per_sec must be positive")
		}
		if c.Dispatch.Burst < 1 {
			errs = append(errs, "dispatch.burst must be at least 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *MQTTConfig) GetConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// GetKeepAlive returns the MQTT keepalive interval as a Duration.
func (c *MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// GetQoS returns the configured QoS level in wire form.
// Validate guarantees the range 0-2.
func (c *MQTTConfig) GetQoS() byte {
	return byte(c.QoS)
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
