package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Placeholders expanded in identity, topic and certificate settings.
const (
	placeholderRobotName = "{robot_name}"
	placeholderBasePath  = "{base_path}"
)

// Config is the root configuration structure for robotlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Robot     RobotConfig     `yaml:"robot"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Session   SessionConfig   `yaml:"session"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RobotConfig identifies the robot and the directory its credentials live in.
// Both values are substituted into other settings via {robot_name} and {base_path}.
type RobotConfig struct {
	Name     string `yaml:"name"`
	BasePath string `yaml:"base_path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Proxy     MQTTProxyConfig     `yaml:"proxy"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic, when set, receives retained online/offline presence
	// messages and is registered as the Last Will topic.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTTLSConfig holds the certificate material for mutual TLS.
type MQTTTLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// MQTTProxyConfig configures an HTTP CONNECT proxy between the robot and the
// broker. The proxy is used only when both Host and Port are set.
type MQTTProxyConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Enabled reports whether proxy tunnelling is configured.
func (p MQTTProxyConfig) Enabled() bool {
	return p.Host != "" && p.Port != 0
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SessionConfig describes one connect-subscribe-publish-unsubscribe-disconnect cycle.
type SessionConfig struct {
	// Topic is subscribed to and, when Message is set, published to.
	Topic string `yaml:"topic"`

	// Message is the outbound body. Empty skips publishing entirely.
	Message string `yaml:"message"`

	// PublishCount is the number of publish attempts. 0 publishes until shutdown.
	PublishCount int `yaml:"publish_count"`

	// ReceiveCount is the number of inbound messages to wait for.
	// 0 never completes early; the wait runs for the full timeout.
	ReceiveCount int `yaml:"receive_count"`

	// Timeout bounds every lifecycle wait (seconds).
	Timeout int `yaml:"timeout"`

	// PublishInterval is the pause between publish attempts (seconds).
	PublishInterval int `yaml:"publish_interval"`

	// EnqueueTimeout bounds handing one command to the action queue (seconds).
	EnqueueTimeout int `yaml:"enqueue_timeout"`
}

// DatabaseConfig contains SQLite settings for the action queue.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for session telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the live event feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
//  4. Placeholder expansion ({robot_name}, {base_path})
//
// Environment variables follow the pattern: ROBOTLINK_SECTION_KEY
// For example: ROBOTLINK_MQTT_HOST, ROBOTLINK_SESSION_TOPIC
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
	cfg.expandPlaceholders()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     8883,
				TLS:      true,
				ClientID: placeholderRobotName,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Session: SessionConfig{
			Message:         "Hello World",
			Timeout:         100,
			PublishInterval: 1,
			EnqueueTimeout:  5,
		},
		Database: DatabaseConfig{
			Path:        "./data/robotlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ROBOTLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Robot
	if v := os.Getenv("ROBOTLINK_ROBOT_NAME"); v != "" {
		cfg.Robot.Name = v
	}
	if v := os.Getenv("ROBOTLINK_BASE_PATH"); v != "" {
		cfg.Robot.BasePath = v
	}

	// MQTT
	if v := os.Getenv("ROBOTLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROBOTLINK_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("ROBOTLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROBOTLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Session
	if v := os.Getenv("ROBOTLINK_SESSION_TOPIC"); v != "" {
		cfg.Session.Topic = v
	}

	// Database
	if v := os.Getenv("ROBOTLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("ROBOTLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// expandPlaceholders substitutes {robot_name} and {base_path} in the settings
// that are derived from the robot identity.
func (c *Config) expandPlaceholders() {
	r := strings.NewReplacer(
		placeholderRobotName, c.Robot.Name,
		placeholderBasePath, c.Robot.BasePath,
	)

	c.MQTT.Broker.ClientID = r.Replace(c.MQTT.Broker.ClientID)
	c.MQTT.TLS.CertFile = r.Replace(c.MQTT.TLS.CertFile)
	c.MQTT.TLS.KeyFile = r.Replace(c.MQTT.TLS.KeyFile)
	c.MQTT.TLS.CAFile = r.Replace(c.MQTT.TLS.CAFile)
	c.MQTT.StatusTopic = r.Replace(c.MQTT.StatusTopic)
	c.Session.Topic = r.Replace(c.Session.Topic)
	c.Database.Path = r.Replace(c.Database.Path)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required (set robot.name when using {robot_name})")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		errs = append(errs, "mqtt.tls.cert_file and mqtt.tls.key_file must be set together")
	}
	if c.MQTT.Proxy.Port < 0 || c.MQTT.Proxy.Port > 65535 {
		errs = append(errs, "mqtt.proxy.port must be between 0 and 65535")
	}

	// Session validation
	if c.Session.Topic == "" {
		errs = append(errs, "session.topic is required")
	}
	if c.Session.PublishCount < 0 {
		errs = append(errs, "session.publish_count must not be negative")
	}
	if c.Session.ReceiveCount < 0 {
		errs = append(errs, "session.receive_count must not be negative")
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, "session.timeout must be positive")
	}
	if c.Session.PublishInterval <= 0 {
		errs = append(errs, "session.publish_interval must be positive")
	}
	if c.Session.EnqueueTimeout <= 0 {
		errs = append(errs, "session.enqueue_timeout must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation (only when enabled)
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSessionTimeout returns the lifecycle wait bound as a Duration.
func (c *Config) GetSessionTimeout() time.Duration {
	return time.Duration(c.Session.Timeout) * time.Second
}

// GetPublishInterval returns the pause between publish attempts as a Duration.
func (c *Config) GetPublishInterval() time.Duration {
	return time.Duration(c.Session.PublishInterval) * time.Second
}

// GetEnqueueTimeout returns the action queue bound as a Duration.
func (c *Config) GetEnqueueTimeout() time.Duration {
	return time.Duration(c.Session.EnqueueTimeout) * time.Second
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
