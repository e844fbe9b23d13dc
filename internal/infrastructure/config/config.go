package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the calibright daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Displays  DisplaysConfig  `yaml:"displays"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies this instance. The ID namespaces MQTT topics.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DisplaysConfig controls discovery and the per-display calibration file.
type DisplaysConfig struct {
	// ConfigFile is the hot-reloadable calibration file (.toml or .yaml).
	ConfigFile string `yaml:"config_file"`

	// DeviceRegex limits which display ids are managed. Default: "."
	DeviceRegex string `yaml:"device_regex"`

	// DiscoveryInterval is how often displays are rescanned for hot-plug.
	// Default: 2s
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`

	// Watch reloads ConfigFile when it changes on disk.
	Watch bool `yaml:"watch"`

	// Simulate adds this many in-memory monitors (sim0, sim1, ...).
	Simulate int `yaml:"simulate"`

	DDCCI     DDCCIConfig     `yaml:"ddcci"`
	Backlight BacklightConfig `yaml:"backlight"`
}

// DDCCIConfig contains settings for monitors on I2C buses.
type DDCCIConfig struct {
	Enabled bool `yaml:"enabled"`

	// Buses lists bus numbers to use. Empty scans every /dev/i2c-* node.
	Buses []string `yaml:"buses"`

	// ProbeRetry is how long a bus without a display is skipped.
	// Default: 30s
	ProbeRetry time.Duration `yaml:"probe_retry"`
}

// BacklightConfig contains settings for built-in panels.
type BacklightConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SysfsPath string `yaml:"sysfs_path"`
	UseLogind bool   `yaml:"use_logind"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for link telemetry.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CALIBRIGHT_SECTION_KEY
// For example: CALIBRIGHT_DATABASE_PATH, CALIBRIGHT_DISPLAYS_DEVICE_REGEX
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
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

// Default returns the built-in configuration, with environment overrides
// applied. Used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// DefaultDisplayConfigFile returns $XDG_CONFIG_HOME/calibright/config.toml,
// or ./config.toml when no user config directory is known.
func DefaultDisplayConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "calibright", "config.toml")
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "desktop",
			Name: "calibright",
		},
		Displays: DisplaysConfig{
			ConfigFile:        DefaultDisplayConfigFile(),
			DeviceRegex:       ".",
			DiscoveryInterval: 2 * time.Second,
			Watch:             true,
			DDCCI: DDCCIConfig{
				Enabled:    true,
				ProbeRetry: 30 * time.Second,
			},
			Backlight: BacklightConfig{
				Enabled:   true,
				SysfsPath: "/sys/class/backlight",
				UseLogind: true,
			},
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/calibright.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "calibright",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8470,
			Timeouts: APITimeoutConfig{
				Read:  10,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CALIBRIGHT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Displays
	if v := os.Getenv("CALIBRIGHT_DISPLAYS_CONFIG_FILE"); v != "" {
		cfg.Displays.ConfigFile = v
	}
	if v := os.Getenv("CALIBRIGHT_DISPLAYS_DEVICE_REGEX"); v != "" {
		cfg.Displays.DeviceRegex = v
	}
	if v := os.Getenv("CALIBRIGHT_DISPLAYS_SIMULATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Displays.Simulate = n
		}
	}

	// Database
	if v := os.Getenv("CALIBRIGHT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("CALIBRIGHT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CALIBRIGHT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CALIBRIGHT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CALIBRIGHT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("CALIBRIGHT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("CALIBRIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Displays
	if c.Displays.ConfigFile == "" {
		errs = append(errs, "displays.config_file is required")
	}
	if _, err := regexp.Compile(c.Displays.DeviceRegex); err != nil {
		errs = append(errs, fmt.Sprintf("displays.device_regex is invalid: %v", err))
	}
	const minDiscoveryInterval = 100 * time.Millisecond
	if c.Displays.DiscoveryInterval < minDiscoveryInterval {
		errs = append(errs, "displays.discovery_interval must be at least 100ms")
	}
	if c.Displays.Simulate < 0 {
		errs = append(errs, "displays.simulate cannot be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceFilter compiles the display id filter. Validate has already
// checked it compiles.
func (c *Config) DeviceFilter() *regexp.Regexp {
	return regexp.MustCompile(c.Displays.DeviceRegex)
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
