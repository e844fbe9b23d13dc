package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "office"
displays:
  config_file: "/etc/calibright/displays.toml"
  device_regex: "^ddcci"
  discovery_interval: 5s
  simulate: 2
  ddcci:
    enabled: true
    buses: ["4", "5"]
  backlight:
    enabled: false
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.lan"
    port: 1883
  qos: 1
api:
  host: "0.0.0.0"
  port: 9090
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "office" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "office")
	}
	if cfg.Displays.ConfigFile != "/etc/calibright/displays.toml" {
		t.Errorf("Displays.ConfigFile = %q", cfg.Displays.ConfigFile)
	}
	if cfg.Displays.DiscoveryInterval != 5*time.Second {
		t.Errorf("Displays.DiscoveryInterval = %v, want 5s", cfg.Displays.DiscoveryInterval)
	}
	if cfg.Displays.Simulate != 2 {
		t.Errorf("Displays.Simulate = %d, want 2", cfg.Displays.Simulate)
	}
	if len(cfg.Displays.DDCCI.Buses) != 2 || cfg.Displays.DDCCI.Buses[1] != "5" {
		t.Errorf("Displays.DDCCI.Buses = %v", cfg.Displays.DDCCI.Buses)
	}
	if cfg.Displays.Backlight.Enabled {
		t.Error("Displays.Backlight.Enabled = true, want false")
	}
	// Unset keys keep their defaults.
	if cfg.Displays.DDCCI.ProbeRetry != 30*time.Second {
		t.Errorf("Displays.DDCCI.ProbeRetry = %v, want default 30s", cfg.Displays.DDCCI.ProbeRetry)
	}
	if !cfg.DeviceFilter().MatchString("ddcci4") || cfg.DeviceFilter().MatchString("intel_backlight") {
		t.Error("DeviceFilter() does not honour displays.device_regex")
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.lan")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("site: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
displays:
  device_regex: "(unclosed"
  discovery_interval: 1ms
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported, not just the first.
	for _, want := range []string{"device_regex", "discovery_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing config file", mutate: func(c *Config) { c.Displays.ConfigFile = "" }, wantErr: true},
		{name: "bad device regex", mutate: func(c *Config) { c.Displays.DeviceRegex = "[" }, wantErr: true},
		{name: "discovery too fast", mutate: func(c *Config) { c.Displays.DiscoveryInterval = time.Millisecond }, wantErr: true},
		{name: "negative simulate", mutate: func(c *Config) { c.Displays.Simulate = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{
			name: "database disabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
		},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: true,
		},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{
			name: "api disabled ignores port",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CALIBRIGHT_DISPLAYS_CONFIG_FILE", "/custom/displays.yaml")
	t.Setenv("CALIBRIGHT_DISPLAYS_DEVICE_REGEX", "backlight")
	t.Setenv("CALIBRIGHT_DISPLAYS_SIMULATE", "3")
	t.Setenv("CALIBRIGHT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("CALIBRIGHT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CALIBRIGHT_MQTT_USERNAME", "testuser")
	t.Setenv("CALIBRIGHT_MQTT_PASSWORD", "testpass")
	t.Setenv("CALIBRIGHT_API_HOST", "192.168.1.1")
	t.Setenv("CALIBRIGHT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CALIBRIGHT_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"Displays.ConfigFile", cfg.Displays.ConfigFile, "/custom/displays.yaml"},
		{"Displays.DeviceRegex", cfg.Displays.DeviceRegex, "backlight"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.Displays.Simulate != 3 {
		t.Errorf("Displays.Simulate = %d, want 3", cfg.Displays.Simulate)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Displays.DeviceRegex != "." {
		t.Errorf("defaultConfig Displays.DeviceRegex = %q, want %q", cfg.Displays.DeviceRegex, ".")
	}
	if cfg.Displays.DiscoveryInterval != 2*time.Second {
		t.Errorf("defaultConfig Displays.DiscoveryInterval = %v, want 2s", cfg.Displays.DiscoveryInterval)
	}
	if filepath.Base(cfg.Displays.ConfigFile) != "config.toml" {
		t.Errorf("defaultConfig Displays.ConfigFile = %q, want a config.toml", cfg.Displays.ConfigFile)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("defaultConfig API.Host = %q, want loopback", cfg.API.Host)
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should not require an MQTT broker")
	}
}
