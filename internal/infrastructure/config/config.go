package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vendor cloud proxy used by Duux devices when no broker override is set.
const (
	DefaultBrokerHost = "collector3.cloudgarden.nl"
	DefaultBrokerPort = 443
)

// Config is the root configuration structure for duuxlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Probe    ProbeConfig    `yaml:"probe"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// BrokerConfig contains the MQTT broker settings shared by every device
// session. Individual devices may override host, port and credentials.
type BrokerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	TLS                bool   `yaml:"tls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	KeepAlive          int    `yaml:"keep_alive"`
	ClientIDPrefix     string `yaml:"client_id_prefix"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
}

// String renders the broker settings without the password.
func (b BrokerConfig) String() string {
	pass := ""
	if b.Password != "" {
		pass = "***"
	}
	return fmt.Sprintf("broker{host=%s port=%d tls=%t user=%q pass=%q}",
		b.Host, b.Port, b.TLS, b.Username, pass)
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ProbeConfig controls the setup-time connection probes.
type ProbeConfig struct {
	// Timeout is how long the device probe waits for a first state
	// message, in seconds.
	Timeout int `yaml:"timeout"`
}

// DeviceConfig describes a statically configured device. Entries listed
// here are merged into the device store at startup.
type DeviceConfig struct {
	DeviceID string `yaml:"device_id"`
	Name     string `yaml:"name"`
	Model    string `yaml:"model"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	MQTTHost string `yaml:"mqtt_host"`
	MQTTPort int    `yaml:"mqtt_port"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DUUXLINK_SECTION_KEY
// For example: DUUXLINK_DATABASE_PATH, DUUXLINK_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Defaults()

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

// Defaults returns a Config populated with default values. It is used as
// the base for Load and directly by CLI commands that run without a file.
func Defaults() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:               DefaultBrokerHost,
			Port:               DefaultBrokerPort,
			TLS:                true,
			InsecureSkipVerify: true,
			KeepAlive:          60,
			ClientIDPrefix:     "duuxlink",
		},
		Database: DatabaseConfig{
			Path:        "./data/duuxlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8321,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Probe: ProbeConfig{
			Timeout: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DUUXLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("DUUXLINK_MQTT_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("DUUXLINK_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}
	if v := os.Getenv("DUUXLINK_MQTT_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("DUUXLINK_MQTT_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}

	if v := os.Getenv("DUUXLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("DUUXLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("DUUXLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Device entries are only checked for presence of an id and model here;
// model existence is checked against the profile registry at setup.
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.KeepAlive < 0 {
		errs = append(errs, "broker.keep_alive cannot be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Probe.Timeout < 1 {
		errs = append(errs, "probe.timeout must be at least 1 second")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		id := strings.ToLower(strings.TrimSpace(d.DeviceID))
		if id == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id is required", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id %q is duplicated", i, d.DeviceID))
		}
		seen[id] = true
		if d.Model == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].model is required", i))
		}
		if d.MQTTPort < 0 || d.MQTTPort > 65535 {
			errs = append(errs, fmt.Sprintf("devices[%d].mqtt_port must be between 0 and 65535", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetProbeTimeout returns the device probe timeout as a Duration.
func (c *Config) GetProbeTimeout() time.Duration {
	return time.Duration(c.Probe.Timeout) * time.Second
}
