package device

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

// Entry versions.
const (
	// VersionLegacy entries may have no model.
	VersionLegacy = 1
	// VersionCurrent entries always carry a model.
	VersionCurrent = 2
)

// DefaultModel is assigned to legacy entries without a model.
const DefaultModel = "whisper_flex_2"

// Source records where an entry was created.
type Source string

// Entry sources.
const (
	SourceAPI    Source = "api"
	SourceCLI    Source = "cli"
	SourceConfig Source = "config"
)

// Config is the connection record for one device. It is immutable once a
// session has been created from it.
type Config struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// MQTTHost and MQTTPort override the global broker when set.
	MQTTHost string `json:"mqtt_host,omitempty"`
	MQTTPort int    `json:"mqtt_port,omitempty"`
}

// FromConfigFile converts a config file device entry.
func FromConfigFile(d config.DeviceConfig) Config {
	return Config{
		DeviceID: d.DeviceID,
		Name:     d.Name,
		Model:    d.Model,
		Username: d.Username,
		Password: d.Password,
		MQTTHost: d.MQTTHost,
		MQTTPort: d.MQTTPort,
	}
}

// Normalize returns c with the device id lowercased and surrounding
// whitespace removed from the id, name and model.
func (c Config) Normalize() Config {
	c.DeviceID = NormalizeID(c.DeviceID)
	c.Name = strings.TrimSpace(c.Name)
	c.Model = strings.TrimSpace(c.Model)
	c.MQTTHost = strings.TrimSpace(c.MQTTHost)
	return c
}

// NormalizeID lowercases a device id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Broker returns the broker settings for this device: base with the
// device's host, port and credentials applied where set.
func (c Config) Broker(base config.BrokerConfig) config.BrokerConfig {
	if c.MQTTHost != "" {
		base.Host = c.MQTTHost
	}
	if c.MQTTPort != 0 {
		base.Port = c.MQTTPort
	}
	if c.Username != "" {
		base.Username = c.Username
		base.Password = c.Password
	}
	return base
}

// Redacted returns c with the password masked.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "***"
	}
	return c
}

// Entry is a persisted device configuration.
type Entry struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Source    Source    `json:"source"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceID is shorthand for e.Config.DeviceID.
func (e Entry) DeviceID() string {
	return e.Config.DeviceID
}

// NewEntry wraps a normalised config in a current-version entry.
func NewEntry(c Config, source Source) *Entry {
	return &Entry{
		ID:      uuid.NewString(),
		Version: VersionCurrent,
		Source:  source,
		Config:  c.Normalize(),
	}
}
