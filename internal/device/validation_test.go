package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

func TestConfig_Normalize(t *testing.T) {
	c := Config{DeviceID: "  AA:BB:CC:dd  ", Name: " Bedroom ", Model: "whisper_flex_2 "}.Normalize()

	if c.DeviceID != "aa:bb:cc:dd" {
		t.Errorf("DeviceID = %q, want lowercase", c.DeviceID)
	}
	if c.Name != "Bedroom" || c.Model != "whisper_flex_2" {
		t.Errorf("Name = %q, Model = %q", c.Name, c.Model)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := Config{DeviceID: "aa:bb:cc", Name: "Bedroom", Model: "whisper_flex_2"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "valid with broker override", mutate: func(c *Config) {
			c.MQTTHost, c.MQTTPort, c.Username, c.Password = "broker.local", 8883, "u", "p"
		}},
		{name: "missing id", mutate: func(c *Config) { c.DeviceID = "" }, wantErr: "device_id is required"},
		{name: "id with slash", mutate: func(c *Config) { c.DeviceID = "aa/bb" }, wantErr: "contains one of"},
		{name: "id with wildcard", mutate: func(c *Config) { c.DeviceID = "aa+" }, wantErr: "contains one of"},
		{name: "id with space", mutate: func(c *Config) { c.DeviceID = "aa bb" }, wantErr: "whitespace"},
		{name: "id too long", mutate: func(c *Config) { c.DeviceID = strings.Repeat("a", 65) }, wantErr: "exceeds"},
		{name: "missing name", mutate: func(c *Config) { c.Name = "" }, wantErr: "name is required"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model is required"},
		{name: "bad port", mutate: func(c *Config) { c.MQTTPort = 70000 }, wantErr: "mqtt_port"},
		{name: "password without user", mutate: func(c *Config) { c.Password = "secret" }, wantErr: "without username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := ValidateConfig(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateConfig() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("ValidateConfig() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Broker(t *testing.T) {
	base := config.BrokerConfig{Host: config.DefaultBrokerHost, Port: config.DefaultBrokerPort, TLS: true, KeepAlive: 60}

	got := Config{DeviceID: "aa"}.Broker(base)
	if got != base {
		t.Errorf("Broker() without overrides = %+v, want base", got)
	}

	got = Config{DeviceID: "aa", MQTTHost: "local", MQTTPort: 8883, Username: "u", Password: "p"}.Broker(base)
	if got.Host != "local" || got.Port != 8883 || got.Username != "u" || got.Password != "p" {
		t.Errorf("Broker() = %+v", got)
	}
	if !got.TLS || got.KeepAlive != 60 {
		t.Error("Broker() dropped base settings")
	}
}

func TestConfig_Redacted(t *testing.T) {
	c := Config{Username: "u", Password: "hunter2"}.Redacted()
	if c.Password != "***" {
		t.Errorf("Password = %q", c.Password)
	}
	if (Config{}).Redacted().Password != "" {
		t.Error("empty password should stay empty")
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(Config{DeviceID: "AA:BB", Name: "x", Model: "m"}, SourceConfig)
	if e.ID == "" || e.Version != VersionCurrent || e.Source != SourceConfig {
		t.Errorf("NewEntry() = %+v", e)
	}
	if e.DeviceID() != "aa:bb" {
		t.Errorf("DeviceID() = %q, want normalised", e.DeviceID())
	}
}
