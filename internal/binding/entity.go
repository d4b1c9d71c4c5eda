package binding

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Platform is the kind of entity.
type Platform string

// Entity platforms.
const (
	PlatformFan          Platform = "fan"
	PlatformSwitch       Platform = "switch"
	PlatformSensor       Platform = "sensor"
	PlatformNumber       Platform = "number"
	PlatformSelect       Platform = "select"
	PlatformBinarySensor Platform = "binary_sensor"
)

// Manufacturer is reported in every DeviceInfo built by this package.
const Manufacturer = "Duux"

// UniqueIDPrefix starts every entity unique id.
const UniqueIDPrefix = "duux_fan_local"

// fanKey is the entry key used for the fan entity.
const fanKey = "fan"

// Commander sends a command string to a device.
//
// session.Session implements it. Publish returns an error only when the
// command itself is malformed; delivery is never confirmed.
type Commander interface {
	Publish(command string) error
}

// DeviceInfo groups the entities of one physical device.
type DeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	// MAC is the device id, which Duux devices derive from their MAC.
	MAC string `json:"mac"`
}

// NewDeviceInfo builds the device info for a configured device.
func NewDeviceInfo(deviceID, name, modelName string) DeviceInfo {
	return DeviceInfo{
		ID:           deviceID,
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        modelName,
		MAC:          deviceID,
	}
}

// Meta describes an entity independently of its state.
type Meta struct {
	// Key is the profile entry key, or "fan" for the fan entity.
	Key            string     `json:"key"`
	Platform       Platform   `json:"platform"`
	UniqueID       string     `json:"unique_id"`
	EntityID       string     `json:"entity_id"`
	Name           string     `json:"name"`
	StateKey       string     `json:"state_key,omitempty"`
	Icon           string     `json:"icon,omitempty"`
	DeviceClass    string     `json:"device_class,omitempty"`
	StateClass     string     `json:"state_class,omitempty"`
	EntityCategory string     `json:"entity_category,omitempty"`
	Unit           string     `json:"unit,omitempty"`
	Device         DeviceInfo `json:"device"`
}

// Entity is one live binding.
type Entity interface {
	dispatch.Listener

	// Meta returns the entity's static description.
	Meta() Meta

	// State returns the currently exposed state as JSON-friendly values.
	State() map[string]any
}

// Build creates the entities described by p for one device.
//
// Entities come out in a fixed order: fan first, then switches, sensors,
// numbers, selects and binary sensors, each group in profile order.
func Build(p *profile.Profile, dev DeviceInfo, cmd Commander) []Entity {
	var entities []Entity

	if p.Fan != nil {
		entities = append(entities, NewFan(*p.Fan, dev, cmd))
	}
	for _, s := range p.Switches {
		entities = append(entities, NewSwitch(s, dev, cmd))
	}
	for _, s := range p.Sensors {
		entities = append(entities, NewSensor(s, dev))
	}
	for _, n := range p.Numbers {
		entities = append(entities, NewNumber(n, dev, cmd))
	}
	for _, s := range p.Selects {
		entities = append(entities, NewSelect(s, dev, cmd))
	}
	for _, b := range p.BinarySensors {
		entities = append(entities, NewBinarySensor(b, dev))
	}

	return entities
}

// Find returns the entity with the given key.
func Find(entities []Entity, key string) (Entity, error) {
	for _, e := range entities {
		if e.Meta().Key == key {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, key)
}

// UniqueID returns the stable id of an entity entry on a device.
func UniqueID(deviceID, key string) string {
	return fmt.Sprintf("%s_%s_%s", UniqueIDPrefix, deviceID, key)
}

// EntityID returns "<platform>.<slug>" where slug is name transliterated
// to lowercase ASCII with runs of other characters collapsed to "_".
func EntityID(platform Platform, name string) string {
	return string(platform) + "." + strings.ReplaceAll(slug.Make(name), "-", "_")
}

// newMeta fills the fields shared by entry-backed entities.
func newMeta(platform Platform, key, entryName string, dev DeviceInfo) Meta {
	name := dev.Name + " " + entryName
	return Meta{
		Key:      key,
		Platform: platform,
		UniqueID: UniqueID(dev.ID, key),
		EntityID: EntityID(platform, name),
		Name:     name,
		Device:   dev,
	}
}
