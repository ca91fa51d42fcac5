// Package hass builds Home Assistant MQTT discovery topics and payloads.
// Encoding is a pure function of the metric descriptor and the startup
// configuration: repeated calls produce byte-identical output, so discovery
// can be re-published on every reconnect without creating duplicate
// entities in the hub.
//
// See https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery.
package hass

import (
	"encoding/json"

	"github.com/ps2mqtt/agent/internal/metrics"
)

// Availability payloads used on the status topic and referenced from every
// discovery payload.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Device is the device object embedded in every discovery payload. The hub
// uses identical device objects to group all sensors under one logical device.
type Device struct {
	Identifiers  string `json:"identifiers"`
	Name         string `json:"name"`
	SWVersion    string `json:"sw_version"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
}

// SensorConfig is the JSON discovery payload for one sensor entity.
type SensorConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id"`
	StateTopic          string `json:"state_topic"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	DeviceClass         string `json:"device_class,omitempty"`
	Icon                string `json:"icon,omitempty"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	Device              Device `json:"device"`
}

// HostInfo identifies the publishing host in discovery payloads.
type HostInfo struct {
	// Hostname is the node name, e.g. "living-room-pi".
	Hostname string
	// Platform is the full platform string used as the device sw_version.
	Platform string
	// OS is the operating system name used as the device model.
	OS string
}

// Encoder derives discovery and state topics for metric descriptors.
// All fields are fixed at construction.
type Encoder struct {
	discoverPrefix string
	baseTopic      string
	node           string
	hostSlug       string
	device         Device
}

// NewEncoder creates an Encoder for the given discovery prefix, base topic,
// agent version, and host identity. The discovery node id is the slug of the
// base topic, which keeps multi-segment base topics valid in the
// single-segment node position of the discovery topic.
func NewEncoder(discoverPrefix, baseTopic, version string, info HostInfo) *Encoder {
	hostSlug := metrics.Slug(info.Hostname)
	return &Encoder{
		discoverPrefix: discoverPrefix,
		baseTopic:      baseTopic,
		node:           metrics.Slug(baseTopic),
		hostSlug:       hostSlug,
		device: Device{
			Identifiers:  hostSlug + "_ps2mqtt",
			Name:         info.Hostname,
			SWVersion:    info.Platform,
			Model:        info.OS,
			Manufacturer: "ps2mqtt " + version,
		},
	}
}

// DiscoveryTopic returns the config topic for a descriptor:
// {discover_prefix}/sensor/{node}/{key}/config.
func (e *Encoder) DiscoveryTopic(d metrics.Descriptor) string {
	return e.discoverPrefix + "/sensor/" + e.node + "/" + d.Key + "/config"
}

// DiscoveryPayload returns the JSON discovery payload for a descriptor.
// Field order and content depend only on the descriptor and the encoder's
// immutable state, so the output is stable across calls.
func (e *Encoder) DiscoveryPayload(d metrics.Descriptor) ([]byte, error) {
	return json.Marshal(SensorConfig{
		Name:                d.Name,
		UniqueID:            metrics.Slug(e.hostSlug + " " + d.Key),
		ObjectID:            metrics.Slug(e.hostSlug + " " + d.Key),
		StateTopic:          e.StateTopic(d),
		AvailabilityTopic:   e.StatusTopic(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		DeviceClass:         d.DeviceClass,
		Icon:                d.Icon,
		UnitOfMeasurement:   d.Unit,
		Device:              e.device,
	})
}

// StateTopic returns the topic carrying a descriptor's current value:
// {base_topic}/{key}.
func (e *Encoder) StateTopic(d metrics.Descriptor) string {
	return e.baseTopic + "/" + d.Key
}

// StatusTopic returns the retained online/offline status topic:
// {base_topic}/status.
func (e *Encoder) StatusTopic() string {
	return e.baseTopic + "/status"
}
