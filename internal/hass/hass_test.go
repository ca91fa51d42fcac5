package hass

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ps2mqtt/agent/internal/metrics"
)

var testHost = HostInfo{
	Hostname: "testbox",
	Platform: "ubuntu 24.04",
	OS:       "linux",
}

func cpuDescriptor() metrics.Descriptor {
	return metrics.Descriptor{
		Key:       "cpu_percent",
		Name:      "CPU usage",
		Unit:      "%",
		Icon:      "mdi:chip",
		Kind:      metrics.Gauge,
		Precision: 1,
	}
}

func TestDiscoveryTopic(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt", "1.0.0", testHost)

	got := e.DiscoveryTopic(cpuDescriptor())
	want := "homeassistant/sensor/ps2mqtt/cpu_percent/config"
	if got != want {
		t.Errorf("DiscoveryTopic() = %q, want %q", got, want)
	}
}

func TestDiscoveryTopic_MultiSegmentBaseTopic(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt/testbox", "1.0.0", testHost)

	got := e.DiscoveryTopic(cpuDescriptor())
	if strings.Count(got, "/") != 4 {
		t.Errorf("DiscoveryTopic() = %q, node segment must stay single-level", got)
	}
	if !strings.HasPrefix(got, "homeassistant/sensor/ps2mqtt-testbox/") {
		t.Errorf("DiscoveryTopic() = %q, want slugged node id", got)
	}
}

func TestDiscoveryPayload_Idempotent(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt", "1.0.0", testHost)
	d := cpuDescriptor()

	first, err := e.DiscoveryPayload(d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.DiscoveryPayload(d)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated DiscoveryPayload calls produced different bytes")
	}
}

func TestDiscoveryPayload_Fields(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt", "1.2.3", testHost)

	payload, err := e.DiscoveryPayload(cpuDescriptor())
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded["name"] != "CPU usage" {
		t.Errorf("name = %v", decoded["name"])
	}
	if decoded["state_topic"] != "ps2mqtt/cpu_percent" {
		t.Errorf("state_topic = %v", decoded["state_topic"])
	}
	if decoded["availability_topic"] != "ps2mqtt/status" {
		t.Errorf("availability_topic = %v", decoded["availability_topic"])
	}
	if decoded["unique_id"] != "testbox-cpu-percent" {
		t.Errorf("unique_id = %v", decoded["unique_id"])
	}
	if decoded["payload_available"] != "online" || decoded["payload_not_available"] != "offline" {
		t.Errorf("availability payloads = %v / %v",
			decoded["payload_available"], decoded["payload_not_available"])
	}
	if decoded["unit_of_measurement"] != "%" {
		t.Errorf("unit_of_measurement = %v", decoded["unit_of_measurement"])
	}
	if _, present := decoded["device_class"]; present {
		t.Error("device_class should be omitted when not applicable")
	}

	device, ok := decoded["device"].(map[string]interface{})
	if !ok {
		t.Fatal("device object missing")
	}
	if device["identifiers"] != "testbox_ps2mqtt" {
		t.Errorf("device identifiers = %v", device["identifiers"])
	}
	if device["name"] != "testbox" {
		t.Errorf("device name = %v", device["name"])
	}
	if device["manufacturer"] != "ps2mqtt 1.2.3" {
		t.Errorf("device manufacturer = %v", device["manufacturer"])
	}
	if device["sw_version"] != "ubuntu 24.04" {
		t.Errorf("device sw_version = %v", device["sw_version"])
	}
	if device["model"] != "linux" {
		t.Errorf("device model = %v", device["model"])
	}
}

func TestDiscoveryPayload_OptionalDeviceClass(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt", "1.0.0", testHost)
	d := metrics.Descriptor{
		Key:         "uptime",
		Name:        "Uptime",
		DeviceClass: "timestamp",
		Kind:        metrics.Text,
	}

	payload, err := e.DiscoveryPayload(d)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["device_class"] != "timestamp" {
		t.Errorf("device_class = %v, want timestamp", decoded["device_class"])
	}
	if _, present := decoded["unit_of_measurement"]; present {
		t.Error("unit_of_measurement should be omitted when empty")
	}
	if _, present := decoded["icon"]; present {
		t.Error("icon should be omitted when empty")
	}
}

func TestStateAndStatusTopics(t *testing.T) {
	e := NewEncoder("homeassistant", "ps2mqtt", "1.0.0", testHost)

	if got := e.StateTopic(cpuDescriptor()); got != "ps2mqtt/cpu_percent" {
		t.Errorf("StateTopic() = %q", got)
	}
	if got := e.StatusTopic(); got != "ps2mqtt/status" {
		t.Errorf("StatusTopic() = %q", got)
	}
}
