// Package metrics defines the metric catalog and the Collector interface.
// Each collector describes the metrics it produces (key, unit, device class)
// and returns fresh samples for them on every collection cycle.
package metrics

import (
	"strconv"
	"strings"
)

// ValueKind distinguishes numeric gauges from textual values.
type ValueKind int

const (
	// Gauge is a numeric value formatted with the descriptor's precision.
	Gauge ValueKind = iota
	// Text is a textual value published verbatim (e.g. an RFC3339 timestamp).
	Text
)

// Descriptor identifies one measurable quantity. Descriptors are built once
// at startup and never change for the lifetime of the process — discovery
// payloads derived from them must be stable across reconnects.
type Descriptor struct {
	// Key is the stable identifier used in MQTT topics, e.g. "cpu_percent".
	Key string

	// Name is the human-readable label shown by the hub.
	Name string

	// Unit is the unit_of_measurement string, empty if not applicable.
	Unit string

	// DeviceClass is the Home Assistant device class, empty if not applicable.
	DeviceClass string

	// Icon is the mdi icon identifier, empty if not applicable.
	Icon string

	// Kind declares whether samples carry a numeric or textual value.
	Kind ValueKind

	// Precision is the number of decimal places used to format gauge values.
	Precision int
}

// Sample is a single reading for one descriptor at one instant.
// Samples are created fresh every cycle and discarded after publishing.
type Sample struct {
	Descriptor Descriptor
	Value      float64
	Text       string
}

// Payload formats the sample value for publishing. Gauges use the
// descriptor's display precision so downstream graphing is stable;
// text values pass through unchanged.
func (s Sample) Payload() string {
	if s.Descriptor.Kind == Text {
		return s.Text
	}
	return strconv.FormatFloat(s.Value, 'f', s.Descriptor.Precision, 64)
}

// Slug normalizes s into a topic-safe identifier: lowercased, with runs of
// characters outside [a-z0-9] collapsed into single dashes.
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}
