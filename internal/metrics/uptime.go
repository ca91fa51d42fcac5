// Uptime collector — reports the boot time as an RFC3339 timestamp.
// Home Assistant renders timestamp-class sensors as "time since", which
// keeps the published value constant between reboots and avoids a state
// change on every cycle.
package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

var uptimeDescriptor = Descriptor{
	Key:         "uptime",
	Name:        "Uptime",
	DeviceClass: "timestamp",
	Kind:        Text,
}

// UptimeCollector collects the system boot time.
type UptimeCollector struct{}

// NewUptimeCollector creates a new uptime collector.
func NewUptimeCollector() *UptimeCollector {
	return &UptimeCollector{}
}

// Name returns the collector identifier.
func (c *UptimeCollector) Name() string { return "uptime" }

// Describe returns the uptime descriptor.
func (c *UptimeCollector) Describe() []Descriptor {
	return []Descriptor{uptimeDescriptor}
}

// Collect gathers the boot time formatted as a local RFC3339 timestamp.
func (c *UptimeCollector) Collect(ctx context.Context) ([]Sample, error) {
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	ts := time.Unix(int64(boot), 0).Format(time.RFC3339)
	return []Sample{{Descriptor: uptimeDescriptor, Text: ts}}, nil
}

// IsAvailable returns true — boot time is available on all platforms.
func (c *UptimeCollector) IsAvailable() bool { return true }
