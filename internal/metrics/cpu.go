// CPU usage collector — overall CPU utilization percentage.
// Uses gopsutil for cross-platform CPU metrics.
package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
)

var cpuDescriptor = Descriptor{
	Key:       "cpu_percent",
	Name:      "CPU usage",
	Unit:      "%",
	Icon:      "mdi:chip",
	Kind:      Gauge,
	Precision: 1,
}

// CPUCollector collects overall CPU usage.
type CPUCollector struct{}

// NewCPUCollector creates a new CPU collector.
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{}
}

// Name returns the collector identifier.
func (c *CPUCollector) Name() string { return "cpu" }

// Describe returns the CPU usage descriptor.
func (c *CPUCollector) Describe() []Descriptor {
	return []Descriptor{cpuDescriptor}
}

// Collect gathers the overall CPU usage percentage. The measurement is
// non-blocking: it reports utilization since the previous collection,
// so the first cycle reflects usage since boot.
func (c *CPUCollector) Collect(ctx context.Context) ([]Sample, error) {
	overall, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}

	var pct float64
	if len(overall) > 0 {
		pct = overall[0]
	}

	return []Sample{{Descriptor: cpuDescriptor, Value: pct}}, nil
}

// IsAvailable returns true — CPU metrics are available on all platforms.
func (c *CPUCollector) IsAvailable() bool { return true }
