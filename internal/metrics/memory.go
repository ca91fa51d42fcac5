// Virtual memory collector — used memory percentage.
// Uses gopsutil for cross-platform memory metrics.
package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

var memoryDescriptor = Descriptor{
	Key:       "virtual_memory",
	Name:      "Virtual memory",
	Unit:      "%",
	Icon:      "mdi:memory",
	Kind:      Gauge,
	Precision: 1,
}

// MemoryCollector collects virtual memory usage.
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Name returns the collector identifier.
func (c *MemoryCollector) Name() string { return "memory" }

// Describe returns the virtual memory descriptor.
func (c *MemoryCollector) Describe() []Descriptor {
	return []Descriptor{memoryDescriptor}
}

// Collect gathers the used virtual memory percentage.
func (c *MemoryCollector) Collect(ctx context.Context) ([]Sample, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return []Sample{{Descriptor: memoryDescriptor, Value: v.UsedPercent}}, nil
}

// IsAvailable returns true — memory metrics are available on all platforms.
func (c *MemoryCollector) IsAvailable() bool { return true }
