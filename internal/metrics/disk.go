// Disk usage collector — used percentage per configured storage path.
// Uses gopsutil for cross-platform disk metrics.
package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
)

// DiskCollector collects disk usage for a fixed set of mount paths
// configured at startup.
type DiskCollector struct {
	paths       []string
	descriptors []Descriptor
	logger      *zap.Logger
}

// NewDiskCollector creates a disk collector for the given mount paths.
// Each path becomes its own metric keyed "{slug}_disk_usage", with "/"
// mapping to "root_disk_usage".
func NewDiskCollector(paths []string, logger *zap.Logger) *DiskCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &DiskCollector{paths: paths, logger: logger}
	for _, p := range paths {
		name := "root"
		if p != "/" {
			name = Slug(p)
		}
		c.descriptors = append(c.descriptors, Descriptor{
			Key:       fmt.Sprintf("%s_disk_usage", name),
			Name:      fmt.Sprintf("Disk usage %s", p),
			Unit:      "%",
			Icon:      "mdi:harddisk",
			Kind:      Gauge,
			Precision: 1,
		})
	}
	return c
}

// Name returns the collector identifier.
func (c *DiskCollector) Name() string { return "disk" }

// Describe returns one descriptor per configured path.
func (c *DiskCollector) Describe() []Descriptor {
	return c.descriptors
}

// Collect gathers the used percentage for every configured path.
// Paths that cannot be statted are logged and skipped for the cycle —
// one bad path must not drop the remaining paths' metrics.
func (c *DiskCollector) Collect(ctx context.Context) ([]Sample, error) {
	samples := make([]Sample, 0, len(c.paths))
	for i, p := range c.paths {
		usage, err := disk.UsageWithContext(ctx, p)
		if err != nil {
			c.logger.Error("Disk usage failed",
				zap.String("path", p),
				zap.Error(err))
			continue
		}
		samples = append(samples, Sample{
			Descriptor: c.descriptors[i],
			Value:      usage.UsedPercent,
		})
	}
	return samples, nil
}

// IsAvailable returns true when at least one path is configured.
func (c *DiskCollector) IsAvailable() bool { return len(c.paths) > 0 }
