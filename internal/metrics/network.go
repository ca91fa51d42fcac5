// Network I/O collector — cumulative RX/TX counters plus upload/download
// rates derived from successive readings. Uses gopsutil for cross-platform
// network metrics.
package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/net"
)

var (
	bytesSentDescriptor = Descriptor{
		Key:       "bytes_sent",
		Name:      "Bytes sent",
		Unit:      "MiB",
		Icon:      "mdi:upload-network",
		Kind:      Gauge,
		Precision: 0,
	}
	bytesRecvDescriptor = Descriptor{
		Key:       "bytes_recv",
		Name:      "Bytes received",
		Unit:      "MiB",
		Icon:      "mdi:download-network",
		Kind:      Gauge,
		Precision: 0,
	}
	uploadDescriptor = Descriptor{
		Key:       "upload",
		Name:      "Upload rate",
		Unit:      "kbps",
		Icon:      "mdi:upload-network",
		Kind:      Gauge,
		Precision: 1,
	}
	downloadDescriptor = Descriptor{
		Key:       "download",
		Name:      "Download rate",
		Unit:      "kbps",
		Icon:      "mdi:download-network",
		Kind:      Gauge,
		Precision: 1,
	}
)

// NetworkCollector collects network I/O counters and rates. It tracks the
// previous reading to compute upload/download rates between collections.
type NetworkCollector struct {
	lastSent uint64
	lastRecv uint64
	lastTime time.Time
}

// NewNetworkCollector creates a new network collector.
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{}
}

// Name returns the collector identifier.
func (c *NetworkCollector) Name() string { return "network" }

// Describe returns the counter and rate descriptors.
func (c *NetworkCollector) Describe() []Descriptor {
	return []Descriptor{
		bytesSentDescriptor,
		bytesRecvDescriptor,
		uploadDescriptor,
		downloadDescriptor,
	}
}

// Collect gathers cumulative RX/TX counters (in MiB) and the upload/download
// rates (in kbps) since the previous collection. The first collection reports
// zero rates while establishing a baseline.
func (c *NetworkCollector) Collect(ctx context.Context) ([]Sample, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, nil
	}

	now := time.Now()
	sent := counters[0].BytesSent
	recv := counters[0].BytesRecv

	// Counters can reset (interface re-created, counter wrap); a reading
	// below the previous one re-establishes the baseline with zero rates
	// instead of underflowing into an absurd spike.
	var upload, download float64
	if !c.lastTime.IsZero() {
		elapsed := now.Sub(c.lastTime).Seconds()
		if elapsed > 0 {
			if sent >= c.lastSent {
				upload = float64(sent-c.lastSent) / 1000 / elapsed
			}
			if recv >= c.lastRecv {
				download = float64(recv-c.lastRecv) / 1000 / elapsed
			}
		}
	}

	c.lastSent = sent
	c.lastRecv = recv
	c.lastTime = now

	return []Sample{
		{Descriptor: bytesSentDescriptor, Value: float64(sent) / 1000000},
		{Descriptor: bytesRecvDescriptor, Value: float64(recv) / 1000000},
		{Descriptor: uploadDescriptor, Value: upload},
		{Descriptor: downloadDescriptor, Value: download},
	}, nil
}

// IsAvailable returns true — network metrics are available on all platforms.
func (c *NetworkCollector) IsAvailable() bool { return true }
