// Temperature collector — one metric per thermal sensor reported by the
// host. Sensors are enumerated once at startup so the catalog stays stable
// across the process lifetime; platforms without sensor support simply
// leave the collector unregistered.
package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
)

// maxValidTemp is the maximum temperature (°C) considered a real reading.
// Values above this are treated as sensor errors and skipped.
const maxValidTemp = 150.0

// TemperatureCollector collects readings from the thermal sensors that
// were present at startup.
type TemperatureCollector struct {
	keys        []string
	descriptors []Descriptor
}

// NewTemperatureCollector enumerates the host's thermal sensors and builds
// one descriptor per distinct sensor key.
func NewTemperatureCollector() *TemperatureCollector {
	c := &TemperatureCollector{}

	temps, err := host.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		return c
	}

	seen := make(map[string]bool)
	for _, t := range temps {
		key := Slug(t.SensorKey)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.keys = append(c.keys, t.SensorKey)
		c.descriptors = append(c.descriptors, Descriptor{
			Key:         key,
			Name:        fmt.Sprintf("Temperature %s", t.SensorKey),
			Unit:        "°C",
			DeviceClass: "temperature",
			Kind:        Gauge,
			Precision:   1,
		})
	}
	return c
}

// Name returns the collector identifier.
func (c *TemperatureCollector) Name() string { return "temperature" }

// Describe returns one descriptor per sensor found at startup.
func (c *TemperatureCollector) Describe() []Descriptor {
	return c.descriptors
}

// Collect reads the current value of every enumerated sensor. Sensors that
// disappeared or report implausible values are skipped for the cycle.
func (c *TemperatureCollector) Collect(ctx context.Context) ([]Sample, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, err
	}

	current := make(map[string]float64)
	for _, t := range temps {
		key := Slug(t.SensorKey)
		if _, ok := current[key]; !ok {
			current[key] = t.Temperature
		}
	}

	var samples []Sample
	for i, raw := range c.keys {
		v, ok := current[Slug(raw)]
		if !ok || v <= 0 || v > maxValidTemp {
			continue
		}
		samples = append(samples, Sample{Descriptor: c.descriptors[i], Value: v})
	}
	return samples, nil
}

// IsAvailable returns true when at least one sensor was found at startup.
func (c *TemperatureCollector) IsAvailable() bool { return len(c.descriptors) > 0 }
