// Registry for metric collectors. Collectors are registered at startup;
// the scheduler queries the registry once for the catalog of descriptors
// and once per cycle for fresh samples.
package metrics

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Registry manages all registered collectors and orchestrates concurrent collection.
type Registry struct {
	collectors []Collector
	logger     *zap.Logger
}

// NewRegistry creates a new collector registry with the given logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
		logger:     logger,
	}
}

// Register adds a collector if it's available on the current platform.
// Unavailable collectors are logged and skipped.
func (r *Registry) Register(c Collector) {
	if c.IsAvailable() {
		r.collectors = append(r.collectors, c)
		r.logger.Info("Registered collector", zap.String("name", c.Name()))
	} else {
		r.logger.Warn("Collector not available, skipping", zap.String("name", c.Name()))
	}
}

// Descriptors returns the full metric catalog in registration order.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, c := range r.collectors {
		out = append(out, c.Describe()...)
	}
	return out
}

// CollectAll runs all registered collectors concurrently and returns the
// combined samples. Failed collectors are logged and skipped — one stalled
// or broken collector must not prevent the rest from publishing.
func (r *Registry) CollectAll(ctx context.Context) []Sample {
	var samples []Sample
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range r.collectors {
		wg.Add(1)
		go func(col Collector) {
			defer wg.Done()
			got, err := col.Collect(ctx)
			if err != nil {
				r.logger.Error("Collection failed",
					zap.String("collector", col.Name()),
					zap.Error(err))
				return
			}
			mu.Lock()
			samples = append(samples, got...)
			mu.Unlock()
		}(c)
	}

	wg.Wait()
	return samples
}

// Collectors returns a copy of all registered collectors.
func (r *Registry) Collectors() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}
