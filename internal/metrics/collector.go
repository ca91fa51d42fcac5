package metrics

import "context"

// Collector is the interface that all metric collectors must implement.
// Each collector gathers one family of related system metrics.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Describe returns the descriptors of all metrics this collector
	// produces. The returned slice is stable for the process lifetime.
	Describe() []Descriptor

	// Collect gathers fresh samples for the described metrics.
	// The context allows for cancellation and timeout control.
	Collect(ctx context.Context) ([]Sample, error)

	// IsAvailable checks if this collector can run on the current platform.
	// Collectors that return false will not be registered.
	IsAvailable() bool
}
