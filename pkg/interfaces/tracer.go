package interfaces

import (
	"context"
	"time"
)

// Generation is a single input/output pair produced by an agent
type Generation struct {
	Name      string
	Model     string
	Input     interface{}
	Output    interface{}
	Metadata  map[string]interface{}
	StartTime time.Time
	EndTime   time.Time
}

// ObservabilityProvider forwards generations to a tracing backend
type ObservabilityProvider interface {
	// LogGeneration records one generation. Implementations without
	// credentials treat this as a no-op.
	LogGeneration(ctx context.Context, generation Generation) error

	// Flush sends anything still buffered
	Flush() error
}
