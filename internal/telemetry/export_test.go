package telemetry

import (
	"context"
	"time"
)

// NewHostSourceWith builds a HostSource with a fake CPU reader.
func NewHostSourceWith(percent func(ctx context.Context, window time.Duration) (float64, error)) *HostSource {
	return &HostSource{percent: percent}
}
