// Package telemetry refreshes platform telemetry on a fixed interval. A
// Poller reads every platform of the registry snapshot through one or more
// Sources and applies their adjustments with Registry.UpdateTelemetryFunc,
// against the telemetry current at that moment.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 3 * time.Second

// Adjustment derives a telemetry update from a platform's telemetry as it
// stands when the update is applied.
type Adjustment func(current model.Telemetry) platform.TelemetryUpdate

// Set returns an Adjustment that writes the absolute values of u.
func Set(u platform.TelemetryUpdate) Adjustment {
	return func(model.Telemetry) platform.TelemetryUpdate { return u }
}

// Source reads telemetry for one platform. Sampling may block; the returned
// Adjustment is applied later under the registry lock and must not. A nil
// Adjustment leaves the platform unchanged.
type Source interface {
	Sample(ctx context.Context, p model.ExecutionPlatform) (Adjustment, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, p model.ExecutionPlatform) (Adjustment, error)

// Sample calls f.
func (f SourceFunc) Sample(ctx context.Context, p model.ExecutionPlatform) (Adjustment, error) {
	return f(ctx, p)
}

// Poller periodically refreshes platform telemetry.
type Poller struct {
	registry *platform.Registry
	sources  []Source
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller. Sources are applied in order; a later source
// overrides fields set by an earlier one.
func NewPoller(reg *platform.Registry, interval time.Duration, logger *slog.Logger, sources ...Source) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		registry: reg,
		sources:  sources,
		interval: interval,
		logger:   logger,
	}
}

// Run refreshes telemetry every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("telemetry poller started", "interval", p.interval.String(), "sources", len(p.sources))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telemetry poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one refresh pass over the current snapshot and returns the
// number of platforms updated.
func (p *Poller) Poll(ctx context.Context) int {
	updated := 0
	for _, plat := range p.registry.Snapshot() {
		var adjs []Adjustment
		for _, src := range p.sources {
			a, err := src.Sample(ctx, plat)
			if err != nil {
				p.logger.Warn("telemetry sample failed", "platform_id", plat.ID, "error", err)
				continue
			}
			if a != nil {
				adjs = append(adjs, a)
			}
		}
		if len(adjs) == 0 {
			continue
		}
		if _, err := p.registry.UpdateTelemetryFunc(plat.ID, chain(adjs)); err != nil {
			p.logger.Warn("telemetry update failed", "platform_id", plat.ID, "error", err)
			continue
		}
		updated++
	}
	return updated
}

// chain applies adjs in order, each seeing the result of the previous ones,
// and merges their updates. Later fields override earlier ones.
func chain(adjs []Adjustment) func(model.Telemetry) platform.TelemetryUpdate {
	return func(cur model.Telemetry) platform.TelemetryUpdate {
		var merged platform.TelemetryUpdate
		for _, a := range adjs {
			u := a(cur)
			merged = merge(merged, u)
			cur = u.Apply(cur)
		}
		return merged
	}
}

func merge(base, over platform.TelemetryUpdate) platform.TelemetryUpdate {
	if over.Status != nil {
		base.Status = over.Status
	}
	if over.CurrentLoad != nil {
		base.CurrentLoad = over.CurrentLoad
	}
	if over.QueueLength != nil {
		base.QueueLength = over.QueueLength
	}
	if over.AvgResponseTime != nil {
		base.AvgResponseTime = over.AvgResponseTime
	}
	if over.SuccessRate != nil {
		base.SuccessRate = over.SuccessRate
	}
	return base
}
