package telemetry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

// Drift bounds applied by JitterSource on each sample.
const (
	loadDrift     = 5.0
	queueDrift    = 1
	responseDrift = 0.15
	successDrift  = 1.0
)

// JitterSource nudges each telemetry value by a small random amount around
// the reading current when the adjustment is applied. Results are clamped by
// the registry.
type JitterSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitterSource creates a jitter source. A zero seed uses the clock.
func NewJitterSource(seed uint64) *JitterSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &JitterSource{rng: rand.New(rand.NewPCG(seed, seed>>1))}
}

// Sample implements Source. The drift is drawn now and added to whatever
// values the platform holds at apply time.
func (j *JitterSource) Sample(context.Context, model.ExecutionPlatform) (Adjustment, error) {
	j.mu.Lock()
	dLoad := j.spread(loadDrift)
	dQueue := j.rng.IntN(2*queueDrift+1) - queueDrift
	dResp := j.spread(responseDrift)
	dSuccess := j.spread(successDrift)
	j.mu.Unlock()

	return func(t model.Telemetry) platform.TelemetryUpdate {
		load := t.CurrentLoad + dLoad
		queue := t.QueueLength + dQueue
		resp := t.AvgResponseTime + dResp
		success := t.SuccessRate + dSuccess
		return platform.TelemetryUpdate{
			CurrentLoad:     &load,
			QueueLength:     &queue,
			AvgResponseTime: &resp,
			SuccessRate:     &success,
		}
	}, nil
}

// spread returns a uniform value in [-d, d).
func (j *JitterSource) spread(d float64) float64 {
	return (j.rng.Float64()*2 - 1) * d
}

// HostSource reports the host's CPU utilization as the load of platforms in
// the local category. Other platforms are left untouched.
type HostSource struct {
	window  time.Duration
	percent func(ctx context.Context, window time.Duration) (float64, error)
}

// NewHostSource creates a host source sampling CPU over window.
func NewHostSource(window time.Duration) *HostSource {
	return &HostSource{window: window, percent: hostCPUPercent}
}

// Sample implements Source.
func (h *HostSource) Sample(ctx context.Context, p model.ExecutionPlatform) (Adjustment, error) {
	if p.Category != model.CategoryLocal {
		return nil, nil
	}
	pct, err := h.percent(ctx, h.window)
	if err != nil {
		return nil, fmt.Errorf("host cpu: %w", err)
	}
	return Set(platform.TelemetryUpdate{CurrentLoad: &pct}), nil
}

func hostCPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("no cpu samples")
	}
	return pcts[0], nil
}
