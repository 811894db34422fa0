// Package simulated provides a platform backend that advances step progress
// on a timer instead of calling a real execution service. It stands in for a
// platform while keeping the progress-reporting contract of a real one.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/seantiz/taskroute/internal/backend"
	"github.com/seantiz/taskroute/internal/model"
)

// BackendName is the name reported in the backend's capabilities.
const BackendName = "simulated"

// Defaults for Config.
const (
	DefaultTick      = 200 * time.Millisecond
	DefaultIncrement = 10
)

// Config holds the simulation parameters.
type Config struct {
	// Tick is the delay between progress increments.
	Tick time.Duration
	// Increment is the progress added per tick, in percentage points.
	Increment int
	// FailSteps lists step ids that always fail halfway through.
	FailSteps map[string]bool
	// UseSuccessRate makes each step fail with probability
	// (100 - platform success rate) / 100.
	UseSuccessRate bool
}

// Backend is a simulated platform runner.
type Backend struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// New creates a simulated backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Increment <= 0 || cfg.Increment > 100 {
		cfg.Increment = DefaultIncrement
	}
	return &Backend{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Capabilities reports that the simulator serves every platform category.
func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name: BackendName,
		Categories: []string{
			model.CategorySandboxedCodeExec,
			model.CategoryBrowserAutomation,
			model.CategoryManagedInference,
			model.CategoryElasticCompute,
			model.CategoryLocal,
		},
		MaxConcurrency: 0,
	}
}

// Execute advances progress from 0 to 100 in Increment steps, one per Tick.
// The settled cost is the platform's hourly rate times the elapsed time.
func (b *Backend) Execute(ctx context.Context, spec backend.StepSpec) (backend.StepResult, error) {
	start := time.Now()
	failAt := b.failurePoint(spec)

	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()

	progress := 0
	for progress < 100 {
		select {
		case <-ctx.Done():
			stepsTotal.WithLabelValues(spec.Platform.ID, statusCancelled).Inc()
			return backend.StepResult{}, ctx.Err()
		case <-ticker.C:
		}

		next := min(100, progress+b.cfg.Increment)
		if failAt > 0 && next >= failAt {
			stepsTotal.WithLabelValues(spec.Platform.ID, statusFailed).Inc()
			b.logger.Debug("simulated step failure",
				"workflow_id", spec.WorkflowID,
				"step_id", spec.StepID,
				"platform_id", spec.Platform.ID,
				"progress", progress,
			)
			return backend.StepResult{}, fmt.Errorf("platform %s reported a hard failure at %d%%", spec.Platform.ID, progress)
		}
		progress = next
		spec.ReportProgress(progress)
	}

	elapsed := time.Since(start)
	stepsTotal.WithLabelValues(spec.Platform.ID, statusCompleted).Inc()
	return backend.StepResult{
		Output:    fmt.Sprintf("Step %d completed on %s", spec.Index+1, platformName(spec.Platform)),
		Cost:      spec.Platform.CostPerHour * elapsed.Hours(),
		DurationS: elapsed.Seconds(),
	}, nil
}

// failurePoint returns the progress at which the step fails, or 0 if it
// succeeds.
func (b *Backend) failurePoint(spec backend.StepSpec) int {
	if b.cfg.FailSteps[spec.StepID] {
		return 50
	}
	if !b.cfg.UseSuccessRate {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rng.Float64()*100 < spec.Platform.Telemetry.SuccessRate {
		return 0
	}
	return 1 + b.rng.IntN(100)
}

func platformName(p model.ExecutionPlatform) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
