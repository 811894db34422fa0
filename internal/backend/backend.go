package backend

import (
	"context"

	"github.com/seantiz/taskroute/internal/model"
)

// Backend runs workflow steps on an execution platform.
type Backend interface {
	// Execute runs one step to completion. It reports progress through
	// spec.Progress as it advances and returns a non-nil error when the
	// platform reports a hard failure. The context carries cancellation.
	Execute(ctx context.Context, spec StepSpec) (StepResult, error)

	// Capabilities reports which platform categories this backend serves.
	Capabilities() Capabilities
}

// StepSpec describes a step to be executed by a backend.
type StepSpec struct {
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id"`
	StepName   string `json:"step_name"`
	// Index is the step's zero-based position in the workflow.
	Index int `json:"index"`
	// Platform is the snapshot of the platform the step is pinned to.
	Platform model.ExecutionPlatform `json:"platform"`

	// Progress is an optional callback receiving the step's progress
	// percentage. Values must be non-decreasing and within [0,100].
	Progress func(pct int) `json:"-"`
}

// ReportProgress forwards pct to the spec's callback, if any.
func (s StepSpec) ReportProgress(pct int) {
	if s.Progress != nil {
		s.Progress(pct)
	}
}

// StepResult holds what a backend produced for a completed step.
type StepResult struct {
	Output    string  `json:"output"`
	Cost      float64 `json:"cost"`
	DurationS float64 `json:"duration_s"`
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	Name           string   `json:"name"`
	Categories     []string `json:"categories"`
	MaxConcurrency int      `json:"max_concurrency"`
}
