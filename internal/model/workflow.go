package model

import (
	"slices"
	"time"
)

// Step status constants.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
	StepError     = "error"
	StepSkipped   = "skipped"
)

// Workflow status constants.
const (
	WorkflowPlanning  = "planning"
	WorkflowRunning   = "running"
	WorkflowPaused    = "paused"
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
)

// validStepTransitions maps each step status to the set of statuses it may transition to.
var validStepTransitions = map[string]map[string]bool{
	StepPending: {
		StepRunning: true,
		StepSkipped: true,
	},
	StepRunning: {
		StepCompleted: true,
		StepError:     true,
	},
}

// validWorkflowTransitions maps each workflow status to the set of statuses it may transition to.
var validWorkflowTransitions = map[string]map[string]bool{
	WorkflowPlanning: {
		WorkflowRunning: true,
		WorkflowFailed:  true,
	},
	WorkflowRunning: {
		WorkflowPaused:    true,
		WorkflowCompleted: true,
		WorkflowFailed:    true,
	},
	WorkflowPaused: {
		WorkflowRunning:   true,
		WorkflowCompleted: true,
		WorkflowFailed:    true,
	},
}

// ValidStepTransition reports whether a step may move from one status to another.
func ValidStepTransition(from, to string) bool {
	return validStepTransitions[from][to]
}

// ValidWorkflowTransition reports whether a workflow may move from one status to another.
func ValidWorkflowTransition(from, to string) bool {
	return validWorkflowTransitions[from][to]
}

// IsTerminal reports whether a workflow status is terminal.
func IsTerminal(status string) bool {
	return status == WorkflowCompleted || status == WorkflowFailed
}

// ExecutionStep is one node of a workflow graph, bound to exactly one platform.
type ExecutionStep struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Platform     string     `json:"platform"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Dependencies []string   `json:"dependencies"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	DurationS    *float64   `json:"duration,omitempty"`
	Cost         *float64   `json:"cost,omitempty"`
	Output       string     `json:"output,omitempty"`
}

// Contribution is the step's share of aggregate progress: 0 while pending or
// skipped, 100 once completed, the raw progress otherwise.
func (s ExecutionStep) Contribution() float64 {
	switch s.Status {
	case StepPending, StepSkipped:
		return 0
	case StepCompleted:
		return 100
	default:
		return float64(s.Progress)
	}
}

// Clone returns a deep copy of s.
func (s ExecutionStep) Clone() ExecutionStep {
	s.Dependencies = slices.Clone(s.Dependencies)
	s.StartTime = clonePtr(s.StartTime)
	s.EndTime = clonePtr(s.EndTime)
	s.DurationS = clonePtr(s.DurationS)
	s.Cost = clonePtr(s.Cost)
	return s
}

// WorkflowExecution is one materialized, executable plan.
type WorkflowExecution struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Complexity          TaskComplexity  `json:"complexity"`
	Steps               []ExecutionStep `json:"steps"`
	Status              string          `json:"status"`
	TotalProgress       float64         `json:"total_progress"`
	EstimatedCost       float64         `json:"estimated_cost"`
	TotalCost           float64         `json:"total_cost"`
	CostSettled         bool            `json:"cost_settled"`
	CreatedAt           time.Time       `json:"created_at"`
	EstimatedCompletion time.Time       `json:"estimated_completion"`
	ActualCompletion    *time.Time      `json:"actual_completion,omitempty"`
}

// Clone returns a deep copy of w.
func (w *WorkflowExecution) Clone() *WorkflowExecution {
	c := *w
	c.Complexity = w.Complexity.Clone()
	c.Steps = make([]ExecutionStep, len(w.Steps))
	for i, s := range w.Steps {
		c.Steps[i] = s.Clone()
	}
	c.ActualCompletion = clonePtr(w.ActualCompletion)
	return &c
}

// StepIndex returns the position of the step with the given id, or -1.
func (w *WorkflowExecution) StepIndex(id string) int {
	return slices.IndexFunc(w.Steps, func(s ExecutionStep) bool { return s.ID == id })
}

// AggregateProgress is the mean of the steps' progress contributions.
func AggregateProgress(steps []ExecutionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range steps {
		sum += s.Contribution()
	}
	return sum / float64(len(steps))
}

// SettledCost sums the costs recorded on finished steps.
func SettledCost(steps []ExecutionStep) float64 {
	var sum float64
	for _, s := range steps {
		if s.Cost != nil {
			sum += *s.Cost
		}
	}
	return sum
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
