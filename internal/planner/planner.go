// Package planner compiles a classified task and its routed platforms into
// an executable model.WorkflowExecution.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

// Canonical step ids, in pipeline order.
const (
	StepAnalyze  = "analyze"
	StepPrepare  = "prepare"
	StepExecute  = "execute"
	StepValidate = "validate"
	StepOptimize = "optimize"
)

// Defaults for Config.
const (
	DefaultCostRate        = 0.25
	DefaultDefaultPlatform = "local_dev"
)

const titleLimit = 50

// slot says which routed platform a canonical step is pinned to.
type slot int

const (
	slotInference slot = iota
	slotPrimary
	slotSecondary
)

type stepTemplate struct {
	id          string
	name        string
	description string
	slot        slot
}

var pipeline = []stepTemplate{
	{StepAnalyze, "Task Analysis", "Analyze task requirements and dependencies", slotInference},
	{StepPrepare, "Environment Preparation", "Set up execution environment and resources", slotPrimary},
	{StepExecute, "Main Execution", "Execute the primary task workflow", slotPrimary},
	{StepValidate, "Result Validation", "Validate outputs and perform quality checks", slotInference},
	{StepOptimize, "Optimization", "Optimize results and cleanup resources", slotSecondary},
}

// Config holds the planner's tunables.
type Config struct {
	// CostRate converts estimated minutes into the provisional total cost.
	CostRate float64
	// DefaultPlatform receives the optimize step when only one platform is routed.
	DefaultPlatform string
}

// Planner builds workflows. It holds no mutable state.
type Planner struct {
	cfg Config
	now func() time.Time
}

// New creates a planner, filling zero config values with defaults.
func New(cfg Config) *Planner {
	if cfg.CostRate <= 0 {
		cfg.CostRate = DefaultCostRate
	}
	if cfg.DefaultPlatform == "" {
		cfg.DefaultPlatform = DefaultDefaultPlatform
	}
	return &Planner{cfg: cfg, now: time.Now}
}

// Plan compiles the five-step canonical pipeline. routed is the router's
// ordered platform list and snap the snapshot it was computed from. The
// result is in planning status; nothing is created on error.
func (p *Planner) Plan(description string, c model.TaskComplexity, routed []string, snap platform.Snapshot) (*model.WorkflowExecution, error) {
	if len(snap) == 0 {
		return nil, fmt.Errorf("plan: empty platform snapshot: %w", model.ErrInsufficientPlatforms)
	}
	if len(routed) == 0 {
		return nil, fmt.Errorf("plan: no routed platforms: %w", model.ErrInsufficientPlatforms)
	}

	assigned := map[slot]string{
		slotInference: inferencePlatform(snap, routed[0]),
		slotPrimary:   routed[0],
		slotSecondary: p.cfg.DefaultPlatform,
	}
	if len(routed) > 1 {
		assigned[slotSecondary] = routed[1]
	}

	steps := make([]model.ExecutionStep, len(pipeline))
	for i, tmpl := range pipeline {
		deps := []string{}
		if i > 0 {
			deps = append(deps, pipeline[i-1].id)
		}
		steps[i] = model.ExecutionStep{
			ID:           tmpl.id,
			Name:         tmpl.name,
			Description:  tmpl.description,
			Platform:     assigned[tmpl.slot],
			Status:       model.StepPending,
			Dependencies: deps,
		}
	}

	now := p.now().UTC()
	return &model.WorkflowExecution{
		ID:                  model.NewID(),
		Title:               Title(description),
		Description:         description,
		Complexity:          c.Clone(),
		Steps:               steps,
		Status:              model.WorkflowPlanning,
		EstimatedCost:       float64(c.EstimatedDuration) * p.cfg.CostRate,
		CreatedAt:           now,
		EstimatedCompletion: now.Add(time.Duration(c.EstimatedDuration) * time.Minute),
	}, nil
}

// Title is "Task: " followed by the description cut to 50 runes.
func Title(description string) string {
	description = strings.TrimSpace(description)
	runes := []rune(description)
	if len(runes) > titleLimit {
		return "Task: " + string(runes[:titleLimit]) + "..."
	}
	return "Task: " + description
}

// inferencePlatform picks the managed-inference platform with the highest
// scalability, then reliability, then lowest id. It returns fallback when the
// snapshot holds no such platform.
func inferencePlatform(snap platform.Snapshot, fallback string) string {
	var best *model.ExecutionPlatform
	for i := range snap {
		cand := &snap[i]
		if cand.Category != model.CategoryManagedInference {
			continue
		}
		if best == nil || better(cand, best) {
			best = cand
		}
	}
	if best == nil {
		return fallback
	}
	return best.ID
}

func better(a, b *model.ExecutionPlatform) bool {
	if a.Performance.Scalability != b.Performance.Scalability {
		return a.Performance.Scalability > b.Performance.Scalability
	}
	if a.Performance.Reliability != b.Performance.Reliability {
		return a.Performance.Reliability > b.Performance.Reliability
	}
	return a.ID < b.ID
}
