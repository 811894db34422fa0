package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/seantiz/taskroute/internal/backend"
	"github.com/seantiz/taskroute/internal/classifier"
	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/planner"
	"github.com/seantiz/taskroute/internal/platform"
	"github.com/seantiz/taskroute/internal/router"
	"github.com/seantiz/taskroute/internal/store"
)

// CancelledOutput is recorded on a step that was running when its workflow
// was cancelled.
const CancelledOutput = "cancelled before completion"

// Deps holds the collaborators an Engine needs.
type Deps struct {
	Store      store.Store
	Platforms  *platform.Registry
	Classifier *classifier.Classifier
	Router     *router.Router
	Planner    *planner.Planner
	Backends   *backend.Registry
	Logger     *slog.Logger
}

// Engine orchestrates asynchronous workflow execution.
type Engine struct {
	store      store.Store
	platforms  *platform.Registry
	classifier *classifier.Classifier
	router     *router.Router
	planner    *planner.Planner
	backends   *backend.Registry
	logger     *slog.Logger
	broker     *StatusBroker
	wg         sync.WaitGroup

	mu   sync.RWMutex
	runs map[string]*run
}

// run is the live state of one workflow. wf and resume are guarded by mu.
type run struct {
	mu     sync.Mutex
	wf     *model.WorkflowExecution
	cancel context.CancelFunc
	// resume is closed when a paused workflow may continue.
	resume chan struct{}
	done   chan struct{}
}

// NewEngine creates a new execution engine.
func NewEngine(d Deps) *Engine {
	return &Engine{
		store:      d.Store,
		platforms:  d.Platforms,
		classifier: d.Classifier,
		router:     d.Router,
		planner:    d.Planner,
		backends:   d.Backends,
		logger:     d.Logger,
		broker:     NewStatusBroker(),
		runs:       make(map[string]*run),
	}
}

// Broker returns the engine's status broker.
func (e *Engine) Broker() *StatusBroker {
	return e.broker
}

// Classify scores a description against the current platform snapshot
// without planning a workflow.
func (e *Engine) Classify(ctx context.Context, description string) (model.TaskComplexity, error) {
	return e.classifier.Classify(ctx, description, e.platforms.Snapshot())
}

// Submit classifies and plans a task, then launches asynchronous execution.
// The returned snapshot is already in the running state. No workflow is
// created when classification or planning fails.
func (e *Engine) Submit(ctx context.Context, description string) (*model.WorkflowExecution, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, model.ErrInvalidTaskDescription
	}

	snap := e.platforms.Snapshot()
	c, err := e.classifier.Classify(ctx, description, snap)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	routed := e.router.SelectPlatformsForWorkflow(c, snap)
	wf, err := e.planner.Plan(description, c, routed, snap)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{wf: wf, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	e.transition(r, model.WorkflowRunning)
	out := wf.Clone()
	r.mu.Unlock()

	e.mu.Lock()
	e.runs[wf.ID] = r
	e.mu.Unlock()
	activeWorkflows.Inc()

	e.logger.Info("workflow submitted",
		"workflow_id", wf.ID,
		"level", c.Level,
		"score", c.Score,
		"platforms", routed,
	)

	e.wg.Go(func() {
		defer cancel()
		e.execute(runCtx, r)
	})

	return out, nil
}

// Wait blocks until all in-flight workflow goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Shutdown cancels every live workflow and waits for their goroutines, or
// until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		if _, err := e.Cancel(id); err != nil && !errors.Is(err, model.ErrInvalidTransition) {
			e.logger.Warn("cancel on shutdown", "workflow_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a snapshot of a live workflow, or the stored record of a
// finished one.
func (e *Engine) Get(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	if r, ok := e.lookup(id); ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.wf.Clone(), nil
	}

	wf, err := e.store.GetWorkflow(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("workflow %s: %w", id, model.ErrUnknownWorkflow)
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// Active returns snapshots of all non-terminal workflows, newest first.
func (e *Engine) Active() []*model.WorkflowExecution {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.RUnlock()

	out := make([]*model.WorkflowExecution, 0, len(runs))
	for _, r := range runs {
		r.mu.Lock()
		// A finished run stays in e.runs only if it could not be persisted.
		if !model.IsTerminal(r.wf.Status) {
			out = append(out, r.wf.Clone())
		}
		r.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b *model.WorkflowExecution) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

// List returns a page of the finished-workflow history.
func (e *Engine) List(ctx context.Context, limit, offset int) ([]*model.WorkflowExecution, int, error) {
	return e.store.ListWorkflows(ctx, limit, offset)
}

// Stats returns aggregate statistics over the history.
func (e *Engine) Stats(ctx context.Context) (*store.WorkflowStats, error) {
	return e.store.GetWorkflowStats(ctx)
}

// Subscribe returns a stream of snapshots for the workflow, starting with
// its current state. The stream is closed once the workflow is terminal.
// For a finished workflow the stream carries only the final snapshot.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan *model.WorkflowExecution, func(), error) {
	if r, ok := e.lookup(id); ok {
		r.mu.Lock()
		if !model.IsTerminal(r.wf.Status) {
			ch, unsub := e.broker.Subscribe(id, r.wf.Clone())
			r.mu.Unlock()
			return ch, unsub, nil
		}
		final := r.wf.Clone()
		r.mu.Unlock()
		return closedStream(final), func() {}, nil
	}

	wf, err := e.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return closedStream(wf), func() {}, nil
}

// Done returns a channel closed once the workflow is terminal and recorded
// in the history. For workflows that are not live it is already closed.
func (e *Engine) Done(id string) <-chan struct{} {
	if r, ok := e.lookup(id); ok {
		return r.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Pause stops the workflow before its next step starts. An in-flight step
// runs to completion. Pausing a paused workflow is a no-op.
func (e *Engine) Pause(id string) (*model.WorkflowExecution, error) {
	r, err := e.live(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.wf.Status {
	case model.WorkflowPaused:
		return r.wf.Clone(), nil
	case model.WorkflowRunning:
		r.resume = make(chan struct{})
		e.transition(r, model.WorkflowPaused)
		e.logger.Info("workflow paused", "workflow_id", id)
		return r.wf.Clone(), nil
	default:
		return nil, fmt.Errorf("pause workflow %s in state %s: %w", id, r.wf.Status, model.ErrInvalidTransition)
	}
}

// Resume lets a paused workflow continue with its next step. Resuming a
// running workflow is a no-op.
func (e *Engine) Resume(id string) (*model.WorkflowExecution, error) {
	r, err := e.live(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.wf.Status {
	case model.WorkflowRunning:
		return r.wf.Clone(), nil
	case model.WorkflowPaused:
		e.transition(r, model.WorkflowRunning)
		close(r.resume)
		r.resume = nil
		e.logger.Info("workflow resumed", "workflow_id", id)
		return r.wf.Clone(), nil
	default:
		return nil, fmt.Errorf("resume workflow %s in state %s: %w", id, r.wf.Status, model.ErrInvalidTransition)
	}
}

// Cancel moves a workflow straight to failed. The running step, if any,
// ends in error and every pending step is skipped. Cancelling a failed
// workflow is a no-op; cancelling a completed one is an invalid transition.
func (e *Engine) Cancel(id string) (*model.WorkflowExecution, error) {
	r, ok := e.lookup(id)
	if !ok {
		wf, err := e.Get(context.Background(), id)
		if err != nil {
			return nil, err
		}
		if wf.Status == model.WorkflowFailed {
			return wf, nil
		}
		return nil, fmt.Errorf("cancel workflow %s in state %s: %w", id, wf.Status, model.ErrInvalidTransition)
	}

	r.mu.Lock()
	switch r.wf.Status {
	case model.WorkflowFailed:
		out := r.wf.Clone()
		r.mu.Unlock()
		return out, nil
	case model.WorkflowCompleted:
		r.mu.Unlock()
		return nil, fmt.Errorf("cancel workflow %s in state %s: %w", id, r.wf.Status, model.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	for i := range r.wf.Steps {
		st := &r.wf.Steps[i]
		switch st.Status {
		case model.StepRunning:
			e.settleStep(r, i, model.StepError, CancelledOutput, nil, now)
		case model.StepPending:
			e.setStepStatus(r, i, model.StepSkipped)
		}
	}
	if r.resume != nil {
		close(r.resume)
		r.resume = nil
	}
	r.cancel()
	e.logger.Info("workflow cancelled", "workflow_id", id)
	final := e.terminate(r, model.WorkflowFailed)
	r.mu.Unlock()

	e.finish(r, final)
	return final.Clone(), nil
}

// execute runs the workflow's steps in dependency order.
func (e *Engine) execute(ctx context.Context, r *run) {
	for i := range r.wf.Steps {
		r.mu.Lock()
		pending := r.wf.Steps[i].Status == model.StepPending
		r.mu.Unlock()
		if !pending {
			continue
		}
		if !e.awaitRunnable(r) {
			return
		}

		r.mu.Lock()
		if model.IsTerminal(r.wf.Status) {
			r.mu.Unlock()
			return
		}
		if !dependenciesMet(r.wf.Steps, i) {
			e.setStepStatus(r, i, model.StepSkipped)
			e.publish(r)
			r.mu.Unlock()
			continue
		}
		start := time.Now().UTC()
		r.wf.Steps[i].StartTime = &start
		e.setStepStatus(r, i, model.StepRunning)
		e.publish(r)
		spec := e.stepSpec(r, i)
		r.mu.Unlock()

		e.runStep(ctx, r, i, spec)
	}

	r.mu.Lock()
	succeeded := !slices.ContainsFunc(r.wf.Steps, func(s model.ExecutionStep) bool {
		return s.Status != model.StepCompleted
	})
	// Pause only holds back the next step; with none left the workflow
	// finishes even while paused.
	if model.IsTerminal(r.wf.Status) {
		r.mu.Unlock()
		return
	}
	status := model.WorkflowFailed
	if succeeded {
		status = model.WorkflowCompleted
	}
	final := e.terminate(r, status)
	r.mu.Unlock()

	e.finish(r, final)
}

// runStep executes one step on its backend and records the outcome.
func (e *Engine) runStep(ctx context.Context, r *run, i int, spec backend.StepSpec) {
	log := e.logger.With("workflow_id", spec.WorkflowID, "step_id", spec.StepID, "platform_id", spec.Platform.ID)

	spec.Progress = func(pct int) {
		r.mu.Lock()
		defer r.mu.Unlock()
		st := &r.wf.Steps[i]
		if st.Status != model.StepRunning {
			return
		}
		pct = min(max(pct, st.Progress), 100)
		if pct == st.Progress {
			return
		}
		st.Progress = pct
		r.wf.TotalProgress = model.AggregateProgress(r.wf.Steps)
		e.publish(r)
	}

	result, err := e.dispatch(ctx, spec)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wf.Steps[i].Status != model.StepRunning {
		// Cancelled while the backend was running.
		return
	}

	now := time.Now().UTC()
	if err != nil {
		log.Warn("step failed", "error", err)
		e.settleStep(r, i, model.StepError, err.Error(), nil, now)
		e.cascadeSkip(r, r.wf.Steps[i].ID)
		e.publish(r)
		return
	}

	log.Debug("step completed", "duration_s", result.DurationS, "cost", result.Cost)
	r.wf.Steps[i].Progress = 100
	e.settleStep(r, i, model.StepCompleted, result.Output, &result, now)
	stepDuration.WithLabelValues(r.wf.Steps[i].ID).Observe(*r.wf.Steps[i].DurationS)
	e.publish(r)
}

// dispatch resolves the step's backend and executes it.
func (e *Engine) dispatch(ctx context.Context, spec backend.StepSpec) (backend.StepResult, error) {
	b, err := e.backends.Resolve(spec.Platform)
	if err != nil {
		return backend.StepResult{}, fmt.Errorf("resolve backend: %w", err)
	}
	return b.Execute(ctx, spec)
}

// stepSpec builds the backend spec for step i. The caller holds r.mu.
func (e *Engine) stepSpec(r *run, i int) backend.StepSpec {
	st := r.wf.Steps[i]
	p, err := e.platforms.Get(st.Platform)
	if err != nil {
		// Keep the id so the backend reports which platform was missing.
		p = model.ExecutionPlatform{ID: st.Platform, Name: st.Platform}
	}
	return backend.StepSpec{
		WorkflowID: r.wf.ID,
		StepID:     st.ID,
		StepName:   st.Name,
		Index:      i,
		Platform:   p,
	}
}

// awaitRunnable blocks while the workflow is paused. It reports false once
// the workflow is terminal.
func (e *Engine) awaitRunnable(r *run) bool {
	for {
		r.mu.Lock()
		if model.IsTerminal(r.wf.Status) {
			r.mu.Unlock()
			return false
		}
		if r.wf.Status != model.WorkflowPaused {
			r.mu.Unlock()
			return true
		}
		ch := r.resume
		r.mu.Unlock()
		<-ch
	}
}

// settleStep moves step i to a finished status and stamps its end time,
// duration and cost. The caller holds r.mu.
func (e *Engine) settleStep(r *run, i int, status, output string, result *backend.StepResult, now time.Time) {
	st := &r.wf.Steps[i]
	e.setStepStatus(r, i, status)
	st.EndTime = &now
	st.Output = output

	duration := 0.0
	if st.StartTime != nil {
		duration = now.Sub(*st.StartTime).Seconds()
	}
	cost := 0.0
	if result != nil {
		if result.DurationS > 0 {
			duration = result.DurationS
		}
		cost = result.Cost
	}
	st.DurationS = &duration
	st.Cost = &cost

	r.wf.TotalCost = model.SettledCost(r.wf.Steps)
	r.wf.TotalProgress = model.AggregateProgress(r.wf.Steps)
}

// cascadeSkip skips every pending step that depends, directly or
// transitively, on the failed step. The caller holds r.mu.
func (e *Engine) cascadeSkip(r *run, failedID string) {
	blocked := map[string]bool{failedID: true}
	for i := range r.wf.Steps {
		st := &r.wf.Steps[i]
		if st.Status != model.StepPending {
			continue
		}
		if slices.ContainsFunc(st.Dependencies, func(d string) bool { return blocked[d] }) {
			e.setStepStatus(r, i, model.StepSkipped)
			blocked[st.ID] = true
		}
	}
	r.wf.TotalProgress = model.AggregateProgress(r.wf.Steps)
}

// setStepStatus applies a step transition. An invalid transition is a bug,
// logged and ignored. The caller holds r.mu.
func (e *Engine) setStepStatus(r *run, i int, to string) {
	st := &r.wf.Steps[i]
	if !model.ValidStepTransition(st.Status, to) {
		e.logger.Error("invalid step transition",
			"workflow_id", r.wf.ID, "step_id", st.ID, "from", st.Status, "to", to)
		return
	}
	st.Status = to
}

// transition applies a workflow transition and publishes the new state.
// The caller holds r.mu.
func (e *Engine) transition(r *run, to string) {
	if !model.ValidWorkflowTransition(r.wf.Status, to) {
		e.logger.Error("invalid workflow transition",
			"workflow_id", r.wf.ID, "from", r.wf.Status, "to", to)
		return
	}
	r.wf.Status = to
	e.publish(r)
}

// terminate moves the workflow to a terminal status and returns the final
// snapshot. The caller holds r.mu.
func (e *Engine) terminate(r *run, status string) *model.WorkflowExecution {
	now := time.Now().UTC()
	r.wf.ActualCompletion = &now
	r.wf.CostSettled = true
	r.wf.TotalProgress = model.AggregateProgress(r.wf.Steps)
	r.wf.TotalCost = model.SettledCost(r.wf.Steps)
	e.transition(r, status)
	return r.wf.Clone()
}

// finish persists a terminal workflow, closes its stream and releases the
// live run. It must be called exactly once per workflow, without r.mu held.
func (e *Engine) finish(r *run, final *model.WorkflowExecution) {
	defer close(r.done)

	activeWorkflows.Dec()
	workflowsTotal.WithLabelValues(final.Status).Inc()
	e.broker.Close(final.ID)

	log := e.logger.With("workflow_id", final.ID)
	log.Info("workflow finished",
		"status", final.Status,
		"total_cost", final.TotalCost,
		"progress", final.TotalProgress,
	)

	if err := e.store.SaveWorkflow(context.Background(), final); err != nil {
		// Keep the run live so Get still serves it.
		log.Error("failed to persist workflow", "error", err)
		return
	}

	e.mu.Lock()
	delete(e.runs, final.ID)
	e.mu.Unlock()
}

// publish sends the current state to subscribers. The caller holds r.mu,
// which keeps snapshots of one workflow in order.
func (e *Engine) publish(r *run) {
	e.broker.Publish(r.wf.ID, r.wf.Clone())
}

func (e *Engine) lookup(id string) (*run, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[id]
	return r, ok
}

// live returns the run for id. Finished workflows yield ErrInvalidTransition,
// unknown ids ErrUnknownWorkflow.
func (e *Engine) live(id string) (*run, error) {
	if r, ok := e.lookup(id); ok {
		return r, nil
	}
	wf, err := e.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("workflow %s is %s: %w", id, wf.Status, model.ErrInvalidTransition)
}

// dependenciesMet reports whether every dependency of step i is completed.
func dependenciesMet(steps []model.ExecutionStep, i int) bool {
	for _, dep := range steps[i].Dependencies {
		j := slices.IndexFunc(steps, func(s model.ExecutionStep) bool { return s.ID == dep })
		if j < 0 || steps[j].Status != model.StepCompleted {
			return false
		}
	}
	return true
}

func closedStream(wf *model.WorkflowExecution) <-chan *model.WorkflowExecution {
	ch := make(chan *model.WorkflowExecution, 1)
	ch <- wf
	close(ch)
	return ch
}
