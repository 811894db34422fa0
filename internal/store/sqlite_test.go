package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/seantiz/taskroute/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func makeTestWorkflow(status string, created time.Time) *model.WorkflowExecution {
	c := model.NewTaskComplexity(model.Factors{
		ComputationalRequirements: 80,
		DataProcessing:            70,
		IntegrationComplexity:     25,
		RealTimeRequirements:      85,
		SecurityRequirements:      75,
	}, 7, []string{"vertex_ai", "cloud_compute", "scrapybara"})

	done := created.Add(30 * time.Second)
	start := created.Add(time.Second)
	w := &model.WorkflowExecution{
		ID:                  model.NewID(),
		Title:               "Task: Train an AI model",
		Description:         "Train an AI model",
		Complexity:          c,
		Status:              status,
		TotalProgress:       100,
		EstimatedCost:       1.75,
		TotalCost:           0.5,
		CreatedAt:           created,
		EstimatedCompletion: created.Add(7 * time.Minute),
		ActualCompletion:    &done,
		Steps: []model.ExecutionStep{
			{
				ID:           "analyze",
				Name:         "Task Analysis",
				Description:  "Analyze task requirements",
				Platform:     "vertex_ai",
				Status:       model.StepCompleted,
				Progress:     100,
				Dependencies: []string{},
				StartTime:    &start,
				EndTime:      &done,
				DurationS:    ptr(2.0),
				Cost:         ptr(0.5),
				Output:       "Step 1 completed on Google Vertex AI",
			},
			{
				ID:           "prepare",
				Name:         "Environment Preparation",
				Description:  "Set up execution environment",
				Platform:     "cloud_compute",
				Status:       model.StepSkipped,
				Dependencies: []string{"analyze"},
			},
		},
	}
	return w
}

func TestSaveAndGetWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := makeTestWorkflow(model.WorkflowCompleted, created)

	if err := s.SaveWorkflow(ctx, w); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}

	got, err := s.GetWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}

	if got.Title != w.Title {
		t.Errorf("Title = %q, want %q", got.Title, w.Title)
	}
	if got.Status != model.WorkflowCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if !got.CostSettled {
		t.Error("CostSettled = false for a terminal workflow")
	}
	if got.Complexity.Level != w.Complexity.Level || got.Complexity.Score != w.Complexity.Score {
		t.Errorf("Complexity = %+v, want %+v", got.Complexity, w.Complexity)
	}
	if len(got.Complexity.RecommendedPlatforms) != 3 {
		t.Errorf("RecommendedPlatforms = %v", got.Complexity.RecommendedPlatforms)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ActualCompletion == nil || !got.ActualCompletion.Equal(*w.ActualCompletion) {
		t.Errorf("ActualCompletion = %v, want %v", got.ActualCompletion, w.ActualCompletion)
	}

	if len(got.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(got.Steps))
	}
	first := got.Steps[0]
	if first.ID != "analyze" || first.Output != "Step 1 completed on Google Vertex AI" {
		t.Errorf("Steps[0] = %+v", first)
	}
	if first.Cost == nil || *first.Cost != 0.5 {
		t.Errorf("Steps[0].Cost = %v, want 0.5", first.Cost)
	}
	second := got.Steps[1]
	if second.StartTime != nil || second.Cost != nil || second.DurationS != nil {
		t.Errorf("skipped step has timing fields: %+v", second)
	}
	if len(second.Dependencies) != 1 || second.Dependencies[0] != "analyze" {
		t.Errorf("Steps[1].Dependencies = %v", second.Dependencies)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWorkflow(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWorkflow error = %v, want ErrNotFound", err)
	}
}

func TestSaveWorkflowDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWorkflow(model.WorkflowFailed, time.Now().UTC())

	if err := s.SaveWorkflow(ctx, w); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	err := s.SaveWorkflow(ctx, w)
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("second SaveWorkflow error = %v, want ErrDuplicateID", err)
	}

	// The failed insert must not leave extra step rows behind.
	got, err := s.GetWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if len(got.Steps) != 2 {
		t.Errorf("len(Steps) = %d, want 2", len(got.Steps))
	}
}

func TestListWorkflowsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		w := makeTestWorkflow(model.WorkflowCompleted, base.Add(time.Duration(i)*time.Hour))
		if err := s.SaveWorkflow(ctx, w); err != nil {
			t.Fatalf("SaveWorkflow[%d]: %v", i, err)
		}
	}

	page, total, err := s.ListWorkflows(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("page[0].CreatedAt = %v, want newest", page[0].CreatedAt)
	}
	if len(page[0].Steps) != 2 {
		t.Errorf("listed workflow has %d steps, want 2", len(page[0].Steps))
	}

	last, _, err := s.ListWorkflows(ctx, 2, 4)
	if err != nil {
		t.Fatalf("ListWorkflows page 3: %v", err)
	}
	if len(last) != 1 || !last[0].CreatedAt.Equal(base) {
		t.Errorf("last page = %v", last)
	}
}

func TestListWorkflowsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w := makeTestWorkflow(model.WorkflowCompleted, time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC))
		if err := s.SaveWorkflow(ctx, w); err != nil {
			t.Fatalf("SaveWorkflow[%d]: %v", i, err)
		}
	}

	workflows, _, err := s.ListWorkflows(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	for i := 1; i < len(workflows); i++ {
		if workflows[i].CreatedAt.After(workflows[i-1].CreatedAt) {
			t.Errorf("workflows not newest first: [%d]=%v > [%d]=%v",
				i, workflows[i].CreatedAt, i-1, workflows[i-1].CreatedAt)
		}
	}
}

func TestListWorkflowsEmpty(t *testing.T) {
	s := newTestStore(t)

	workflows, total, err := s.ListWorkflows(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if workflows != nil {
		t.Errorf("workflows = %v, want nil", workflows)
	}
}

func TestGetWorkflowStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Now().UTC()

	for _, status := range []string{model.WorkflowCompleted, model.WorkflowCompleted, model.WorkflowFailed} {
		if err := s.SaveWorkflow(ctx, makeTestWorkflow(status, created)); err != nil {
			t.Fatalf("SaveWorkflow: %v", err)
		}
	}

	stats, err := s.GetWorkflowStats(ctx)
	if err != nil {
		t.Fatalf("GetWorkflowStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.CountByStatus[model.WorkflowCompleted] != 2 || stats.CountByStatus[model.WorkflowFailed] != 1 {
		t.Errorf("CountByStatus = %v", stats.CountByStatus)
	}
	if stats.CountByLevel[model.LevelComplex] != 3 {
		t.Errorf("CountByLevel = %v", stats.CountByLevel)
	}
	if stats.AvgDurationS < 29.9 || stats.AvgDurationS > 30.1 {
		t.Errorf("AvgDurationS = %v, want 30", stats.AvgDurationS)
	}
	if stats.TotalCost < 1.49 || stats.TotalCost > 1.51 {
		t.Errorf("TotalCost = %v, want 1.5", stats.TotalCost)
	}
}

func TestGetWorkflowStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetWorkflowStats(context.Background())
	if err != nil {
		t.Fatalf("GetWorkflowStats: %v", err)
	}
	if stats.Total != 0 || stats.AvgDurationS != 0 || len(stats.CountByStatus) != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	w := makeTestWorkflow(model.WorkflowFailed, time.Now().UTC())
	if err := s.SaveWorkflow(ctx, w); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkflow after reopen: %v", err)
	}
	if got.Status != model.WorkflowFailed {
		t.Errorf("Status = %q", got.Status)
	}
}
