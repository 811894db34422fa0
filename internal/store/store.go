package store

import (
	"context"

	"github.com/seantiz/taskroute/internal/model"
)

// WorkflowStats holds aggregate statistics over the workflow history.
type WorkflowStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByLevel  map[string]int `json:"count_by_level"`
	AvgDurationS  float64        `json:"avg_duration_s"`
	TotalCost     float64        `json:"total_cost"`
}

// Store defines the persistence operations for finished workflows.
type Store interface {
	// SaveWorkflow appends a terminal workflow to the history. Saving an id
	// that already exists returns model.ErrDuplicateID.
	SaveWorkflow(ctx context.Context, w *model.WorkflowExecution) error
	GetWorkflow(ctx context.Context, id string) (*model.WorkflowExecution, error)
	ListWorkflows(ctx context.Context, limit, offset int) ([]*model.WorkflowExecution, int, error)
	GetWorkflowStats(ctx context.Context) (*WorkflowStats, error)
	Close() error
}
