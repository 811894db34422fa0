package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/taskroute/internal/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	stateActive = "active"
)

// taskRequest is the JSON body for POST /v1/workflows and POST /v1/classify.
type taskRequest struct {
	Description string `json:"description"`
}

// listWorkflowsResponse wraps the paginated list response.
type listWorkflowsResponse struct {
	Workflows []*model.WorkflowExecution `json:"workflows"`
	Total     int                        `json:"total"`
	Limit     int                        `json:"limit"`
	Offset    int                        `json:"offset"`
}

func (s *Server) handleSubmitWorkflow(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	wf, err := s.engine.Submit(r.Context(), req.Description)
	if err != nil {
		s.writeDomainError(w, "submit workflow", err)
		return
	}

	w.Header().Set("Location", "/v1/workflows/"+wf.ID)
	s.writeJSON(w, http.StatusAccepted, wf)
}

// handleListWorkflows lists the finished-workflow history, or the live
// workflows with ?state=active.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") == stateActive {
		active := s.engine.Active()
		s.writeJSON(w, http.StatusOK, listWorkflowsResponse{
			Workflows: active,
			Total:     len(active),
			Limit:     len(active),
		})
		return
	}

	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	workflows, total, err := s.engine.List(r.Context(), limit, offset)
	if err != nil {
		s.writeDomainError(w, "list workflows", err)
		return
	}

	if workflows == nil {
		workflows = []*model.WorkflowExecution{}
	}

	s.writeJSON(w, http.StatusOK, listWorkflowsResponse{
		Workflows: workflows,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "get workflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handlePauseWorkflow(w http.ResponseWriter, r *http.Request) {
	s.control(w, "pause workflow", s.engine.Pause, chi.URLParam(r, "id"))
}

func (s *Server) handleResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	s.control(w, "resume workflow", s.engine.Resume, chi.URLParam(r, "id"))
}

func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	s.control(w, "cancel workflow", s.engine.Cancel, chi.URLParam(r, "id"))
}

func (s *Server) control(w http.ResponseWriter, op string, fn func(string) (*model.WorkflowExecution, error), id string) {
	wf, err := fn(id)
	if err != nil {
		s.writeDomainError(w, op, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := s.engine.Classify(r.Context(), req.Description)
	if err != nil {
		s.writeDomainError(w, "classify task", err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}
