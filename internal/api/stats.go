package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	ByStatus     map[string]int `json:"by_status"`
	ByLevel      map[string]int `json:"by_level"`
	AvgDurationS float64        `json:"avg_duration_s"`
	TotalCost    float64        `json:"total_cost"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, "get stats", err)
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:        stats.Total,
		Active:       len(s.engine.Active()),
		ByStatus:     stats.CountByStatus,
		ByLevel:      stats.CountByLevel,
		AvgDurationS: stats.AvgDurationS,
		TotalCost:    stats.TotalCost,
	})
}
