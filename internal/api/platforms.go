package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

func (s *Server) handleListPlatforms(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.platforms.Snapshot())
}

func (s *Server) handleGetPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := s.platforms.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "get platform", err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRegisterPlatform(w http.ResponseWriter, r *http.Request) {
	var p model.ExecutionPlatform
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Telemetry.Status == "" {
		p.Telemetry.Status = model.PlatformAvailable
	}

	if err := s.platforms.Register(p); err != nil {
		if errors.Is(err, model.ErrDuplicateID) {
			s.writeDomainError(w, "register platform", err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	registered, err := s.platforms.Get(p.ID)
	if err != nil {
		s.writeDomainError(w, "get platform", err)
		return
	}
	s.logger.Info("platform registered", "platform_id", p.ID, "category", p.Category)
	s.writeJSON(w, http.StatusCreated, registered)
}

func (s *Server) handleUpdateTelemetry(w http.ResponseWriter, r *http.Request) {
	var u platform.TelemetryUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if u.Status != nil && !model.ValidAvailability(*u.Status) {
		s.writeError(w, http.StatusBadRequest, "unknown platform status "+*u.Status)
		return
	}

	t, err := s.platforms.UpdateTelemetry(chi.URLParam(r, "id"), u)
	if err != nil {
		s.writeDomainError(w, "update telemetry", err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.backends.List())
}
