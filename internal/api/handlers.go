package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/larsks/omada-poe/internal/hub"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

type stateRequest struct {
	State string `json:"state"`
}

var stateServices = map[string]string{
	"on":     hub.ServiceTurnOn,
	"off":    hub.ServiceTurnOff,
	"toggle": hub.ServiceToggle,
}

// APIResponse is the envelope of every response.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) sendResponse(w http.ResponseWriter, resp APIResponse, httpCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, httpCode int) {
	s.sendResponse(w, APIResponse{Status: statusError, Message: message}, httpCode)
}

func (s *Server) sendData(w http.ResponseWriter, data any) {
	s.sendResponse(w, APIResponse{Status: statusOK, Data: data}, http.StatusOK)
}

func (s *Server) listEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	s.sendData(w, s.hub.States())
}

func (s *Server) entityStatusHandler(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	state, ok := s.hub.GetState(entityID)
	if !ok {
		s.sendError(w, "Unknown entity: "+entityID, http.StatusNotFound)
		return
	}
	s.sendData(w, state)
}

func (s *Server) entityCommandHandler(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	req, ok := r.Context().Value(stateRequestKey).(stateRequest)
	if !ok {
		s.sendError(w, "Missing state request", http.StatusInternalServerError)
		return
	}

	if err := s.hub.CallService(r.Context(), hub.DomainSwitch, stateServices[req.State], entityID); err != nil {
		log.Printf("failed to set %s to %s: %v", entityID, req.State, err)
		code := http.StatusBadGateway
		if errors.Is(err, hub.ErrUnknownEntity) {
			code = http.StatusNotFound
		} else if errors.Is(err, hub.ErrNotSwitch) {
			code = http.StatusBadRequest
		}
		s.sendError(w, err.Error(), code)
		return
	}

	state, _ := s.hub.GetState(entityID)
	s.sendData(w, state)
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.RefreshAll(r.Context()); err != nil {
		log.Printf("refresh failed: %v", err)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.sendData(w, s.hub.States())
}
