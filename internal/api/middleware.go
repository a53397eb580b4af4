package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type (
	contextKey string
)

const stateRequestKey contextKey = "stateRequest"

// validateEntity rejects requests for entity ids the hub does not know.
func (s *Server) validateEntity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entityID := chi.URLParam(r, "entity_id")

		if entityID == "" {
			s.sendError(w, "Entity id is required", http.StatusBadRequest)
			return
		}

		if _, exists := s.hub.GetState(entityID); !exists {
			s.sendError(w, fmt.Sprintf("Unknown entity: %s", entityID), http.StatusNotFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateJSONRequest validates that the request has proper JSON content type
func (s *Server) validateJSONRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if contentType != "" && contentType != "application/json" {
			s.sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) validateStateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req stateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}

		if _, ok := stateServices[req.State]; !ok {
			s.sendError(w, "State must be 'on', 'off', or 'toggle'", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), stateRequestKey, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
