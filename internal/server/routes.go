package server

import (
	"net/http"

	"github.com/ternarybob/quill/internal/handlers"
	"github.com/ternarybob/quill/internal/models"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	h := s.jobs

	// Section jobs
	mux.HandleFunc("POST /api/generate", h.GenerateHandler)
	mux.HandleFunc("POST /api/refine", h.RefineHandler)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJobHandler)

	mux.HandleFunc("GET /api/health", h.HealthHandler)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, models.ErrCodeNotFound, "Route not found")
	})

	return mux
}
