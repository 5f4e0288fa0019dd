package handlers

import (
	"net/http"

	"github.com/remedian/remedian/internal/api"
)

// Version is the service version reported by the health endpoint
const Version = "1.0.0"

// HTTPHandler handles the basic service endpoints
type HTTPHandler struct{}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{}
}

// SetupRoutes configures the basic routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}
