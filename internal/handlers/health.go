package handlers

import "net/http"

const (
	serviceName    = "verdant-ai-api"
	serviceVersion = "1.0.0"
)

// Health reports liveness and the configured model backends.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  serviceName,
		"version":  serviceVersion,
		"backends": a.registry.Available(),
	})
}

// Root describes the service.
func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Verdant AI Service",
		"version": serviceVersion,
		"health":  "/health",
	})
}
