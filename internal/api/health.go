package api

import (
	"net/http"
	"time"

	"github.com/tribeapp/tribe-server/internal/api/respond"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	isHealthy  func() bool
	components func() map[string]bool
}

func NewHealthHandler(isHealthy func() bool, components func() map[string]bool) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return false }
	}
	return &HealthHandler{isHealthy: isHealthy, components: components}
}

// CheckHealth handles GET /v0/health
// Always returns 200; body reports healthy/unhealthy per component. 500
// indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.isHealthy() {
		status = "healthy"
	}
	body := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.components != nil {
		body["components"] = h.components()
	}
	respond.WriteJSON(w, http.StatusOK, body)
}
