package handler

import (
	"context"
	"net/http"
	"time"

	"votecore/pkg/logger"
)

// HealthChecker reports per-backend status
type HealthChecker interface {
	Health(ctx context.Context) (map[string]string, bool)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checker HealthChecker
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components, healthy := h.checker.Health(ctx)

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Service:    "votecore",
		Components: components,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
		h.logger.WithField("components", components).Warn("Health check failed")
	}

	respondJSON(w, status, response)
}
