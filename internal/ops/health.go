package ops

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	dirStart := time.Now()
	if err := h.dir.Ping(ctx); err != nil {
		checks["directory"] = Check{Status: "fail", Message: "backend unreachable"}
		allHealthy = false
	} else {
		checks["directory"] = Check{Status: "pass", Latency: time.Since(dirStart).String()}
	}

	queueStart := time.Now()
	if err := h.queue.Ping(ctx); err != nil {
		checks["queue"] = Check{Status: "fail", Message: "backend unreachable"}
		allHealthy = false
	} else {
		checks["queue"] = Check{Status: "pass", Latency: time.Since(queueStart).String()}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
