package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/metrics"
)

// SystemMetricsHandlers handles the ops-facing system metrics endpoint
type SystemMetricsHandlers struct {
	logger *logging.Logger
}

// NewSystemMetricsHandlers creates new system metrics handlers
func NewSystemMetricsHandlers(logger *logging.Logger) *SystemMetricsHandlers {
	return &SystemMetricsHandlers{logger: logger}
}

// GetSystemMetrics returns a snapshot of host and process metrics
func (h *SystemMetricsHandlers) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	systemMetrics, err := metrics.CollectSystemMetrics(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect system metrics", err, nil)
		http.Error(w, "Failed to collect system metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(systemMetrics)
}
