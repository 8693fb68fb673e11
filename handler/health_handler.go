package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

var startedAt = time.Now()

// HealthCheck godoc
// @Summary      Show the status of server
// @Description  Liveness probe consumed by the client-side health monitor
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startedAt).Seconds(),
	})
}
