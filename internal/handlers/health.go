package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"schooldir/internal/appinfo"
	"schooldir/pkg/utils"
)

type healthResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Timestamp   string           `json:"timestamp"`
	Environment string           `json:"environment"`
	Version     string           `json:"version,omitempty"`
	Uptime      string           `json:"uptime"`
	Database    string           `json:"database"`
	Schools     int64            `json:"schools"`
	Stats       appinfo.Snapshot `json:"stats"`
}

// Health reports liveness. The database probe is informational; the
// endpoint answers 200 as long as the process is serving.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "unreachable"
	}

	stats := h.store.Stats()
	snap := stats.Snapshot()
	utils.WriteJSON(w, http.StatusOK, healthResponse{
		Success:     true,
		Message:     "Server is running successfully",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: h.opts.Environment,
		Version:     h.opts.Version,
		Uptime:      stats.Uptime().String(),
		Database:    dbStatus,
		Schools:     snap.Schools,
		Stats:       snap,
	})
}

// NotFound is the catch-all for unregistered routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusNotFound, utils.Envelope{
		Success: false,
		Error:   fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path),
		Code:    utils.ErrRequestNotFound,
		Message: "The requested endpoint does not exist",
	})
}
