package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	DB  Pinger
	Log *zap.Logger
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.Warn("health check failed", zap.Error(err))
		WriteAPIError(w, http.StatusServiceUnavailable, CodeUnavailable, "Database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
