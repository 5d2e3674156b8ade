package handlers

import (
	"context"
	"net/http"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/services"
	"github.com/camden-git/trustytail/workers"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SweepRunner is satisfied by the reminder and escalation sweeps.
type SweepRunner interface {
	Run(ctx context.Context) (workers.SweepResult, error)
}

type AdminHandler struct {
	DB         database.Querier
	Builder    sq.StatementBuilderType
	Owners     *services.OwnerService
	Reminders  SweepRunner
	Escalation SweepRunner
	Log        *zap.Logger
}

// GetStats handles GET /api/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetStats(r.Context(), h.DB, h.Builder)
	if err != nil {
		h.Log.Error("loading stats", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetProfile handles GET /api/profiles/{chat_id}
func (h *AdminHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chat_id"), 10, 64)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidChatID, "chat_id must be an integer")
		return
	}

	status, err := h.Owners.Status(r.Context(), chatID)
	if err != nil {
		h.Log.Error("loading owner status", zap.Int64("chat_id", chatID), zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to load profile")
		return
	}
	if !status.Registered {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RunReminders handles POST /api/sweeps/reminders
func (h *AdminHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, h.Reminders)
}

// RunEscalations handles POST /api/sweeps/escalations
func (h *AdminHandler) RunEscalations(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, h.Escalation)
}

func (h *AdminHandler) runSweep(w http.ResponseWriter, r *http.Request, sweep SweepRunner) {
	// a dropped client must not abandon a sweep halfway through a page
	res, err := sweep.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		h.Log.Error("manual sweep failed", zap.String("run_id", res.RunID), zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Sweep failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
