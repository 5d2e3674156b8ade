package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/camden-git/trustytail/telegram"
	"go.uber.org/zap"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookHandler struct {
	Secret   string
	Decode   func(r *http.Request) (telegram.Update, bool, error)
	Dispatch func(u telegram.Update) bool
	Log      *zap.Logger
}

// Receive handles POST /telegram/webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretTokenHeader)), []byte(h.Secret)) != 1 {
		WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid secret token")
		return
	}

	update, ok, err := h.Decode(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidPayload, "Malformed update")
		return
	}
	if !ok {
		// updates we do not handle are acknowledged so Telegram stops retrying
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.Dispatch(update) {
		h.Log.Warn("update queue full", zap.Int64("chat_id", update.ChatID), zap.Int("update_id", update.ID))
		WriteAPIError(w, http.StatusServiceUnavailable, CodeQueueFull, "Update queue is full")
		return
	}
	w.WriteHeader(http.StatusOK)
}
