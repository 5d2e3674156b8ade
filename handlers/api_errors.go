package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Error codes used in the errors envelope.
const (
	CodeUnauthorized   = "unauthorized"
	CodeDisabled       = "admin_disabled"
	CodeInvalidChatID  = "invalid_chat_id"
	CodeNotFound       = "not_found"
	CodeInvalidPayload = "invalid_payload"
	CodeUnavailable    = "unavailable"
	CodeQueueFull      = "queue_full"
	CodeInternal       = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeJSON(w, httpStatus, APIErrorResponse{
		Errors: []APIErrorDetail{{
			Code:   code,
			Status: strconv.Itoa(httpStatus),
			Detail: detail,
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("encoding json response", zap.Error(err))
		}
	}
}
