package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/llm"
	"github.com/chatq-inc/chatq-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto an HTTP status.
// Invalid input is 400, gateway failures are 502, anything else is 500.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	var llmErr *llm.Error
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		status, code, message = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.As(err, &llmErr):
		status, code, message = http.StatusBadGateway, "llm_"+string(llmErr.Type), llmErr.Message
	case errors.Is(err, apperrors.ErrGatewayUnavailable):
		status, code, message = http.StatusBadGateway, "llm_unavailable", err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.Int("status", status),
			zap.String("error", logging.SanitizeError(err)))
	}

	if encErr := ErrorResponse(w, status, code, message); encErr != nil {
		logger.Error("Failed to write error response", zap.Error(encErr))
	}
}
