package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/link"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeDevice         = "device_error"
	ErrCodeTimeout        = "timeout"
	ErrCodeUnavailable    = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeEngineError maps engine, link and config errors to HTTP responses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownDisplay),
		errors.Is(err, engine.ErrLaneClosed),
		errors.Is(err, engine.ErrNoDisplays):
		writeNotFound(w, err.Error())
	case errors.Is(err, engine.ErrInvalidBrightness):
		writeBadRequest(w, err.Error())
	case errors.Is(err, configstore.ErrInvalidConfig):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, configstore.ErrParse),
		errors.Is(err, configstore.ErrUnsupportedFormat):
		writeBadRequest(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, engine.ErrAllFailed),
		errors.Is(err, link.ErrExhausted),
		errors.Is(err, link.ErrClosed),
		errors.Is(err, link.ErrVerifyMismatch),
		errors.Is(err, device.ErrBusFailure):
		writeError(w, http.StatusBadGateway, ErrCodeDevice, err.Error())
	case errors.Is(err, link.ErrCancelled):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
