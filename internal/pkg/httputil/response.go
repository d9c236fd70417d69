package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

const contentTypeJSON = "application/json; charset=utf-8"

// JSON encodes data as the response body with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: encode response", "status", status, "error", err)
	}
}

func OK(w http.ResponseWriter, data any)      { JSON(w, http.StatusOK, data) }
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// Success acknowledges a mutation with {"success": true}.
func Success(w http.ResponseWriter) {
	OK(w, map[string]bool{"success": true})
}

// Error replies with status and message in an ErrorResponse.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

func BadRequest(w http.ResponseWriter, message string) { Error(w, http.StatusBadRequest, message) }
func NotFound(w http.ResponseWriter, message string)   { Error(w, http.StatusNotFound, message) }
func Conflict(w http.ResponseWriter, message string)   { Error(w, http.StatusConflict, message) }

// InternalError logs err and answers 500 with a fixed message.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("httputil: internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// ServiceError picks the status for an error coming out of a service:
// domain.ValidationError is 400, ErrNotFound 404, ErrConflict 409 and
// the rest 500.
func ServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, domain.ErrConflict):
		Conflict(w, err.Error())
	default:
		InternalError(w, err)
	}
}

// Decode unmarshals the request body into dst. On malformed input it has
// already replied 400 and returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	BadRequest(w, "invalid JSON: "+err.Error())
	return false
}
