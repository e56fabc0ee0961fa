// Package respond writes JSON bodies and maps billing errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON encodes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Fail writes an error body with an explicit status and code.
func Fail(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	JSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// Error maps err onto the billing error taxonomy. Store failures are logged
// and reported without detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)

		msg = "internal error"
	}

	Fail(w, r, status, code, msg)
}

// Classify returns the status and code for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, billing.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, billing.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, billing.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, billing.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, billing.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "store_failure"
	}
}
