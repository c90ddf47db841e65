package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fincast/internal/core"
	"fincast/internal/log"
	"fincast/internal/middleware/trace"
)

// Error codes of the JSON error body.
const (
	CodeBadRequest        = "bad_request"
	CodeUserNotFound      = "user_not_found"
	CodeInvalidContext    = "invalid_context"
	CodeUnknownStrategy   = "unknown_strategy"
	CodeTimeout           = "timeout"
	CodeCanceled          = "canceled"
	CodeRateLimited       = "rate_limited"
	CodeComputationFailed = "computation_failed"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an analysis error onto an HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound, CodeUserNotFound
	case errors.Is(err, core.ErrInvalidContext):
		return http.StatusUnprocessableEntity, CodeInvalidContext
	case errors.Is(err, core.ErrUnknownStrategy):
		return http.StatusBadRequest, CodeUnknownStrategy
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, CodeCanceled
	default:
		return http.StatusInternalServerError, CodeComputationFailed
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Server-side failures are logged; their detail is
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
		)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
