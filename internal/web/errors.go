package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with its technical detail and the request
// id, then returned to the client as the catalogued user message from
// validate.MapError. Status codes come from statusFor unless the handler
// already knows better.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/csvgate/internal/logging"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/runstore"
	"github.com/JonMunkholm/csvgate/internal/validate"
)

// errRunsDisabled is returned by the run routes when no store is configured.
var errRunsDisabled = errors.New("run history not configured")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validate.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, validate.ErrInputNotFound),
		errors.Is(err, report.ErrNotFound),
		errors.Is(err, runstore.ErrNotFound),
		errors.Is(err, errRunsDisabled):
		return http.StatusNotFound
	case errors.Is(err, validate.ErrInputMalformed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError logs err with request context and writes the mapped user
// message. A zero statusCode selects statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := validate.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg validate.UserMessage, statusCode int) {
	writeJSONStatus(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are only logged since
// the status line has already been sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
