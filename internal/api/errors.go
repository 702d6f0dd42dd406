package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/probekit/internal/archive"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/tester"
	"github.com/nerrad567/probekit/internal/topic"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeForbidden          = "forbidden"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeNotConnected       = "not_connected"
	ErrCodeConnectionFailed   = "connection_failed"
	ErrCodeTimeout            = "timeout"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeRateLimited        = "rate_limited"
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeTesterError maps an engine error to a status code.
func writeTesterError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	writeError(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, tester.ErrAlreadyConnected),
		errors.Is(err, tester.ErrConnectInProgress):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, tester.ErrInvalidURL),
		errors.Is(err, tester.ErrInvalidFormat),
		errors.Is(err, tester.ErrMessageTooLarge),
		errors.Is(err, topic.ErrInvalidTopic),
		errors.Is(err, topic.ErrInvalidFilter),
		errors.Is(err, mqtttester.ErrInvalidQoS),
		errors.Is(err, archive.ErrInvalidProtocol):
		return http.StatusBadRequest, ErrCodeValidation

	case errors.Is(err, tester.ErrNotConnected):
		return http.StatusPreconditionFailed, ErrCodeNotConnected

	case errors.Is(err, tester.ErrConnectTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout

	case errors.Is(err, tester.ErrConnectionFailed),
		errors.Is(err, tester.ErrConnectionClosed),
		errors.Is(err, tester.ErrConnectAborted),
		errors.Is(err, tester.ErrReconnectExhausted):
		return http.StatusBadGateway, ErrCodeConnectionFailed

	case errors.Is(err, tester.ErrDestroyed),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// decodeJSON reads the request body into v, writing a 400 on failure. An
// empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
