// This file maps results and errors onto JSON responses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	// Detail carries the underlying error in development only.
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error onto its HTTP status and public message.
func StatusFor(err error) (int, string) {
	var ve *core.ValidationError
	var de *decodeError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation failed"
	case errors.As(err, &de):
		return http.StatusBadRequest, de.msg
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, services.ErrBotNotImplemented):
		return http.StatusNotImplemented, services.ErrBotNotImplemented.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError maps err onto a JSON error response. Server faults are logged
// with full detail; clients see the detail only in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	body := ErrorBody{Error: msg}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}

	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logger := log.FromContext(r.Context())
		var se *core.StorageError
		if errors.As(err, &se) {
			logger.ErrorContext(r.Context(), "Storage failure",
				log.FieldOperation, se.Op,
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
		} else {
			logger.ErrorContext(r.Context(), "Request failed",
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
		}
		if s.devErrors {
			body.Detail = err.Error()
		}
	}

	writeJSON(w, status, body)
}
