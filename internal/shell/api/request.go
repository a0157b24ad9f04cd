package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/artpar/jobtemplates/internal/core/domain"
)

// maxRequestBytes bounds the size of a request body.
const maxRequestBytes = 1 << 20

// =============================================================================
// Request Parsing
// =============================================================================

// parseRequest decodes the JSON request body into a typed command and runs
// validate on it. It yields either the command or an INVALID_REQUEST error.
func parseRequest[T any](w http.ResponseWriter, r *http.Request, validate func(T) (field, message string)) (T, *domain.Error) {
	var cmd T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&cmd); err != nil {
		if errors.Is(err, io.EOF) {
			return cmd, domain.NewError(domain.ErrCodeInvalidRequest, "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return cmd, domain.NewError(domain.ErrCodeInvalidRequest, "request body too large")
		}
		return cmd, domain.NewError(domain.ErrCodeInvalidRequest, "invalid JSON: "+err.Error())
	}

	if field, msg := validate(cmd); field != "" {
		return cmd, domain.NewError(domain.ErrCodeInvalidRequest, msg)
	}

	return cmd, nil
}

// =============================================================================
// Response Rendering
// =============================================================================

// ok writes v as a JSON response.
func ok(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// notOK renders a structured error, tagged with the operation context, and logs it.
func notOK(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err *domain.Error, opContext string) {
	status := err.Code.HTTPStatus()

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"context", opContext,
		"code", err.Code,
		"errors", err.Errors,
	)

	ok(w, status, ErrorResponse{
		Code:    err.Code,
		Errors:  err.Errors,
		Context: opContext,
	})
}

// toDomainError converts any error into a structured error.
func toDomainError(err error) *domain.Error {
	if derr, isDomain := domain.AsError(err); isDomain {
		return derr
	}
	return domain.NewError(domain.ErrCodeInternal, err.Error())
}
