package api

import "github.com/artpar/jobtemplates/internal/core/domain"

// =============================================================================
// Request Context Tags
// =============================================================================

// Context tags attached to error responses so a caller can tell which
// operation rejected the request.
const (
	ContextCreate = "JobTemplateCreate"
	ContextUpdate = "JobTemplateUpdate"
	ContextDelete = "JobTemplateDelete"
	ContextList   = "JobTemplateList"
)

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Code    domain.ErrorCode `json:"code"`
	Errors  []string         `json:"errors"`
	Context string           `json:"context,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
