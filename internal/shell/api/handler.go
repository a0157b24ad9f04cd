// Package api provides the HTTP surface of the job template registry.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/core/validation"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// JobTemplatesPath is the single route serving all four registry verbs.
const JobTemplatesPath = "/api/job_templates"

var allowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPatch,
	http.MethodDelete,
}

// =============================================================================
// Handler
// =============================================================================

// Handler dispatches the registry verbs on JobTemplatesPath.
type Handler struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(reg *registry.Registry, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		registry: reg,
		logger:   l,
	}
}

// Routes returns the router for the job template route.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.NoCache)

	r.MethodNotAllowed(h.handleMethodNotAllowed)

	r.Get(JobTemplatesPath, h.handleList)
	r.Post(JobTemplatesPath, h.handleCreate)
	r.Patch(JobTemplatesPath, h.handleUpdate)
	r.Delete(JobTemplatesPath, h.handleDelete)

	return r
}

// =============================================================================
// Job Template Handlers
// =============================================================================

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	templates, err := h.registry.List(r.Context())
	if err != nil {
		notOK(w, r, h.logger, toDomainError(err), ContextList)
		return
	}
	ok(w, http.StatusOK, templates)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	cmd, perr := parseRequest(w, r, func(c domain.JobTemplateCreate) (string, string) {
		return validation.ValidateCreateFields(c.Name, c.Template)
	})
	if perr != nil {
		notOK(w, r, h.logger, perr, ContextCreate)
		return
	}

	result, err := h.registry.Create(r.Context(), cmd)
	if err != nil {
		notOK(w, r, h.logger, toDomainError(err), ContextCreate)
		return
	}
	ok(w, http.StatusOK, result)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	cmd, perr := parseRequest(w, r, func(c domain.JobTemplateUpdate) (string, string) {
		return validation.ValidateUpdateFields(c.Name, c.Template)
	})
	if perr != nil {
		notOK(w, r, h.logger, perr, ContextUpdate)
		return
	}

	result, err := h.registry.Update(r.Context(), cmd)
	if err != nil {
		notOK(w, r, h.logger, toDomainError(err), ContextUpdate)
		return
	}
	ok(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	cmd, perr := parseRequest(w, r, func(c domain.JobTemplateDelete) (string, string) {
		return validation.ValidateDeleteFields(c.Name)
	})
	if perr != nil {
		notOK(w, r, h.logger, perr, ContextDelete)
		return
	}

	result, err := h.registry.Delete(r.Context(), cmd)
	if err != nil {
		notOK(w, r, h.logger, toDomainError(err), ContextDelete)
		return
	}
	ok(w, http.StatusOK, result)
}

// handleMethodNotAllowed answers verbs outside GET/POST/PATCH/DELETE with a
// structured 405 rather than failing the request.
func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	notOK(w, r, h.logger,
		domain.NewError(domain.ErrCodeUnsupportedMethod, "invalid method: "+r.Method),
		"JobTemplate")
}
