package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/shell/api/openapi"
	"github.com/artpar/jobtemplates/internal/shell/api/resources"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/manyminds/api2go"
)

// readyTimeout bounds the store ping of the readiness probe.
const readyTimeout = 2 * time.Second

// =============================================================================
// API Setup
// =============================================================================

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Registry *registry.Registry
	Store    Pinger
	Logger   *slog.Logger
	Version  string
}

// SetupAPI creates the complete router: the plain job template route, the
// JSON:API resource under /api/v1, health probes and the OpenAPI document.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware(cfg.Logger))

	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ready", readyHandler(cfg.Store)).Methods(http.MethodGet)

	// Every verb reaches the handler so unsupported ones get a structured 405.
	handler := NewHandler(cfg.Registry, cfg.Logger)
	router.Handle(JobTemplatesPath, handler.Routes())

	jsonAPI := api2go.NewAPIWithResolver("v1", api2go.NewStaticResolver("/api"))
	jsonAPI.ContentType = "application/vnd.api+json"
	jsonAPI.AddResource(resources.JobTemplate{}, resources.NewJobTemplateResource(cfg.Registry))

	router.HandleFunc("/openapi.json", newOpenAPIGenerator(cfg.Version).Handler()).Methods(http.MethodGet)

	// api2go expects paths without the /api prefix.
	router.PathPrefix("/api/v1").Handler(http.StripPrefix("/api", jsonAPI.Handler()))

	return router
}

func newOpenAPIGenerator(version string) *openapi.Generator {
	gen := openapi.NewGenerator(
		openapi.WithTitle("Job Templates API"),
		openapi.WithVersion(version),
		openapi.WithDescription("Registry of named job templates"),
		openapi.WithServer("/"),
	)

	gen.RegisterRoute(openapi.RouteInfo{
		Path: JobTemplatesPath,
		Tag:  "JobTemplates",
		Operations: []openapi.RouteOperation{
			{
				Method:      http.MethodGet,
				OperationID: "listJobTemplates",
				Summary:     "List all job templates",
				Response:    []domain.JobTemplate{},
			},
			{
				Method:      http.MethodPost,
				OperationID: "createJobTemplate",
				Summary:     "Create or overwrite a job template",
				Request:     domain.JobTemplateCreate{},
				Response:    domain.BoolResult{},
			},
			{
				Method:      http.MethodPatch,
				OperationID: "updateJobTemplate",
				Summary:     "Replace the body of an existing job template",
				Request:     domain.JobTemplateUpdate{},
				Response:    domain.BoolResult{},
			},
			{
				Method:      http.MethodDelete,
				OperationID: "deleteJobTemplate",
				Summary:     "Delete a job template",
				Request:     domain.JobTemplateDelete{},
				Response:    domain.BoolResult{},
			},
		},
	})

	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "job_templates",
		Model:          resources.JobTemplate{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})

	return gen
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDMiddleware propagates or generates an X-Request-ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns an INTERNAL_ERROR.
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					notOK(w, r, logger, domain.NewError(domain.ErrCodeInternal, "an unexpected error occurred"), "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Health Handlers
// =============================================================================

func healthHandler(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func readyHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				checks["database"] = "failed"
				ok(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
				return
			}
		}

		ok(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
	}
}
