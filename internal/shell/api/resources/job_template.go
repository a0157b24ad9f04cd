// Package resources provides JSON:API resource implementations for the job
// template registry, served through api2go.
package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/core/validation"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/manyminds/api2go"
)

// =============================================================================
// JobTemplate JSON:API Model
// =============================================================================

// JobTemplate wraps domain.JobTemplate to implement JSON:API interfaces.
// The JSON:API id is the template name.
type JobTemplate struct {
	ID        string          `json:"-"`
	Template  json.RawMessage `json:"template"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GetID returns the template name for JSON:API.
func (t JobTemplate) GetID() string {
	return t.ID
}

// SetID sets the template name for JSON:API.
func (t *JobTemplate) SetID(id string) error {
	t.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (t JobTemplate) GetName() string {
	return "job_templates"
}

// JobTemplateFromDomain converts a domain.JobTemplate to a JSON:API JobTemplate.
func JobTemplateFromDomain(t *domain.JobTemplate) JobTemplate {
	return JobTemplate{
		ID:        t.Name,
		Template:  t.Template,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// =============================================================================
// JobTemplateResource - CRUD Operations
// =============================================================================

// JobTemplateResource implements the api2go resource interface on top of the registry.
type JobTemplateResource struct {
	Registry *registry.Registry
}

// NewJobTemplateResource creates a new job template resource handler.
func NewJobTemplateResource(reg *registry.Registry) *JobTemplateResource {
	return &JobTemplateResource{Registry: reg}
}

// FindAll returns all job templates.
// GET /api/v1/job_templates
func (r JobTemplateResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	templates, err := r.Registry.List(requestContext(req))
	if err != nil {
		return responseForError(err)
	}

	result := make([]JobTemplate, 0, len(templates))
	for i := range templates {
		result = append(result, JobTemplateFromDomain(&templates[i]))
	}

	return &Response{
		Code: http.StatusOK,
		Res:  result,
		Meta: map[string]interface{}{
			"total": len(result),
		},
	}, nil
}

// FindOne returns a single job template by name.
// GET /api/v1/job_templates/{name}
func (r JobTemplateResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	templates, err := r.Registry.List(requestContext(req))
	if err != nil {
		return responseForError(err)
	}

	for i := range templates {
		if templates[i].Name == id {
			return &Response{
				Code: http.StatusOK,
				Res:  JobTemplateFromDomain(&templates[i]),
			}, nil
		}
	}

	return &Response{Code: http.StatusNotFound}, newHTTPError(http.StatusNotFound, "JOB_TEMPLATE_NOT_FOUND", "job template not found")
}

// Create registers a job template. An existing template of the same name is overwritten.
// POST /api/v1/job_templates
func (r JobTemplateResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	tmpl, ok := obj.(JobTemplate)
	if !ok {
		return invalidRequest("invalid request body")
	}

	if field, msg := validation.ValidateCreateFields(tmpl.ID, tmpl.Template); field != "" {
		return invalidRequest(msg)
	}

	ctx := requestContext(req)
	if _, err := r.Registry.Create(ctx, domain.JobTemplateCreate{Name: tmpl.ID, Template: tmpl.Template}); err != nil {
		return responseForError(err)
	}

	return r.created(ctx, tmpl.ID)
}

// Update replaces the body of an existing job template.
// PATCH /api/v1/job_templates/{name}
func (r JobTemplateResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	tmpl, ok := obj.(JobTemplate)
	if !ok {
		return invalidRequest("invalid request body")
	}

	if field, msg := validation.ValidateUpdateFields(tmpl.ID, tmpl.Template); field != "" {
		return invalidRequest(msg)
	}

	if _, err := r.Registry.Update(requestContext(req), domain.JobTemplateUpdate{Name: tmpl.ID, Template: tmpl.Template}); err != nil {
		return responseForError(err)
	}

	return r.FindOne(tmpl.ID, req)
}

// Delete removes a job template by name. Deleting a missing name succeeds and
// reports existed=false in the response meta.
// DELETE /api/v1/job_templates/{name}
func (r JobTemplateResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	result, err := r.Registry.Delete(requestContext(req), domain.JobTemplateDelete{Name: id})
	if err != nil {
		return responseForError(err)
	}

	return &Response{
		Code: http.StatusOK,
		Meta: map[string]interface{}{
			"existed": result.Result,
		},
	}, nil
}

func (r JobTemplateResource) created(ctx context.Context, name string) (api2go.Responder, error) {
	templates, err := r.Registry.List(ctx)
	if err != nil {
		return responseForError(err)
	}
	for i := range templates {
		if templates[i].Name == name {
			return &Response{
				Code: http.StatusCreated,
				Res:  JobTemplateFromDomain(&templates[i]),
			}, nil
		}
	}
	// Deleted between the write and the read back.
	return &Response{Code: http.StatusNotFound}, newHTTPError(http.StatusNotFound, "JOB_TEMPLATE_NOT_FOUND", "job template not found")
}

// =============================================================================
// Response Helper
// =============================================================================

// Response implements api2go.Responder for custom responses.
type Response struct {
	Code int
	Res  interface{}
	Meta map[string]interface{}
}

// Metadata returns additional metadata for the response.
func (r *Response) Metadata() map[string]interface{} {
	return r.Meta
}

// Result returns the response data.
func (r *Response) Result() interface{} {
	return r.Res
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.Code
}

// =============================================================================
// Helper Functions
// =============================================================================

func requestContext(req api2go.Request) context.Context {
	if req.PlainRequest != nil {
		return req.PlainRequest.Context()
	}
	return context.Background()
}

func invalidRequest(msg string) (api2go.Responder, error) {
	return &Response{Code: http.StatusBadRequest}, newHTTPError(http.StatusBadRequest, string(domain.ErrCodeInvalidRequest), msg)
}

// responseForError converts a registry error into an api2go error response.
func responseForError(err error) (api2go.Responder, error) {
	derr, ok := domain.AsError(err)
	if !ok {
		derr = domain.NewError(domain.ErrCodeInternal, err.Error())
	}
	status := derr.Code.HTTPStatus()
	return &Response{Code: status}, newHTTPError(status, string(derr.Code), strings.Join(derr.Errors, "; "))
}

func newHTTPError(status int, code, detail string) api2go.HTTPError {
	httpErr := api2go.NewHTTPError(nil, detail, status)
	httpErr.Errors = []api2go.Error{
		{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  http.StatusText(status),
			Detail: detail,
		},
	}
	return httpErr
}
