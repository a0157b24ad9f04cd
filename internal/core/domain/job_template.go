// Package domain contains the core domain types for the job template registry.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"encoding/json"
	"time"
)

// =============================================================================
// JobTemplate
// =============================================================================

// JobTemplate is a named, opaque job definition.
// Name is the storage key and never changes once the template is created.
type JobTemplate struct {
	Name      string          `json:"name"`
	Template  json.RawMessage `json:"template"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewJobTemplate creates a job template stamped with the given time.
func NewJobTemplate(name string, body json.RawMessage, now time.Time) *JobTemplate {
	return &JobTemplate{
		Name:      name,
		Template:  cloneBody(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Replace swaps the template body in place. Name and CreatedAt are kept.
func (t *JobTemplate) Replace(body json.RawMessage, now time.Time) {
	t.Template = cloneBody(body)
	t.UpdatedAt = now
}

func cloneBody(body json.RawMessage) json.RawMessage {
	if body == nil {
		return nil
	}
	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out
}

// =============================================================================
// Commands
// =============================================================================

// JobTemplateCreate is the payload of a create request.
type JobTemplateCreate struct {
	Name     string          `json:"name"`
	Template json.RawMessage `json:"template"`
}

// JobTemplateUpdate is the payload of an update request.
type JobTemplateUpdate struct {
	Name     string          `json:"name"`
	Template json.RawMessage `json:"template"`
}

// JobTemplateDelete is the payload of a delete request.
type JobTemplateDelete struct {
	Name string `json:"name"`
}

// BoolResult is the success envelope returned by the mutating operations.
type BoolResult struct {
	Result bool `json:"result"`
}
