package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted template name, in characters.
const MaxNameLength = 256

// =============================================================================
// Field Validation
// =============================================================================

// ValidateName checks a job template name.
// Names must be non-blank, at most MaxNameLength characters and free of
// control characters.
func ValidateName(name string) (field, message string) {
	if strings.TrimSpace(name) == "" {
		return "name", "name is required"
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "name", fmt.Sprintf("name must be at most %d characters", MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "name", "name must not contain control characters"
		}
	}
	return "", ""
}

// ValidateTemplateBody checks that a template body is present and is a JSON object.
// The contents of the object are opaque to the registry.
func ValidateTemplateBody(body json.RawMessage) (field, message string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "template", "template is required"
	}
	if !json.Valid(trimmed) {
		return "template", "template is not valid JSON"
	}
	if trimmed[0] != '{' {
		return "template", "template must be a JSON object"
	}
	return "", ""
}

// =============================================================================
// Request Validation
// =============================================================================

// ValidateCreateFields validates a create request.
func ValidateCreateFields(name string, body json.RawMessage) (field, message string) {
	if field, message = ValidateName(name); field != "" {
		return field, message
	}
	return ValidateTemplateBody(body)
}

// ValidateUpdateFields validates an update request.
func ValidateUpdateFields(name string, body json.RawMessage) (field, message string) {
	return ValidateCreateFields(name, body)
}

// ValidateDeleteFields validates a delete request.
func ValidateDeleteFields(name string) (field, message string) {
	return ValidateName(name)
}
