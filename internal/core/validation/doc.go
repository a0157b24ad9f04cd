// Package validation provides pure validation functions for job template requests.
//
// All functions are pure (no I/O, no side effects). They report the first
// offending field and a human-readable message, or two empty strings when the
// input is acceptable.
//
// # Functions
//
//   - ValidateName: Check a template name
//   - ValidateTemplateBody: Check a template body is a JSON object
//   - ValidateCreateFields / ValidateUpdateFields / ValidateDeleteFields:
//     Validate a whole request payload
//
// # Usage
//
//	if field, msg := validation.ValidateCreateFields(cmd.Name, cmd.Template); field != "" {
//	    // Return INVALID_REQUEST with msg
//	}
package validation
