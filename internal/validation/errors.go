package validation

import (
	"fmt"
	"strings"
)

// Code identifies the kind of validation failure. Codes are stable and are
// rendered to API clients as the JSON:API error "code".
type Code string

const (
	InvalidFormat            Code = "invalid_format"
	WrongGeometryType        Code = "wrong_geometry_type"
	TooFewVertices           Code = "too_few_vertices"
	AreaOutOfRange           Code = "area_out_of_range"
	PayloadTooLarge          Code = "payload_too_large"
	GeoidCountOutOfRange     Code = "geoid_count_out_of_range"
	MissingRequiredField     Code = "missing_required_field"
	ReferenceDataUnavailable Code = "reference_data_unavailable"
	UnknownReference         Code = "unknown_reference"
)

// FieldError is a single failed rule on a single attribute.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every failed rule of a validation pass so callers can
// report all problems at once.
type Errors []FieldError

// Add appends a failure for field.
func (e *Errors) Add(field string, code Code, format string, args ...interface{}) {
	*e = append(*e, FieldError{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// Has reports whether any collected failure carries code.
func (e Errors) Has(code Code) bool {
	for _, fe := range e {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// On returns the failures recorded against field.
func (e Errors) On(field string) Errors {
	var out Errors
	for _, fe := range e {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Err returns nil when nothing failed, so a pass can end with `return errs.Err()`.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
