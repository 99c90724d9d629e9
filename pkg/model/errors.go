package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// SchemaReason classifies why a document failed schema validation.
type SchemaReason string

const (
	ReasonNullDocument SchemaReason = "null_document"
	ReasonNotObject    SchemaReason = "not_object"
	ReasonMissing      SchemaReason = "missing"
	ReasonWrongKind    SchemaReason = "wrong_kind"
	ReasonUnknownKind  SchemaReason = "unknown_kind"
)

// SchemaError is returned when a JSON document does not satisfy a model's schema.
type SchemaError struct {
	Type    string       `json:"type"`
	Field   string       `json:"field,omitempty"`
	Reason  SchemaReason `json:"reason"`
	Message string       `json:"message"`
}

func (e *SchemaError) Error() string {
	return e.Message
}

// Redacted returns a copy whose message names only the field and reason. Use it
// before handing an error about a credential document to a log or a caller.
func (e *SchemaError) Redacted() *SchemaError {
	out := &SchemaError{Type: e.Type, Field: e.Field, Reason: e.Reason}
	if e.Field == "" {
		out.Message = fmt.Sprintf("%s rejected: %s", e.Type, e.Reason)
	} else {
		out.Message = fmt.Sprintf("%s rejected: field `%s` is %s", e.Type, e.Field, e.Reason)
	}
	return out
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func nullDocumentError(typ string, required []string) *SchemaError {
	return &SchemaError{
		Type:    typ,
		Reason:  ReasonNullDocument,
		Message: fmt.Sprintf("the required field(s) [%s] in %s are not found in the empty JSON document", strings.Join(required, ", "), typ),
	}
}

func notObjectError(typ string, doc []byte) *SchemaError {
	return &SchemaError{
		Type:    typ,
		Reason:  ReasonNotObject,
		Message: fmt.Sprintf("expected a JSON object for %s but got `%s`", typ, abbreviate(doc)),
	}
}

func missingFieldError(typ, field string, doc []byte) *SchemaError {
	return &SchemaError{
		Type:    typ,
		Field:   field,
		Reason:  ReasonMissing,
		Message: fmt.Sprintf("the required field `%s` is not found in the JSON document: %s", field, abbreviate(doc)),
	}
}

func wrongKindError(typ, field string, raw []byte) *SchemaError {
	return &SchemaError{
		Type:    typ,
		Field:   field,
		Reason:  ReasonWrongKind,
		Message: fmt.Sprintf("expected the field `%s` to be a primitive type in the JSON document but got `%s`", field, abbreviate(raw)),
	}
}

func unknownKindError(typ, field string, raw []byte) *SchemaError {
	return &SchemaError{
		Type:    typ,
		Field:   field,
		Reason:  ReasonUnknownKind,
		Message: fmt.Sprintf("the field `%s` has unknown value kind. Value: %s", field, abbreviate(raw)),
	}
}

// abbreviate keeps error messages bounded when a caller posts a large document.
func abbreviate(raw []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}

// APIError is the error body returned by the lakeFS API together with the HTTP status.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lakefs returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a lakeFS 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}
