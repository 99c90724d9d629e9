package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema validates raw JSON documents for one model type and reports
// failures as *SchemaError.
type documentSchema struct {
	typ      string
	required []string
	schema   *gojsonschema.Schema
}

func mustCompileSchema(typ string, required []string, source string) *documentSchema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("model: invalid JSON schema for %s: %v", typ, err))
	}
	return &documentSchema{typ: typ, required: required, schema: schema}
}

// validate checks doc against the schema. Empty input and the literal null are
// treated as the null document.
func (s *documentSchema) validate(doc []byte) error {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nullDocumentError(s.typ, s.required)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.typ, err)
	}
	if result.Valid() {
		return nil
	}
	return s.explain(trimmed, result.Errors())
}

// explain turns schema results into a single SchemaError. Required fields are
// reported in declaration order so the same document always yields the same error.
func (s *documentSchema) explain(doc []byte, results []gojsonschema.ResultError) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return notObjectError(s.typ, doc)
	}

	for _, name := range s.required {
		raw, ok := fields[name]
		if !ok {
			return missingFieldError(s.typ, name, doc)
		}
		if !isPrimitive(raw) {
			return wrongKindError(s.typ, name, raw)
		}
	}

	first := results[0]
	return &SchemaError{
		Type:    s.typ,
		Field:   first.Field(),
		Reason:  ReasonWrongKind,
		Message: fmt.Sprintf("%s does not match its schema: %s", s.typ, first.String()),
	}
}

// isPrimitive reports whether raw is a JSON string, number or boolean.
func isPrimitive(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	switch trimmed[0] {
	case '{', '[':
		return false
	}
	return true
}

// scalarText reads a primitive field as text: strings as-is, numbers by literal,
// booleans as true/false.
func scalarText(typ, field string, raw json.RawMessage) (string, error) {
	v, err := decodeValue(typ, field, raw)
	if err != nil {
		return "", err
	}
	switch v.Kind() {
	case KindString, KindNumber:
		return v.text, nil
	case KindBool:
		return fmt.Sprint(v.b), nil
	default:
		return "", wrongKindError(typ, field, raw)
	}
}
