package store

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Document is a JSON object as stored. Numbers decode as float64.
type Document map[string]any

// fieldPattern restricts query fields to identifiers safe to splice into
// JSON path expressions.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Encode converts a struct (or map) into a Document using its JSON tags.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return doc, nil
}

// Decode fills v from doc using v's JSON tags.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// String returns the field as a string, or "" if absent or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string) //nolint:errcheck // type assertion, zero value on mismatch
	return s
}

// merge applies partial to a copy of existing. nil values delete fields.
func merge(existing, partial Document) Document {
	out := make(Document, len(existing)+len(partial))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range partial {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func marshalDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling document: %w", err)
	}
	return data, nil
}

func unmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling document: %w", err)
	}
	return doc, nil
}

// normalize round-trips doc through JSON so callers never share maps with
// the store and numbers have one representation.
func normalize(doc Document) (Document, error) {
	data, err := marshalDocument(doc)
	if err != nil {
		return nil, err
	}
	return unmarshalDocument(data)
}

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}
