// Package normalize converts an encoded request body into one canonical,
// encoding-agnostic document. Validation never sees the original encoding.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"

	"servergate/pkg/api/faults"
)

const (
	// ContentTypeJSON selects the structured-object decoder.
	ContentTypeJSON = "application/json"
	// ContentTypeXML selects the XML decoder.
	ContentTypeXML = "application/xml"
)

// Document is the canonical form of a request body: recognized top-level
// keys mapped to values of encoding-independent shapes (string, bool,
// map[string]any, []any).
type Document map[string]any

// DecodeBody decodes a request body according to the declared content
// type. Both decoders produce the same key set and value shapes for
// equivalent requests. An empty body or a body without a top-level
// document is rejected; a missing container entity is not, it surfaces
// when the entity is read.
func DecodeBody(contentType string, body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, faults.Unprocessable()
	}

	if isXML(contentType) {
		return decodeXML(body)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, faults.BadRequest("Malformed request body")
	}

	return doc, nil
}

func isXML(contentType string) bool {
	mime := contentType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	return strings.TrimSpace(mime) == ContentTypeXML
}

// Entity returns the named container object from the document. A missing
// or non-object container is an unprocessable-entity failure, reported at
// the point of the read.
func (d Document) Entity(name string) (map[string]any, error) {
	raw, ok := d[name]
	if !ok {
		return nil, faults.Unprocessable()
	}

	entity, ok := raw.(map[string]any)
	if !ok {
		return nil, faults.Unprocessable()
	}

	return entity, nil
}

// BoolFromString interprets the loose boolean encoding accepted on the
// wire ("true", "1", "yes", any case).
func BoolFromString(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
