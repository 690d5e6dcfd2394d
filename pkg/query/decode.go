package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osintbuddy/backend/pkg/common"
)

var typeSuffixes = []string{"::vertex", "::edge", "::path"}

// StripTypeTag removes the agtype suffix AGE appends to vertex, edge and path
// values. Only a trailing suffix is removed, so property text that happens
// to contain "::vertex" survives.
func StripTypeTag(raw string) string {
	s := strings.TrimSpace(raw)
	for _, suffix := range typeSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// Decode parses one returned agtype column into a generic value. Integral
// numbers become int64, all other numbers float64.
func Decode(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(StripTypeTag(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode agtype: %w", err)
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

type element struct {
	ID         json.Number    `json:"id"`
	Label      string         `json:"label"`
	StartID    json.Number    `json:"start_id"`
	EndID      json.Number    `json:"end_id"`
	Properties map[string]any `json:"properties"`
}

func decodeElement(raw string) (element, error) {
	dec := json.NewDecoder(strings.NewReader(StripTypeTag(raw)))
	dec.UseNumber()
	var el element
	if err := dec.Decode(&el); err != nil {
		return el, fmt.Errorf("decode agtype: %w", err)
	}
	props := make(map[string]any, len(el.Properties))
	for k, v := range el.Properties {
		props[k] = normalize(v)
	}
	el.Properties = props
	return el, nil
}

// DecodeVertex parses a vertex column.
func DecodeVertex(raw string) (common.Vertex, error) {
	el, err := decodeElement(raw)
	if err != nil {
		return common.Vertex{}, err
	}
	id, err := el.ID.Int64()
	if err != nil {
		return common.Vertex{}, fmt.Errorf("decode vertex id: %w", err)
	}
	return common.Vertex{ID: id, Label: el.Label, Properties: el.Properties}, nil
}

// DecodeEdge parses an edge column.
func DecodeEdge(raw string) (common.Edge, error) {
	el, err := decodeElement(raw)
	if err != nil {
		return common.Edge{}, err
	}
	var ids [3]int64
	for i, n := range []json.Number{el.ID, el.StartID, el.EndID} {
		v, err := n.Int64()
		if err != nil {
			return common.Edge{}, fmt.Errorf("decode edge ids: %w", err)
		}
		ids[i] = v
	}
	return common.Edge{
		ID:         ids[0],
		Label:      el.Label,
		StartID:    ids[1],
		EndID:      ids[2],
		Properties: el.Properties,
	}, nil
}
