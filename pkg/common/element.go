package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ElementEmpty is a pure UI separator. It never carries data.
const ElementEmpty = "empty"

// Element is one labeled data field of an entity. Fields other than the
// well-known ones (title, subtitle, text, placeholder, style ...) are kept in
// Extra so they survive a decode/encode cycle.
type Element struct {
	Type    string          `json:"type"`
	Label   string          `json:"label"`
	Value   any             `json:"value,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
	Icon    json.RawMessage `json:"icon,omitempty"`
	Extra   map[string]any  `json:"-"`
}

var knownElementKeys = map[string]struct{}{
	"type":    {},
	"label":   {},
	"value":   {},
	"options": {},
	"icon":    {},
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Element{}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &e.Type); err != nil {
			return fmt.Errorf("element type: %w", err)
		}
	}
	if v, ok := raw["label"]; ok {
		if err := json.Unmarshal(v, &e.Label); err != nil {
			return fmt.Errorf("element label: %w", err)
		}
	}
	if v, ok := raw["value"]; ok {
		if err := json.Unmarshal(v, &e.Value); err != nil {
			return fmt.Errorf("element value: %w", err)
		}
	}
	if v, ok := raw["options"]; ok && !isJSONNull(v) {
		e.Options = append(json.RawMessage(nil), v...)
	}
	if v, ok := raw["icon"]; ok && !isJSONNull(v) {
		e.Icon = append(json.RawMessage(nil), v...)
	}

	for k, v := range raw {
		if _, known := knownElementKeys[k]; known {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("element field %q: %w", k, err)
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = val
	}
	return nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+5)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["type"] = e.Type
	out["label"] = e.Label
	if e.Value != nil {
		out["value"] = e.Value
	}
	if len(e.Options) > 0 {
		out["options"] = e.Options
	}
	if len(e.Icon) > 0 {
		out["icon"] = e.Icon
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	if e.Options != nil {
		out.Options = append(json.RawMessage(nil), e.Options...)
	}
	if e.Icon != nil {
		out.Icon = append(json.RawMessage(nil), e.Icon...)
	}
	if e.Extra != nil {
		out.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ElementRow is one row of an entity layout: either a single element or a
// group of elements rendered together. On the wire a group is a JSON array.
type ElementRow struct {
	Element *Element
	Group   []Element
}

// Single wraps an element as a row.
func Single(e Element) ElementRow {
	return ElementRow{Element: &e}
}

// Group wraps elements as a grouped row.
func Group(elements ...Element) ElementRow {
	if elements == nil {
		elements = []Element{}
	}
	return ElementRow{Group: elements}
}

// IsGroup reports whether the row is a group.
func (r ElementRow) IsGroup() bool {
	return r.Group != nil
}

// Elements returns the row's elements in order. Mutating the returned
// slice mutates a group row.
func (r ElementRow) Elements() []Element {
	if r.IsGroup() {
		return r.Group
	}
	if r.Element == nil {
		return nil
	}
	return []Element{*r.Element}
}

// Clone returns a deep copy of the row.
func (r ElementRow) Clone() ElementRow {
	if r.IsGroup() {
		group := make([]Element, len(r.Group))
		for i, e := range r.Group {
			group[i] = e.Clone()
		}
		return ElementRow{Group: group}
	}
	if r.Element == nil {
		return ElementRow{}
	}
	e := r.Element.Clone()
	return ElementRow{Element: &e}
}

func (r *ElementRow) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		group := []Element{}
		if err := json.Unmarshal(trimmed, &group); err != nil {
			return err
		}
		*r = ElementRow{Group: group}
		return nil
	}
	var e Element
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return err
	}
	*r = ElementRow{Element: &e}
	return nil
}

func (r ElementRow) MarshalJSON() ([]byte, error) {
	if r.IsGroup() {
		return json.Marshal(r.Group)
	}
	if r.Element == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*r.Element)
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
