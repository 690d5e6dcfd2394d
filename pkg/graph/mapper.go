// Package graph maps entities to vertex properties and back.
package graph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/common"
)

// Reserved vertex properties holding the canvas position.
const (
	PropX = "x"
	PropY = "y"
)

// Separator joins an element key and a sub-field name for multi-valued
// elements. ToSnakeCase never produces it, so keys split unambiguously.
const Separator = "__"

// Edge render hints understood by the canvas.
const (
	SourceHandle = "r1"
	TargetHandle = "l2"
	EdgeType     = "float"
)

// VertexLabel is the vertex label used for entities of the given type.
func VertexLabel(label string) string {
	return util.ToSnakeCase(label)
}

// ElementKey is the property key of an element label. Labels that would
// collide with the position properties are prefixed.
func ElementKey(label string) string {
	key := util.ToSnakeCase(label)
	if key == PropX || key == PropY {
		return "el_" + key
	}
	return key
}

func subKey(key, sub string) string {
	return key + Separator + util.ToSnakeCase(sub)
}

// ToProperties flattens the blueprint's element values into a property map
// that also carries the position. Decoration (icon, options) and non-scalar
// sub-fields are not persisted; they are kept in the returned copy of the
// blueprint.
func ToProperties(bp common.Blueprint, pos common.Position) (common.Properties, common.Blueprint) {
	out := bp.Clone()
	props := common.Properties{
		PropX: pos.X,
		PropY: pos.Y,
	}

	for _, row := range out.Elements {
		for _, el := range row.Elements() {
			addElement(props, el)
		}
	}
	return props, out
}

func addElement(props common.Properties, el common.Element) {
	if el.Type == common.ElementEmpty {
		return
	}
	key := ElementKey(el.Label)
	if key == "" {
		return
	}
	if el.Value != nil {
		if common.IsScalar(el.Value) {
			props[key] = el.Value
		}
		return
	}
	for sub, v := range el.Extra {
		if !common.IsScalar(v) || util.ToSnakeCase(sub) == "" {
			continue
		}
		props[subKey(key, sub)] = v
	}
}

// FromVertex rebuilds the entity of a vertex from its blueprint. Elements
// without a stored value are left unset. The result depends only on the
// vertex and the template.
func FromVertex(v common.Vertex, template common.Blueprint) common.Entity {
	props := v.Properties.Clone()
	pos := popPosition(props)

	data := template.Clone()
	for i := range data.Elements {
		row := &data.Elements[i]
		if row.IsGroup() {
			for j := range row.Group {
				fillElement(&row.Group[j], props)
			}
		} else if row.Element != nil {
			fillElement(row.Element, props)
		}
	}

	return common.Entity{
		ID:       strconv.FormatInt(v.ID, 10),
		Type:     common.EntityView,
		Position: &pos,
		Data:     data,
	}
}

func popPosition(props common.Properties) common.Position {
	var pos common.Position
	if x, ok := common.ToFloat(props[PropX]); ok {
		pos.X = x
	}
	if y, ok := common.ToFloat(props[PropY]); ok {
		pos.Y = y
	}
	delete(props, PropX)
	delete(props, PropY)
	return pos
}

func fillElement(el *common.Element, props common.Properties) {
	if el.Type == common.ElementEmpty {
		return
	}
	key := ElementKey(el.Label)
	if key == "" {
		return
	}
	if val, ok := props[key]; ok {
		el.Value = val
		delete(props, key)
		return
	}
	el.Value = nil

	// template sub-fields first, in key order, then stored leftovers
	subs := make([]string, 0, len(el.Extra))
	for sub := range el.Extra {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	for _, sub := range subs {
		k := subKey(key, sub)
		if val, ok := props[k]; ok {
			el.Extra[sub] = val
			delete(props, k)
		}
	}

	prefix := key + Separator
	var leftovers []string
	for k := range props {
		if strings.HasPrefix(k, prefix) {
			leftovers = append(leftovers, k)
		}
	}
	sort.Strings(leftovers)
	for _, k := range leftovers {
		if el.Extra == nil {
			el.Extra = make(map[string]any)
		}
		sub := strings.TrimPrefix(k, prefix)
		if _, taken := el.Extra[sub]; !taken {
			el.Extra[sub] = props[k]
		}
		delete(props, k)
	}
}

// EdgeView renders an edge for the canvas.
func EdgeView(e common.Edge) common.EdgeView {
	return common.EdgeView{
		ID:           strconv.FormatInt(e.ID, 10),
		Source:       strconv.FormatInt(e.StartID, 10),
		Target:       strconv.FormatInt(e.EndID, 10),
		SourceHandle: SourceHandle,
		TargetHandle: TargetHandle,
		Type:         EdgeType,
	}
}

// Fallback renders a vertex whose blueprint is unknown. Every stored
// property becomes a read-only text element.
func Fallback(v common.Vertex) common.Entity {
	props := v.Properties.Clone()
	pos := popPosition(props)

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]common.ElementRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, common.Single(common.Element{
			Type:  "copy-text",
			Label: k,
			Value: props[k],
		}))
	}

	return common.Entity{
		ID:       strconv.FormatInt(v.ID, 10),
		Type:     common.EntityView,
		Position: &pos,
		Data: common.Blueprint{
			Label:    v.Label,
			Elements: rows,
		},
	}
}

// Created renders a freshly created vertex as an editable entity. data is
// the decorated blueprint returned by ToProperties.
func Created(id int64, data common.Blueprint, pos common.Position, parentID string) common.Entity {
	return common.Entity{
		ID:       strconv.FormatInt(id, 10),
		Type:     common.EntityEdit,
		Action:   "createEntity",
		Position: &pos,
		ParentID: parentID,
		Data:     data,
	}
}
