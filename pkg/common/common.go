package common

import (
	"encoding/json"
	"strconv"
)

// Position is a canvas coordinate. Vertices persist it as the reserved
// properties "x" and "y".
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset returns the position moved by dx and dy.
func (p Position) Offset(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Blueprint is the type template of an entity as delivered by the plugin
// registry. It is a read-only input: mapping never mutates a blueprint in
// place, it works on copies.
type Blueprint struct {
	Label       string       `json:"label"`
	Color       string       `json:"color,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Description string       `json:"description,omitempty"`
	Elements    []ElementRow `json:"elements"`
}

// Clone returns a deep copy of the blueprint.
func (b Blueprint) Clone() Blueprint {
	out := b
	if b.Elements != nil {
		out.Elements = make([]ElementRow, len(b.Elements))
		for i, row := range b.Elements {
			out.Elements[i] = row.Clone()
		}
	}
	return out
}

// Entity is the UI-facing form of a vertex. The plugin registry answers
// blueprint and transform requests with the same shape.
type Entity struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type,omitempty"`
	Action    string    `json:"action,omitempty"`
	Position  *Position `json:"position,omitempty"`
	ParentID  string    `json:"parentId,omitempty"`
	Transform string    `json:"transform,omitempty"`
	Data      Blueprint `json:"data"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	if e.Position != nil {
		pos := *e.Position
		out.Position = &pos
	}
	out.Data = e.Data.Clone()
	return out
}

// Entity render types.
const (
	EntityView = "view"
	EntityEdit = "edit"
)

// VertexID parses the entity id as a store-assigned vertex id.
func (e Entity) VertexID() (int64, error) {
	return strconv.ParseInt(e.ID, 10, 64)
}

// Properties is the flat scalar property map of a vertex or edge.
type Properties map[string]any

// Clone returns a shallow copy; property values are scalars.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Vertex is a node of an investigation graph as returned by the store.
type Vertex struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties"`
}

// Edge is a directed relation between two vertices.
type Edge struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	StartID    int64      `json:"start_id"`
	EndID      int64      `json:"end_id"`
	Properties Properties `json:"properties"`
}

// EdgeView is the edge form rendered by clients.
type EdgeView struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
	Type         string `json:"type"`
}

// Viewport is the visible canvas area reported by clients on read. It is
// accepted but not used to filter reads yet.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ToFloat converts a decoded scalar to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// IsScalar reports whether v can be stored as a vertex property.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}
