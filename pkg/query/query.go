// Package query builds the openCypher statements the graph store runs through
// Apache AGE's cypher() function and decodes the agtype values it returns.
//
// Every value that reaches a statement goes through Literal, and every graph
// name through ValidateGraphName, so callers never interpolate by hand.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Op identifies the kind of statement.
type Op int

const (
	OpCreateVertex Op = iota + 1
	OpMatchAllVertices
	OpMatchAllEdges
	OpMatchByID
	OpSetProperty
	OpDeleteVertex
	OpDetachDeleteVertex
	OpMatchOutEdges
	OpMatchInEdges
	OpCreateEdgeWithTarget
)

func (o Op) String() string {
	switch o {
	case OpCreateVertex:
		return "create-vertex"
	case OpMatchAllVertices:
		return "match-all-vertices"
	case OpMatchAllEdges:
		return "match-all-edges"
	case OpMatchByID:
		return "match-by-id"
	case OpSetProperty:
		return "set-property"
	case OpDeleteVertex:
		return "delete-vertex"
	case OpDetachDeleteVertex:
		return "detach-delete-vertex"
	case OpMatchOutEdges:
		return "match-out-edges"
	case OpMatchInEdges:
		return "match-in-edges"
	case OpCreateEdgeWithTarget:
		return "create-edge-with-target"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// EdgeTransformed is the label of every edge created by a transform.
const EdgeTransformed = "transformed"

// Statement is one cypher() call against a single investigation graph.
type Statement struct {
	Op      Op
	Graph   string
	Cypher  string
	Columns []string
}

// Returns reports whether the statement yields rows worth scanning.
func (s Statement) Returns() bool {
	switch s.Op {
	case OpSetProperty, OpDeleteVertex, OpDetachDeleteVertex:
		return false
	default:
		return true
	}
}

// SQL renders the statement as the SQL text sent to Postgres. The cypher
// body is dollar-quoted with a tag that does not occur inside it.
func (s Statement) SQL() (string, error) {
	if err := ValidateGraphName(s.Graph); err != nil {
		return "", err
	}
	cols := s.Columns
	if len(cols) == 0 {
		cols = []string{"v"}
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " agtype"
	}
	tag := dollarTag(s.Cypher)
	return fmt.Sprintf("SELECT * FROM cypher('%s', %s %s %s) AS (%s)",
		s.Graph, tag, s.Cypher, tag, strings.Join(defs, ", ")), nil
}

func (s Statement) String() string {
	return s.Op.String() + " on " + s.Graph + ": " + s.Cypher
}

func dollarTag(body string) string {
	tag := "$q$"
	for i := 1; strings.Contains(body, tag); i++ {
		tag = "$q" + strconv.Itoa(i) + "$"
	}
	return tag
}

var graphNamePattern = regexp.MustCompile(`^g_[0-9a-f]{32}$`)

// GraphName returns the AGE graph name of an investigation.
func GraphName(id uuid.UUID) string {
	return "g_" + strings.ReplaceAll(id.String(), "-", "")
}

// ValidateGraphName rejects anything GraphName could not have produced.
func ValidateGraphName(name string) error {
	if !graphNamePattern.MatchString(name) {
		return fmt.Errorf("invalid graph name %q", name)
	}
	return nil
}

func CreateVertex(graph, label string, props map[string]any) (Statement, error) {
	l, err := Identifier(label)
	if err != nil {
		return Statement{}, err
	}
	m, err := MapLiteral(props)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Op:      OpCreateVertex,
		Graph:   graph,
		Cypher:  fmt.Sprintf("CREATE (v:%s %s) RETURN v", l, m),
		Columns: []string{"v"},
	}, nil
}

func MatchAllVertices(graph string) Statement {
	return Statement{
		Op:      OpMatchAllVertices,
		Graph:   graph,
		Cypher:  "MATCH (v) RETURN v",
		Columns: []string{"v"},
	}
}

func MatchAllEdges(graph string) Statement {
	return Statement{
		Op:      OpMatchAllEdges,
		Graph:   graph,
		Cypher:  "MATCH ()-[e]->() RETURN e",
		Columns: []string{"e"},
	}
}

func MatchByID(graph string, id int64) Statement {
	return Statement{
		Op:      OpMatchByID,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH (v) WHERE id(v) = %d RETURN v", id),
		Columns: []string{"v"},
	}
}

func SetProperty(graph string, id int64, key string, value any) (Statement, error) {
	k, err := Identifier(key)
	if err != nil {
		return Statement{}, err
	}
	lit, err := Literal(value)
	if err != nil {
		return Statement{}, fmt.Errorf("property %s: %w", key, err)
	}
	return Statement{
		Op:      OpSetProperty,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH (v) WHERE id(v) = %d SET v.%s = %s", id, k, lit),
		Columns: []string{"v"},
	}, nil
}

func DeleteVertex(graph string, id int64) Statement {
	return Statement{
		Op:      OpDeleteVertex,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH (v) WHERE id(v) = %d DELETE v", id),
		Columns: []string{"v"},
	}
}

func DetachDeleteVertex(graph string, id int64) Statement {
	return Statement{
		Op:      OpDetachDeleteVertex,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH (v) WHERE id(v) = %d DETACH DELETE v", id),
		Columns: []string{"v"},
	}
}

func MatchOutEdges(graph string, id int64) Statement {
	return Statement{
		Op:      OpMatchOutEdges,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH (v)-[e]->() WHERE id(v) = %d RETURN e", id),
		Columns: []string{"e"},
	}
}

func MatchInEdges(graph string, id int64) Statement {
	return Statement{
		Op:      OpMatchInEdges,
		Graph:   graph,
		Cypher:  fmt.Sprintf("MATCH ()-[e]->(v) WHERE id(v) = %d RETURN e", id),
		Columns: []string{"e"},
	}
}

// CreateEdgeWithTarget creates a vertex and a transformed edge pointing at it
// from the source vertex in one statement.
func CreateEdgeWithTarget(graph string, sourceID int64, ctime float64, label string, props map[string]any) (Statement, error) {
	l, err := Identifier(label)
	if err != nil {
		return Statement{}, err
	}
	edgeProps, err := MapLiteral(map[string]any{"ctime": ctime})
	if err != nil {
		return Statement{}, err
	}
	m, err := MapLiteral(props)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Op:    OpCreateEdgeWithTarget,
		Graph: graph,
		Cypher: fmt.Sprintf("MATCH (s) WHERE id(s) = %d CREATE (s)-[e:%s %s]->(v:%s %s) RETURN e, v",
			sourceID, EdgeTransformed, edgeProps, l, m),
		Columns: []string{"e", "v"},
	}, nil
}
