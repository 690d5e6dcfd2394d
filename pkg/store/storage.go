package store

import (
	"context"

	"github.com/osintbuddy/backend/pkg/common"
)

// GraphStorage persists investigation graphs. Every method runs in its own
// transaction against the named graph and reads nothing from memory: the
// store is the single source of truth.
type GraphStorage interface {
	CreateGraph(ctx context.Context, graph string) error
	DropGraph(ctx context.Context, graph string) error

	ReadGraph(ctx context.Context, graph string) ([]common.Vertex, []common.Edge, error)
	GetVertex(ctx context.Context, graph string, id int64) (common.Vertex, error)
	VertexExists(ctx context.Context, graph string, id int64) (bool, error)

	CreateVertex(ctx context.Context, graph, label string, props common.Properties) (common.Vertex, error)
	SetProperties(ctx context.Context, graph string, id int64, props common.Properties) error
	// RemoveVertex deletes the vertex and, when it has edges, the edges with
	// it. It returns the number of edges removed.
	RemoveVertex(ctx context.Context, graph string, id int64) (int, error)

	// CreateTransformedVertex creates a vertex and a transformed edge from
	// the source vertex to it.
	CreateTransformedVertex(ctx context.Context, graph string, sourceID int64, label string, props common.Properties) (common.Vertex, common.Edge, error)
}
