// Package graphing implements the graph operations behind the realtime
// session and the HTTP API.
package graphing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"
	"github.com/osintbuddy/backend/pkg/graph"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/plugins"
	"github.com/osintbuddy/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

// SpawnOffset places transform results next to their source.
const SpawnOffset = 50.0

type Service struct {
	store    store.GraphStorage
	registry plugins.Registry
}

func NewService(s store.GraphStorage, r plugins.Registry) *Service {
	return &Service{store: s, registry: r}
}

// GraphView is every node and edge of a graph in canvas form.
type GraphView struct {
	Nodes []common.Entity   `json:"nodes"`
	Edges []common.EdgeView `json:"edges"`
}

// ReadGraph loads the graph and renders every vertex with its blueprint.
// Vertices without a known blueprint are rendered with graph.Fallback, which
// is also used for all vertices when the registry cannot be reached.
func (s *Service) ReadGraph(ctx context.Context, graphName string) (GraphView, error) {
	var (
		blueprints map[string]common.Entity
		vertices   []common.Vertex
		edges      []common.Edge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bps, err := s.registry.Blueprints(gctx)
		if err != nil {
			logger.Warn("[Graphing] Blueprints unavailable, using fallback entities", "graph", graphName, "err", err)
			return nil
		}
		blueprints = bps
		return nil
	})
	g.Go(func() error {
		var err error
		vertices, edges, err = s.store.ReadGraph(gctx, graphName)
		return err
	})
	if err := g.Wait(); err != nil {
		return GraphView{}, err
	}

	view := GraphView{
		Nodes: make([]common.Entity, 0, len(vertices)),
		Edges: make([]common.EdgeView, 0, len(edges)),
	}
	for _, v := range vertices {
		bp, ok := blueprints[v.Label]
		if !ok {
			view.Nodes = append(view.Nodes, graph.Fallback(v))
			continue
		}
		view.Nodes = append(view.Nodes, graph.FromVertex(v, bp.Data))
	}
	for _, e := range edges {
		view.Edges = append(view.Edges, graph.EdgeView(e))
	}
	return view, nil
}

// NodeID reads the vertex id of a realtime node payload.
func NodeID(node map[string]any) (int64, error) {
	raw, ok := node["id"]
	if !ok || raw == nil {
		return 0, apperror.ErrProtocol.WithMessage("node id is required")
	}
	var (
		id  int64
		err error
	)
	switch v := raw.(type) {
	case string:
		id, err = strconv.ParseInt(v, 10, 64)
	case json.Number:
		id, err = v.Int64()
	case float64:
		if v != float64(int64(v)) {
			err = fmt.Errorf("non-integral id %v", v)
		}
		id = int64(v)
	default:
		err = fmt.Errorf("unsupported id type %T", raw)
	}
	if err != nil {
		return 0, apperror.ErrProtocol.WithInternal(err)
	}
	return id, nil
}

// UpdateNode writes every field of the node payload except id to the
// vertex, in one transaction. A position object updates x and y; other
// non-scalar fields are skipped.
func (s *Service) UpdateNode(ctx context.Context, graphName string, node map[string]any) error {
	id, err := NodeID(node)
	if err != nil {
		return err
	}

	props := common.Properties{}
	for k, v := range node {
		if k == "id" {
			continue
		}
		if k == "position" {
			if pos, ok := v.(map[string]any); ok {
				if x, ok := common.ToFloat(pos["x"]); ok {
					props[graph.PropX] = x
				}
				if y, ok := common.ToFloat(pos["y"]); ok {
					props[graph.PropY] = y
				}
				continue
			}
		}
		if !common.IsScalar(v) {
			logger.Debug("[Graphing] Skipping non-scalar field", "graph", graphName, "field", k)
			continue
		}
		if k == graph.PropX || k == graph.PropY {
			if f, ok := common.ToFloat(v); ok {
				props[k] = f
			}
			continue
		}
		// element values are stored under the same keys the mapper writes
		key := graph.ElementKey(k)
		if key == "" {
			continue
		}
		props[key] = v
	}
	if len(props) == 0 {
		return nil
	}
	return s.store.SetProperties(ctx, graphName, id, props)
}

// RemoveNode deletes the node's vertex together with its edges.
func (s *Service) RemoveNode(ctx context.Context, graphName string, node map[string]any) error {
	id, err := NodeID(node)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveVertex(ctx, graphName, id)
	if err != nil {
		return err
	}
	logger.Debug("[Graphing] Removed vertex", "graph", graphName, "id", id, "edges", removed)
	return nil
}

// CreateEntity creates a vertex for a blueprint dropped on the canvas.
func (s *Service) CreateEntity(ctx context.Context, graphName, label string, pos common.Position) (common.Entity, error) {
	bp, err := s.registry.Blueprint(ctx, label)
	if err != nil {
		return common.Entity{}, err
	}
	props, data := graph.ToProperties(bp.Data, pos)
	v, err := s.store.CreateVertex(ctx, graphName, graph.VertexLabel(data.Label), props)
	if err != nil {
		return common.Entity{}, err
	}
	return graph.Created(v.ID, data, pos, ""), nil
}

// Ingest stores one transform result as a new vertex linked from the source
// by a transformed edge.
func (s *Service) Ingest(ctx context.Context, graphName string, result, source common.Entity) (common.Entity, error) {
	sourceID, err := source.VertexID()
	if err != nil {
		return common.Entity{}, apperror.NewBadRequest("source entity id is invalid").WithInternal(err)
	}
	var pos common.Position
	if source.Position != nil {
		pos = *source.Position
	}
	spawn := pos.Offset(SpawnOffset, SpawnOffset)

	props, data := graph.ToProperties(result.Data, spawn)
	v, _, err := s.store.CreateTransformedVertex(ctx, graphName, sourceID, graph.VertexLabel(data.Label), props)
	if err != nil {
		return common.Entity{}, err
	}
	return graph.Created(v.ID, data, spawn, source.ID), nil
}

// RunTransform runs the source's transform and ingests every result in its
// own transaction. The first failure stops the batch; the results ingested
// before it are returned with the error.
func (s *Service) RunTransform(ctx context.Context, graphName string, source common.Entity) ([]common.Entity, error) {
	results, err := s.registry.RunTransform(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, plugins.ErrNoResults
	}

	ingested := make([]common.Entity, 0, len(results))
	for i, result := range results {
		entity, err := s.Ingest(ctx, graphName, result, source)
		if err != nil {
			logger.Error("[Graphing] Transform batch aborted", "graph", graphName, "transform", source.Transform, "ingested", i, "total", len(results), "err", err)
			return ingested, err
		}
		ingested = append(ingested, entity)
	}
	return ingested, nil
}

// TransformNotification is the status line shown after a transform.
func TransformNotification(transform string, count int) string {
	switch {
	case count == 0:
		return fmt.Sprintf("Transform %s found no results!", transform)
	case count == 1:
		return fmt.Sprintf("Transform %s returned 1 entity!", transform)
	default:
		return fmt.Sprintf("Transform %s returned %d entities!", transform, count)
	}
}

// LabelStats counts the vertices of one label and the edges leaving them.
type LabelStats struct {
	Label    string `json:"label"`
	Entities int    `json:"entities"`
	OutEdges int    `json:"out_edges"`
}

type Stats struct {
	Entities  int          `json:"entities_count"`
	Relations int          `json:"relations_count"`
	Labels    []LabelStats `json:"labels"`
}

// Stats summarizes the graph by vertex label.
func (s *Service) Stats(ctx context.Context, graphName string) (Stats, error) {
	vertices, edges, err := s.store.ReadGraph(ctx, graphName)
	if err != nil {
		return Stats{}, err
	}

	labelOf := make(map[int64]string, len(vertices))
	byLabel := map[string]*LabelStats{}
	for _, v := range vertices {
		labelOf[v.ID] = v.Label
		ls, ok := byLabel[v.Label]
		if !ok {
			ls = &LabelStats{Label: v.Label}
			byLabel[v.Label] = ls
		}
		ls.Entities++
	}
	for _, e := range edges {
		if ls, ok := byLabel[labelOf[e.StartID]]; ok {
			ls.OutEdges++
		}
	}

	out := Stats{
		Entities:  len(vertices),
		Relations: len(edges),
		Labels:    make([]LabelStats, 0, len(byLabel)),
	}
	for _, ls := range byLabel {
		out.Labels = append(out.Labels, *ls)
	}
	sort.Slice(out.Labels, func(i, j int) bool {
		if out.Labels[i].Entities != out.Labels[j].Entities {
			return out.Labels[i].Entities > out.Labels[j].Entities
		}
		return out.Labels[i].Label < out.Labels[j].Label
	})
	return out, nil
}
