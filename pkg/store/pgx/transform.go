package pgx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"
	"github.com/osintbuddy/backend/pkg/query"
)

// now is replaced in tests.
var now = time.Now

func (s *GraphDBStorage) CreateTransformedVertex(
	ctx context.Context,
	graph string,
	sourceID int64,
	label string,
	props common.Properties,
) (common.Vertex, common.Edge, error) {
	ctime := float64(now().UnixMicro()) / 1e6
	stmt, err := query.CreateEdgeWithTarget(graph, sourceID, ctime, label, props)
	if err != nil {
		return common.Vertex{}, common.Edge{}, apperror.ErrBadRequest.WithInternal(err)
	}

	var (
		vertex common.Vertex
		edge   common.Edge
	)
	err = s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		rows, err := tx.Query(ctx, stmt)
		if err != nil {
			return err
		}
		// MATCH on a missing source yields no rows and creates nothing
		if len(rows) == 0 {
			return apperror.NewNotFound("vertex", strconv.FormatInt(sourceID, 10))
		}
		if len(rows) > 1 {
			return apperror.NewQuery(fmt.Errorf("transform created %d vertices", len(rows)))
		}
		if edge, err = query.DecodeEdge(rows[0][0]); err != nil {
			return apperror.NewQuery(err)
		}
		if vertex, err = query.DecodeVertex(rows[0][1]); err != nil {
			return apperror.NewQuery(err)
		}
		return nil
	})
	if err != nil {
		return common.Vertex{}, common.Edge{}, err
	}
	return vertex, edge, nil
}
