package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/leaselock"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/query"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GraphDeleteMsg is the body of a graph_delete_queue message.
type GraphDeleteMsg struct {
	GraphID int64 `json:"graph_id"`
}

// GraphDropper drops the AGE graph of an investigation.
type GraphDropper interface {
	DropGraph(ctx context.Context, graph string) error
}

// GraphDeleter removes investigations that were marked for deletion.
type GraphDeleter struct {
	DB    pgdb.DBTX
	Locks *leaselock.Locker
	Store GraphDropper
}

// EnqueueGraphDelete publishes a delete job for the graph row.
func EnqueueGraphDelete(ch Publisher, graphID int64) error {
	body, err := json.Marshal(GraphDeleteMsg{GraphID: graphID})
	if err != nil {
		return err
	}
	return PublishFIFO(ch, GraphDeleteQueue, body)
}

// ProcessGraphDeleteMessage drops the AGE graph and deletes the metadata
// row while holding the graph's lease. Rows that are gone or no longer
// marked as deleting are skipped, so redelivered messages are harmless.
func (d *GraphDeleter) ProcessGraphDeleteMessage(ctx context.Context, body []byte) error {
	var msg GraphDeleteMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to decode graph delete message: %w", err)
	}

	return d.Locks.HoldGraph(ctx, msg.GraphID, func(ctx context.Context) error {
		q := pgdb.New(d.DB)

		row, err := q.GetGraphForDelete(ctx, msg.GraphID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				logger.Info("[Queue] Graph already deleted", "graph_id", msg.GraphID)
				return nil
			}
			return fmt.Errorf("failed to load graph %d: %w", msg.GraphID, err)
		}
		if row.State != pgdb.GraphStateDeleting {
			logger.Warn("[Queue] Graph not marked for deletion, skipping", "graph_id", msg.GraphID, "state", row.State)
			return nil
		}

		name := query.GraphName(uuid.UUID(row.Uuid.Bytes))
		if err := d.Store.DropGraph(ctx, name); err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return fmt.Errorf("failed to drop graph %s: %w", name, err)
			}
			logger.Warn("[Queue] AGE graph missing, deleting row only", "graph", name)
		}

		if err := q.DeleteGraph(ctx, msg.GraphID); err != nil {
			return fmt.Errorf("failed to delete graph row %d: %w", msg.GraphID, err)
		}
		logger.Info("[Queue] Graph deleted", "graph_id", msg.GraphID, "graph", name)
		return nil
	})
}
