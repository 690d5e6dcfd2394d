package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"
	"github.com/osintbuddy/backend/pkg/logger"
)

// dispatch handles one client message. Unknown or malformed messages are
// ignored.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug("[Realtime] Ignoring malformed message", "conn", c.id, "err", err)
		return
	}

	verb, target := msg.split()
	switch {
	case target == "graph" && strings.Contains(verb, "initial"):
		h.readGraph(c, ActionInitialRead, MessageReady)
	case verb == "read" && target == "graph":
		h.readGraph(c, ActionRead, MessageReconnected)
	case verb == "update" && target == "node":
		h.updateNode(c, msg.Node)
	case verb == "delete" && target == "node":
		h.removeNode(c, msg.Node)
	case verb == "transform" && target == "node":
		c.sendJSON(Loading(true, ""))
	default:
		logger.Debug("[Realtime] Ignoring action", "conn", c.id, "action", msg.Action)
	}
}

func (h *Hub) readGraph(c *Client, action, done string) {
	c.sendJSON(Loading(true, ""))

	view, err := h.svc.ReadGraph(c.ctx, c.room)
	if err != nil {
		h.fail(c, "read", err)
		return
	}
	if view.Nodes == nil {
		view.Nodes = []common.Entity{}
	}
	if view.Edges == nil {
		view.Edges = []common.EdgeView{}
	}
	c.sendJSON(GraphMessage{Action: action, Nodes: view.Nodes, Edges: view.Edges})
	c.sendJSON(Loading(false, done))
}

func (h *Hub) updateNode(c *Client, node map[string]any) {
	if node == nil {
		logger.Debug("[Realtime] Ignoring update without node", "conn", c.id)
		return
	}
	if err := h.svc.UpdateNode(c.ctx, c.room, node); err != nil {
		h.fail(c, "update", err)
		return
	}
	h.Broadcast(c.room, NodeMessage{Action: ActionUpdateEntity, Node: node})
}

func (h *Hub) removeNode(c *Client, node map[string]any) {
	if node == nil {
		logger.Debug("[Realtime] Ignoring delete without node", "conn", c.id)
		return
	}
	if err := h.svc.RemoveNode(c.ctx, c.room, node); err != nil {
		h.fail(c, "delete", err)
		return
	}
	h.Broadcast(c.room, NodeMessage{Action: ActionRemoveEntity, Node: node})
}

// fail reports a handler error to the sender with a generic message.
// Protocol errors and work cancelled by a closing connection are dropped.
func (h *Hub) fail(c *Client, op string, err error) {
	if errors.Is(err, context.Canceled) || c.ctx.Err() != nil {
		return
	}
	if errors.Is(err, apperror.ErrProtocol) {
		logger.Debug("[Realtime] Ignoring malformed node", "conn", c.id, "op", op, "err", err)
		return
	}
	logger.Error("[Realtime] Handler failed", "graph", c.room, "conn", c.id, "op", op, "err", err)
	_, body := apperror.ToHTTPError(err)
	c.sendJSON(Loading(false, body["error"]))
}
