package realtime

import (
	"strings"

	"github.com/osintbuddy/backend/pkg/common"
)

// Server actions.
const (
	ActionLoading      = "isLoading"
	ActionRead         = "read"
	ActionInitialRead  = "isInitialRead"
	ActionRemoveEntity = "removeEntity"
	ActionUpdateEntity = "updateEntity"
	ActionCreateEntity = "createEntity"
	ActionError        = "error"
)

// Status lines sent with the final loading notice of a read.
const (
	MessageReconnected = "Success! You've been reconnected!"
	MessageReady       = "Success! Your graph environment is ready for use."
)

// ClientMessage is a client request. Action is "<verb>:<target>".
type ClientMessage struct {
	Action   string           `json:"action"`
	Node     map[string]any   `json:"node,omitempty"`
	Viewport *common.Viewport `json:"viewport,omitempty"`
}

// Verb and target of the action. An action without a colon has no target.
func (m ClientMessage) split() (verb, target string) {
	verb, target, _ = strings.Cut(m.Action, ":")
	return verb, target
}

type LoadingMessage struct {
	Action  string `json:"action"`
	Detail  bool   `json:"detail"`
	Message string `json:"message,omitempty"`
}

func Loading(detail bool, message string) LoadingMessage {
	return LoadingMessage{Action: ActionLoading, Detail: detail, Message: message}
}

type GraphMessage struct {
	Action string            `json:"action"`
	Nodes  []common.Entity   `json:"nodes"`
	Edges  []common.EdgeView `json:"edges"`
}

// NodeMessage carries one node, either a client payload or an entity.
type NodeMessage struct {
	Action string `json:"action"`
	Node   any    `json:"node"`
}

type ErrorMessage struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}
