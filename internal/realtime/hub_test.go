package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/osintbuddy/backend/internal/graphing"
	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGraph = "g_0123456789abcdef0123456789abcdef"

type fakeService struct {
	view      graphing.GraphView
	err       error
	updated   []map[string]any
	removed   []map[string]any
	blockRead chan struct{}
	// closed when a blocked read sees its context cancelled
	readCancelled chan struct{}
}

func (f *fakeService) ReadGraph(ctx context.Context, graphName string) (graphing.GraphView, error) {
	if f.blockRead != nil {
		select {
		case <-f.blockRead:
		case <-ctx.Done():
			if f.readCancelled != nil {
				close(f.readCancelled)
			}
			return graphing.GraphView{}, ctx.Err()
		}
	}
	return f.view, f.err
}

func (f *fakeService) UpdateNode(ctx context.Context, graphName string, node map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, node)
	return nil
}

func (f *fakeService) RemoveNode(ctx context.Context, graphName string, node map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, node)
	return nil
}

func joined(t *testing.T, h *Hub, roomKey string) *Client {
	t.Helper()
	c := newClient(context.Background(), h, roomKey, nil)
	h.join(c)
	t.Cleanup(c.close)
	return c
}

func next(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return nil
	}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	default:
	}
}

func TestDeleteIsBroadcastToEveryMember(t *testing.T) {
	svc := &fakeService{}
	h := NewHub(svc)
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)
	other := joined(t, h, "g_ffffffffffffffffffffffffffffffff")

	h.dispatch(a, []byte(`{"action":"delete:node","node":{"id":"7"}}`))

	for _, c := range []*Client{a, b} {
		msg := next(t, c)
		assert.Equal(t, ActionRemoveEntity, msg["action"])
		assert.Equal(t, map[string]any{"id": "7"}, msg["node"])
	}
	assertQuiet(t, other)
	require.Len(t, svc.removed, 1)
}

func TestUpdateIsBroadcastToEveryMember(t *testing.T) {
	svc := &fakeService{}
	h := NewHub(svc)
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"update:node","node":{"id":"7","ip_address":"1.1.1.1"}}`))

	for _, c := range []*Client{a, b} {
		msg := next(t, c)
		assert.Equal(t, ActionUpdateEntity, msg["action"])
	}
	require.Len(t, svc.updated, 1)
	assert.Equal(t, "1.1.1.1", svc.updated[0]["ip_address"])
}

func TestReadGraphSequence(t *testing.T) {
	svc := &fakeService{view: graphing.GraphView{
		Nodes: []common.Entity{{ID: "1", Type: common.EntityView}},
		Edges: []common.EdgeView{{ID: "5", Source: "1", Target: "2", SourceHandle: "r1", TargetHandle: "l2", Type: "float"}},
	}}
	h := NewHub(svc)
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"read:graph","viewport":{"x":0,"y":0,"zoom":1}}`))

	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": true}, next(t, a))
	read := next(t, a)
	assert.Equal(t, ActionRead, read["action"])
	assert.Len(t, read["nodes"], 1)
	assert.Len(t, read["edges"], 1)
	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": false, "message": MessageReconnected}, next(t, a))
	assertQuiet(t, b)
}

func TestInitialRead(t *testing.T) {
	h := NewHub(&fakeService{})
	a := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"initial:graph"}`))

	assert.Equal(t, true, next(t, a)["detail"])
	read := next(t, a)
	assert.Equal(t, ActionInitialRead, read["action"])
	assert.Equal(t, []any{}, read["nodes"])
	assert.Equal(t, MessageReady, next(t, a)["message"])
}

func TestTransformOnlyNotifiesSender(t *testing.T) {
	h := NewHub(&fakeService{})
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"transform:node","node":{"id":"1"}}`))

	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": true}, next(t, a))
	assertQuiet(t, b)
}

func TestUnknownAndMalformedMessagesAreIgnored(t *testing.T) {
	svc := &fakeService{}
	h := NewHub(svc)
	a := joined(t, h, testGraph)

	for _, raw := range []string{
		`{"action":"explode:graph"}`,
		`{"action":"read:node"}`,
		`{"action":"update"}`,
		`{"action":"delete:node"}`,
		`not json`,
	} {
		h.dispatch(a, []byte(raw))
	}
	assertQuiet(t, a)
	assert.Empty(t, svc.removed)
}

func TestHandlerFailureNotifiesSender(t *testing.T) {
	svc := &fakeService{err: apperror.NewQuery(errors.New("syntax error at or near"))}
	h := NewHub(svc)
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"update:node","node":{"id":"7","note":"x"}}`))

	msg := next(t, a)
	assert.Equal(t, ActionLoading, msg["action"])
	assert.Equal(t, false, msg["detail"])
	assert.Equal(t, apperror.ErrQuery.Message, msg["message"])
	assertQuiet(t, b)
}

func TestProtocolErrorIsSwallowed(t *testing.T) {
	h := NewHub(&fakeService{err: apperror.ErrProtocol})
	a := joined(t, h, testGraph)

	h.dispatch(a, []byte(`{"action":"delete:node","node":{"id":"abc"}}`))
	assertQuiet(t, a)
}

func TestRoomCleanupAndRejoin(t *testing.T) {
	h := NewHub(&fakeService{})
	a := joined(t, h, testGraph)
	b := joined(t, h, testGraph)
	assert.Equal(t, 2, h.Members(testGraph))

	a.close()
	a.close()
	assert.Equal(t, 1, h.Members(testGraph))

	b.close()
	assert.Equal(t, 0, h.Members(testGraph))
	assert.Equal(t, 0, h.Rooms())

	c := joined(t, h, testGraph)
	assert.Equal(t, 1, h.Members(testGraph))

	h.Broadcast(testGraph, NodeMessage{Action: ActionRemoveEntity, Node: map[string]any{"id": "1"}})
	assert.Equal(t, ActionRemoveEntity, next(t, c)["action"])
}

func TestCloseCancelsInFlightWork(t *testing.T) {
	svc := &fakeService{blockRead: make(chan struct{})}
	h := NewHub(svc)
	a := joined(t, h, testGraph)

	done := make(chan struct{})
	go func() {
		h.dispatch(a, []byte(`{"action":"read:graph"}`))
		close(done)
	}()
	next(t, a)
	a.close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read was not cancelled")
	}
	assert.Error(t, a.ctx.Err())
}

func TestSlowClientIsDropped(t *testing.T) {
	h := NewHub(&fakeService{})
	fast := joined(t, h, testGraph)
	slow := joined(t, h, testGraph)
	for range sendBufferSize {
		require.True(t, slow.enqueue([]byte(`{}`)))
	}

	h.Broadcast(testGraph, Loading(false, ""))

	assert.Equal(t, ActionLoading, next(t, fast)["action"])
	assert.Equal(t, 1, h.Members(testGraph))
	select {
	case <-slow.done:
	default:
		t.Fatal("slow client not closed")
	}
}

type capturePublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *capturePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, msg.Body)
	return nil
}

func TestRelay(t *testing.T) {
	h := NewHub(&fakeService{})
	pub := &capturePublisher{}
	relay := newRelay(h, pub)
	h.SetRelay(relay)
	a := joined(t, h, testGraph)

	h.Broadcast(testGraph, NodeMessage{Action: ActionRemoveEntity, Node: map[string]any{"id": "3"}})
	assert.Equal(t, ActionRemoveEntity, next(t, a)["action"])
	require.Equal(t, []string{"graph." + testGraph}, pub.keys)

	// own messages come back through the exchange and are skipped
	relay.handle(pub.keys[0], pub.bodies[0])
	assertQuiet(t, a)

	foreign, err := json.Marshal(envelope{Origin: "other", Graph: testGraph, Payload: json.RawMessage(`{"action":"updateEntity","node":{"id":"3"}}`)})
	require.NoError(t, err)
	relay.handle("graph."+testGraph, foreign)
	assert.Equal(t, ActionUpdateEntity, next(t, a)["action"])
	assert.Len(t, pub.keys, 1)

	relay.handle("graph."+testGraph, []byte("garbage"))
	assertQuiet(t, a)
}
