package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if r.URL.Query().Get("graph") == "missing" {
			Reject(conn, "graph not found")
			return
		}
		h.Serve(context.WithoutCancel(r.Context()), conn, testGraph)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(h.Shutdown)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketBroadcastToBothSessions(t *testing.T) {
	svc := &fakeService{}
	h := NewHub(svc)
	url := newWSServer(t, h)

	a := dial(t, url)
	b := dial(t, url)
	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": true}, readJSON(t, a))
	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": true}, readJSON(t, b))

	require.NoError(t, a.WriteJSON(map[string]any{"action": "delete:node", "node": map[string]any{"id": "9"}}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readJSON(t, conn)
		assert.Equal(t, ActionRemoveEntity, msg["action"])
		assert.Equal(t, map[string]any{"id": "9"}, msg["node"])
	}
}

func TestWebsocketLeaveOnDisconnect(t *testing.T) {
	h := NewHub(&fakeService{})
	url := newWSServer(t, h)

	a := dial(t, url)
	b := dial(t, url)
	readJSON(t, a)
	readJSON(t, b)
	require.Equal(t, 2, h.Members(testGraph))

	require.NoError(t, a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return h.Members(testGraph) == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Close()
	assert.Eventually(t, func() bool { return h.Rooms() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketDisconnectDuringRead(t *testing.T) {
	svc := &fakeService{blockRead: make(chan struct{}), readCancelled: make(chan struct{})}
	h := NewHub(svc)
	url := newWSServer(t, h)

	a := dial(t, url)
	readJSON(t, a)
	require.NoError(t, a.WriteJSON(map[string]any{"action": "read:graph"}))
	assert.Equal(t, map[string]any{"action": ActionLoading, "detail": true}, readJSON(t, a))
	require.Equal(t, 1, h.Members(testGraph))

	a.Close()

	select {
	case <-svc.readCancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight read kept running after the socket closed")
	}
	assert.Eventually(t, func() bool { return h.Members(testGraph) == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebsocketHandlesMessagesInOrder(t *testing.T) {
	svc := &fakeService{}
	h := NewHub(svc)
	url := newWSServer(t, h)

	a := dial(t, url)
	readJSON(t, a)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, a.WriteJSON(map[string]any{"action": "delete:node", "node": map[string]any{"id": id}}))
	}
	for _, id := range []string{"1", "2", "3"} {
		msg := readJSON(t, a)
		assert.Equal(t, ActionRemoveEntity, msg["action"])
		assert.Equal(t, map[string]any{"id": id}, msg["node"])
	}
}

func TestWebsocketReject(t *testing.T) {
	h := NewHub(&fakeService{})
	url := newWSServer(t, h)

	conn := dial(t, url+"?graph=missing")
	msg := readJSON(t, conn)
	assert.Equal(t, ActionError, msg["action"])
	assert.Equal(t, 0, h.Rooms())
}
