package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024 * 1024

	sendBufferSize = 256

	inboxSize = 64
)

// Client is one websocket connection in a graph room. The read pump only
// reads; messages are handled one at a time, in receipt order, by the
// handle pump. A single write pump owns writes.
type Client struct {
	id   string
	room string
	hub  *Hub
	conn *websocket.Conn

	send  chan []byte
	inbox chan []byte
	done  chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(ctx context.Context, hub *Hub, roomKey string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		id:     gonanoid.Must(),
		room:   roomKey,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		inbox:  make(chan []byte, inboxSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Serve joins the connection to the graph's room and handles its messages
// until it closes. The context of every store call made for the connection
// is cancelled when it closes.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, graphName string) {
	c := newClient(ctx, h, graphName, conn)
	h.join(c)
	c.sendJSON(Loading(true, ""))

	go c.writePump()
	go c.handlePump()
	c.readPump()
}

// enqueue queues data for writing. It reports false when the send buffer
// is full; a closed client accepts and discards.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) sendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("[Realtime] Failed to encode message", "conn", c.id, "err", err)
		return
	}
	if !c.enqueue(data) {
		logger.Warn("[Realtime] Send buffer full, closing", "graph", c.room, "conn", c.id)
		c.close()
	}
}

// close leaves the room, cancels in-flight work and stops the write pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		c.hub.leave(c)
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				logger.Info("[Realtime] Client disconnected", "graph", c.room, "conn", c.id, "code", closeErr.Code)
			} else {
				logger.Warn("[Realtime] Read failed", "graph", c.room, "conn", c.id, "err", err)
				c.sendJSON(Loading(false, ""))
			}
			return
		}
		if messageType != websocket.TextMessage {
			logger.Debug("[Realtime] Ignoring binary message", "conn", c.id)
			continue
		}
		select {
		case c.inbox <- message:
		case <-c.done:
			return
		}
	}
}

func (c *Client) handlePump() {
	for {
		select {
		case message := <-c.inbox:
			c.hub.dispatch(c, message)
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				logger.Warn("[Realtime] Write failed", "conn", c.id, "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (c *Client) write(message []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// flush writes what is still queued, best effort.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// NewUpgrader returns an upgrader accepting the given origins, or any
// origin when none are configured.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// Reject writes an error action to a connection that may not join a room
// and closes it.
func Reject(conn *websocket.Conn, message string) {
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ErrorMessage{Action: ActionError, Message: message}); err != nil {
		logger.Debug("[Realtime] Failed to write rejection", "err", err)
		return
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(writeWait),
	)
}
