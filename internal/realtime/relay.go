package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osintbuddy/backend/internal/queue"
	"github.com/osintbuddy/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

const routingPrefix = "graph."

type envelope struct {
	Origin  string          `json:"origin"`
	Graph   string          `json:"graph"`
	Payload json.RawMessage `json:"payload"`
}

// AMQPRelay shares room broadcasts between server instances through the
// graph_events topic exchange. Every instance reads its own exclusive queue
// and skips the messages it published itself.
type AMQPRelay struct {
	hub    *Hub
	pub    queue.Publisher
	ch     *amqp091.Channel
	origin string
}

func newRelay(hub *Hub, pub queue.Publisher) *AMQPRelay {
	return &AMQPRelay{hub: hub, pub: pub, origin: gonanoid.Must()}
}

// NewAMQPRelay declares the exchange and attaches the relay to the hub.
func NewAMQPRelay(conn *amqp091.Connection, hub *Hub) (*AMQPRelay, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open relay channel: %w", err)
	}
	if err := queue.DeclareTopic(ch, queue.EventsExchange); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", queue.EventsExchange, err)
	}
	r := newRelay(hub, ch)
	r.ch = ch
	hub.SetRelay(r)
	return r, nil
}

func (r *AMQPRelay) Publish(room string, data []byte) error {
	body, err := json.Marshal(envelope{Origin: r.origin, Graph: room, Payload: data})
	if err != nil {
		return err
	}
	return queue.PublishTopic(r.pub, queue.EventsExchange, routingPrefix+room, body)
}

// Run consumes broadcasts of other instances until ctx is done or the
// channel closes.
func (r *AMQPRelay) Run(ctx context.Context) error {
	defer r.ch.Close()

	q, err := r.ch.QueueDeclare(
		"",
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare relay queue: %w", err)
	}
	if err := r.ch.QueueBind(q.Name, routingPrefix+"*", queue.EventsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind relay queue: %w", err)
	}

	msgs, err := r.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume relay queue: %w", err)
	}

	logger.Info("[Realtime] Relay listening", "queue", q.Name, "origin", r.origin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("relay channel closed")
			}
			r.handle(msg.RoutingKey, msg.Body)
		}
	}
}

func (r *AMQPRelay) handle(routingKey string, body []byte) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.Warn("[Realtime] Dropping malformed relay message", "err", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.Graph == "" {
		env.Graph = strings.TrimPrefix(routingKey, routingPrefix)
	}
	r.hub.deliver(env.Graph, env.Payload)
}
