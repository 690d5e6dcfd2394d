package queue

import (
	"fmt"
	"time"

	"github.com/osintbuddy/backend/internal/config"
	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Queue names.
const (
	GraphDeleteQueue = "graph_delete_queue"
)

// EventsExchange fans room broadcasts out to every server instance.
const EventsExchange = "graph_events"

// Publisher is the part of *amqp091.Channel used to publish.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Declarer is the part of *amqp091.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

func Init(cfg config.RabbitConfig) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every work queue together with its dead-letter
// queue and its retry queue. Retried messages wait 10s before they are
// routed back to the work queue.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
		logger.Debug("[Queue] Declared queue", "queue", name)
	}

	return nil
}

func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// DeclareTopic declares a non-durable topic exchange.
func DeclareTopic(ch Declarer, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		false,
		false,
		false,
		false,
		nil,
	)
}

// PublishTopic publishes a transient message to a topic exchange.
func PublishTopic(ch Publisher, exchange, topic string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Transient,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		exchange,
		topic,
		false,
		false,
		publishing,
	)
}
