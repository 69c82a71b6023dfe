// Package amqp is the seam between the protocol layer and the broker client.
// It narrows the client channel to the operations this layer consumes and
// derives the routing topology from a task name.
package amqp

import (
	"context"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of the broker channel surface used by the dispatch
// engines. *amqp091.Channel satisfies it; tests substitute a MockChannel.
//
// A Channel is owned by exactly one engine instance and is not safe for
// concurrent use from multiple call sites without external synchronization.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Dial connects to the broker at the given URI.
func Dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return conn, nil
}

// HealthCheck verifies the connection is still usable.
func HealthCheck(conn *amqp091.Connection) error {
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("broker connection is closed")
	}
	return nil
}
