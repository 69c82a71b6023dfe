package amqp

import (
	"context"
	"fmt"
	"sync"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// MockChannel is an in-memory Channel implementation for testing. It records
// every declaration and publish, and can inject failures via the *Func hooks.
type MockChannel struct {
	mu sync.RWMutex

	Published         []PublishedMessage
	DeclaredQueues    []QueueDeclaration
	DeclaredExchanges []ExchangeDeclaration
	Bindings          []Binding
	QosCalls          []QosCall
	Closed            bool

	PublishFunc func(exchange, key string, msg amqp091.Publishing) error
	ConsumeFunc func(queue string) (<-chan amqp091.Delivery, error)

	deliveries chan amqp091.Delivery
}

type PublishedMessage struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
	Msg        amqp091.Publishing
}

type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

type ExchangeDeclaration struct {
	Name    string
	Kind    string
	Durable bool
}

type Binding struct {
	Queue    string
	Key      string
	Exchange string
}

type QosCall struct {
	PrefetchCount int
	PrefetchSize  int
	Global        bool
}

func NewMockChannel() *MockChannel {
	return &MockChannel{
		deliveries: make(chan amqp091.Delivery, 16),
	}
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeclaredQueues = append(m.DeclaredQueues, QueueDeclaration{
		Name:       name,
		Durable:    durable,
		AutoDelete: autoDelete,
		Exclusive:  exclusive,
	})
	return amqp091.Queue{Name: name}, nil
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeclaredExchanges = append(m.DeclaredExchanges, ExchangeDeclaration{
		Name:    name,
		Kind:    kind,
		Durable: durable,
	})
	return nil
}

func (m *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bindings = append(m.Bindings, Binding{Queue: name, Key: key, Exchange: exchange})
	return nil
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishFunc != nil {
		if err := m.PublishFunc(exchange, key, msg); err != nil {
			return err
		}
	}
	m.Published = append(m.Published, PublishedMessage{
		Exchange:   exchange,
		RoutingKey: key,
		Mandatory:  mandatory,
		Immediate:  immediate,
		Msg:        msg,
	})
	return nil
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(queue)
	}
	return m.deliveries, nil
}

func (m *MockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QosCalls = append(m.QosCalls, QosCall{prefetchCount, prefetchSize, global})
	return nil
}

func (m *MockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Closed {
		m.Closed = true
		close(m.deliveries)
	}
	return nil
}

// Deliver pushes a delivery to consumers as if the broker had routed it.
func (m *MockChannel) Deliver(d amqp091.Delivery) {
	m.deliveries <- d
}

// GetPublished returns a snapshot of all recorded publishes.
func (m *MockChannel) GetPublished() []PublishedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PublishedMessage, len(m.Published))
	copy(out, m.Published)
	return out
}

// MockAcknowledger records ack/nack/reject calls for a delivery.
type MockAcknowledger struct {
	mu      sync.Mutex
	Acks    []AckCall
	Nacks   []NackCall
	Rejects []RejectCall

	AckFunc func(tag uint64) error
}

type AckCall struct {
	Tag      uint64
	Multiple bool
}

type NackCall struct {
	Tag      uint64
	Multiple bool
	Requeue  bool
}

type RejectCall struct {
	Tag     uint64
	Requeue bool
}

func (m *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckFunc != nil {
		if err := m.AckFunc(tag); err != nil {
			return err
		}
	}
	m.Acks = append(m.Acks, AckCall{tag, multiple})
	return nil
}

func (m *MockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nacks = append(m.Nacks, NackCall{tag, multiple, requeue})
	return nil
}

func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejects = append(m.Rejects, RejectCall{tag, requeue})
	return nil
}

// Settled reports how many times the delivery with the given tag was acked or
// nacked in total. The engines settle each delivery exactly once.
func (m *MockAcknowledger) Settled(tag uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.Acks {
		if a.Tag == tag {
			n++
		}
	}
	for _, a := range m.Nacks {
		if a.Tag == tag {
			n++
		}
	}
	return n
}

var _ Channel = (*MockChannel)(nil)
var _ amqp091.Acknowledger = (*MockAcknowledger)(nil)

// FailingPublish is a PublishFunc that always fails; handy for exercising
// publish-failure metrics.
func FailingPublish(exchange, key string, msg amqp091.Publishing) error {
	return fmt.Errorf("simulated publish failure to %s/%s", exchange, key)
}
