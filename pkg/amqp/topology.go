package amqp

import (
	"fmt"

	"github.com/habemus/amqp-worker/pkg/faults"
)

// Topology holds the broker routing names derived from a task name. A
// requester and a worker constructed with the same task name resolve to
// identical names, or messages are never delivered.
type Topology struct {
	TaskName       string
	ExchangeName   string
	WorkQueueName  string
	ReplyQueueName string // set only for requesters
}

// ForWorker resolves the worker-side topology for a task name.
func ForWorker(taskName string) (Topology, error) {
	if taskName == "" {
		return Topology{}, faults.InvalidOption("name", "is required")
	}
	return Topology{
		TaskName:      taskName,
		WorkQueueName: taskName,
		ExchangeName:  taskName + "-exchange",
	}, nil
}

// ForRequester resolves the requester-side topology, including the
// instance-scoped reply queue name.
func ForRequester(taskName, appID string) (Topology, error) {
	t, err := ForWorker(taskName)
	if err != nil {
		return Topology{}, err
	}
	if appID == "" {
		return Topology{}, faults.InvalidOption("appId", "is required")
	}
	t.ReplyQueueName = fmt.Sprintf("%s-reply-%s", taskName, appID)
	return t, nil
}

// Declare sets up the shared work topology: a durable work queue, a direct
// exchange, and a binding keyed by the queue name. All declarations are
// idempotent and safe to repeat from many instances concurrently.
func (t Topology) Declare(ch Channel) error {
	if ch == nil {
		return faults.NotConnected("topology declaration")
	}
	if _, err := ch.QueueDeclare(t.WorkQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare work queue %q: %w", t.WorkQueueName, err)
	}
	if err := ch.ExchangeDeclare(t.ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", t.ExchangeName, err)
	}
	if err := ch.QueueBind(t.WorkQueueName, t.WorkQueueName, t.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind work queue %q: %w", t.WorkQueueName, err)
	}
	return nil
}

// DeclareReply sets up the requester's private reply queue. Updates reach it
// through the default (nameless) exchange addressed by queue name, so no
// binding to the task exchange is made. The queue is exclusive and auto-deleted
// with its owning instance; in-flight updates are lost when the requester goes
// away.
func (t Topology) DeclareReply(ch Channel) error {
	if ch == nil {
		return faults.NotConnected("reply queue declaration")
	}
	if t.ReplyQueueName == "" {
		return faults.InvalidOption("replyQueueName", "is required")
	}
	if _, err := ch.QueueDeclare(t.ReplyQueueName, false, true, true, false, nil); err != nil {
		return fmt.Errorf("declare reply queue %q: %w", t.ReplyQueueName, err)
	}
	return nil
}
