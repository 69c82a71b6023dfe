// Package requester implements the submitting side of the task protocol: it
// publishes work requests tagged with a private reply queue and a fresh
// correlation id, and demultiplexes inbound updates by message kind.
package requester

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/habemus/amqp-worker/internal/observability"
	"github.com/habemus/amqp-worker/pkg/amqp"
	"github.com/habemus/amqp-worker/pkg/codec"
	"github.com/habemus/amqp-worker/pkg/faults"
	"github.com/habemus/amqp-worker/pkg/models"
)

// UpdateHandler observes decoded updates for one message kind.
type UpdateHandler func(update models.Update)

// Config carries requester construction parameters.
type Config struct {
	// TaskName names the logical task; it must match the worker side.
	TaskName string

	// AppID scopes the private reply queue so concurrent requester
	// instances never cross-receive replies. Defaults to a fresh UUID.
	AppID string

	Metrics observability.MetricsCollector
	Logger  *zap.Logger
}

// Requester submits work for one task name over one channel it owns
// exclusively.
type Requester struct {
	ch       amqp.Channel
	topology amqp.Topology
	appID    string
	logger   *zap.Logger
	metrics  observability.MetricsCollector

	mu        sync.RWMutex
	handlers  map[models.Kind][]UpdateHandler
	consuming bool

	wg sync.WaitGroup
}

// New validates the configuration and builds a Requester. The channel must
// come from an established connection.
func New(ch amqp.Channel, cfg Config) (*Requester, error) {
	if ch == nil {
		return nil, faults.NotConnected("requester construction")
	}
	if cfg.AppID == "" {
		cfg.AppID = uuid.NewString()
	}
	topology, err := amqp.ForRequester(cfg.TaskName, cfg.AppID)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Requester{
		ch:       ch,
		topology: topology,
		appID:    cfg.AppID,
		logger:   cfg.Logger.With(zap.String("task", cfg.TaskName), zap.String("app_id", cfg.AppID)),
		metrics:  cfg.Metrics,
		handlers: make(map[models.Kind][]UpdateHandler),
	}, nil
}

// AppID returns this instance's identifier.
func (r *Requester) AppID() string {
	return r.appID
}

// ReplyQueueName returns the private reply queue scoped to this instance.
func (r *Requester) ReplyQueueName() string {
	return r.topology.ReplyQueueName
}

// On registers a handler for one update kind. Handlers run on the reply
// consumer goroutine and should not block.
func (r *Requester) On(kind models.Kind, h UpdateHandler) {
	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], h)
	r.mu.Unlock()
}

// Start declares the topology and the private reply queue, then begins
// consuming updates. Submit fails with NotConnected until Start returns.
// Reply consumption uses autoAck: updates toward a requester that went away
// have no redelivery value.
func (r *Requester) Start(ctx context.Context) error {
	if err := r.topology.Declare(r.ch); err != nil {
		return err
	}
	if err := r.topology.DeclareReply(r.ch); err != nil {
		return err
	}

	deliveries, err := r.ch.Consume(r.topology.ReplyQueueName, r.appID, true, true, false, false, nil)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.consuming = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				r.dispatch(d)
			}
		}
	}()

	r.logger.Info("requester consuming replies",
		zap.String("reply_queue", r.topology.ReplyQueueName))
	return nil
}

// Submit publishes one work request and returns its correlation id
// immediately; it never waits for a worker response. Callers wanting a
// deadline race a local timer against the update handlers.
func (r *Requester) Submit(ctx context.Context, payload interface{}) (string, error) {
	r.mu.RLock()
	consuming := r.consuming
	r.mu.RUnlock()
	if !consuming {
		return "", faults.NotConnected("submit")
	}

	body, contentType, err := codec.Encode(payload)
	if err != nil {
		return "", err
	}

	correlationID := uuid.NewString()
	err = r.ch.PublishWithContext(ctx, r.topology.ExchangeName, r.topology.WorkQueueName, true, false, amqp091.Publishing{
		ContentType:     contentType,
		ContentEncoding: models.ContentEncoding,
		MessageId:       correlationID,
		ReplyTo:         r.topology.ReplyQueueName,
		Type:            string(models.KindWorkRequest),
		AppId:           r.appID,
		Timestamp:       time.Now(),
		DeliveryMode:    amqp091.Persistent,
		Body:            body,
	})
	if err != nil {
		r.metrics.IncPublishFailed()
		return "", err
	}
	r.metrics.IncPublished()
	r.logger.Debug("work request submitted", zap.String("correlation_id", correlationID))
	return correlationID, nil
}

// dispatch routes one inbound update to the handlers registered for its kind.
// Updates without a correlation id cannot be attributed to a request and are
// dropped; unknown kinds are logged and dropped so future message kinds never
// break an old requester.
func (r *Requester) dispatch(d amqp091.Delivery) {
	if d.CorrelationId == "" {
		r.logger.Debug("dropping update without correlation id",
			zap.String("kind", d.Type))
		return
	}

	kind := models.Kind(d.Type)
	if !kind.Known() || kind == models.KindWorkRequest {
		r.logger.Warn("ignoring update of unknown kind",
			zap.String("kind", d.Type),
			zap.String("correlation_id", d.CorrelationId))
		return
	}

	payload, err := codec.Decode(d.Body, d.ContentType)
	if err != nil {
		r.logger.Warn("dropping undecodable update",
			zap.String("kind", d.Type),
			zap.String("correlation_id", d.CorrelationId),
			zap.Error(err))
		return
	}

	r.metrics.IncUpdates()
	update := models.Update{
		CorrelationID: d.CorrelationId,
		Kind:          kind,
		Payload:       payload,
		SenderAppID:   d.AppId,
		Timestamp:     d.Timestamp,
	}

	r.mu.RLock()
	handlers := make([]UpdateHandler, len(r.handlers[kind]))
	copy(handlers, r.handlers[kind])
	r.mu.RUnlock()

	for _, h := range handlers {
		h(update)
	}
}

// Close stops reply consumption by closing the owned channel and waits for
// the consumer goroutine to drain.
func (r *Requester) Close() error {
	r.mu.Lock()
	r.consuming = false
	r.mu.Unlock()

	err := r.ch.Close()
	r.wg.Wait()
	return err
}
