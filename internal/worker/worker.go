// Package worker implements the worker side of the task protocol: it consumes
// work requests from the shared task queue, runs the registered work function
// once per delivery, and reports progress and a single terminal result back to
// the requester's reply queue.
package worker

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

// WorkFunc is the registered work function. It receives the decoded JSON
// payload and a logger whose calls publish log updates correlated to the
// current delivery. Returning an error (or panicking) produces a result:error
// update; returning normally produces result:success.
type WorkFunc func(ctx context.Context, payload interface{}, log *JobLogger) (interface{}, error)

// Config carries worker construction parameters.
type Config struct {
	// TaskName names the logical task; it must match the requester side.
	TaskName string

	// Prefetch bounds unacknowledged deliveries on this channel and is the
	// only admission control for concurrent work-function executions.
	// Defaults to 1.
	Prefetch int

	// AppID identifies this instance in outgoing message metadata.
	// Defaults to a fresh UUID.
	AppID string

	Metrics observability.MetricsCollector
	Logger  *zap.Logger
}

// Worker consumes work requests for one task name over one channel it owns
// exclusively.
type Worker struct {
	ch       amqp.Channel
	topology amqp.Topology
	fn       WorkFunc
	appID    string
	prefetch int
	logger   *zap.Logger
	metrics  observability.MetricsCollector

	wg sync.WaitGroup
}

// New validates the configuration and builds a Worker. The channel must come
// from an established connection.
func New(ch amqp.Channel, cfg Config, fn WorkFunc) (*Worker, error) {
	if ch == nil {
		return nil, faults.NotConnected("worker construction")
	}
	if fn == nil {
		return nil, faults.InvalidOption("workerFn", "is required")
	}
	topology, err := amqp.ForWorker(cfg.TaskName)
	if err != nil {
		return nil, err
	}

	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.AppID == "" {
		cfg.AppID = uuid.NewString()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Worker{
		ch:       ch,
		topology: topology,
		fn:       fn,
		appID:    cfg.AppID,
		prefetch: cfg.Prefetch,
		logger:   cfg.Logger.With(zap.String("task", cfg.TaskName), zap.String("app_id", cfg.AppID)),
		metrics:  cfg.Metrics,
	}, nil
}

// AppID returns this instance's identifier.
func (w *Worker) AppID() string {
	return w.appID
}

// Run declares the topology, applies the prefetch bound, and consumes the
// work queue until ctx is cancelled or the delivery stream closes. In-flight
// deliveries are drained before returning.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.topology.Declare(w.ch); err != nil {
		return err
	}
	if err := w.ch.Qos(w.prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := w.ch.Consume(w.topology.WorkQueueName, w.appID, false, false, false, false, nil)
	if err != nil {
		return err
	}

	w.logger.Info("worker consuming",
		zap.String("queue", w.topology.WorkQueueName),
		zap.Int("prefetch", w.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, draining in-flight deliveries")
			w.wg.Wait()
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				w.wg.Wait()
				return nil
			}
			w.wg.Add(1)
			go func(d amqp091.Delivery) {
				defer w.wg.Done()
				w.handleDelivery(ctx, d)
			}(d)
		}
	}
}

// handleDelivery walks one delivery through
// received -> validated -> executing -> responded. The delivery is settled
// (acked or nacked) exactly once, always after the terminal update publish.
func (w *Worker) handleDelivery(ctx context.Context, d amqp091.Delivery) {
	// Zero-value deliveries show up on consumer cancellation; they are a
	// transport artifact, not a message.
	if len(d.Body) == 0 && d.ContentType == "" && d.MessageId == "" {
		w.logger.Debug("ignoring empty delivery")
		return
	}

	w.metrics.IncReceived()
	log := w.logger.With(
		zap.String("message_id", d.MessageId),
		zap.String("reply_to", d.ReplyTo),
	)

	if d.ContentType != models.ContentTypeJSON {
		log.Warn("rejecting delivery with unsupported content type",
			zap.String("content_type", d.ContentType))
		w.respondError(ctx, d, faults.UnsupportedContentType(d.ContentType), log)
		return
	}

	payload, err := codec.Decode(d.Body, d.ContentType)
	if err != nil {
		log.Warn("rejecting malformed delivery", zap.Error(err))
		w.respondError(ctx, d, err, log)
		return
	}

	jobLog := &JobLogger{emit: func(kind models.Kind, value interface{}) {
		if err := w.publishUpdate(ctx, d, kind, value); err != nil {
			log.Error("failed to publish log update", zap.Error(err))
		}
	}}

	out := run(ctx, w.fn, payload, jobLog)
	if out.err != nil {
		log.Info("work function failed", zap.Error(out.err))
		w.metrics.IncFailed()
		w.respondError(ctx, d, out.err, log)
		return
	}

	if err := w.publishUpdate(ctx, d, models.KindResultSuccess, out.value); err != nil {
		log.Error("failed to publish result", zap.Error(err))
	}
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack delivery", zap.Error(err))
		return
	}
	w.metrics.IncProcessed()
	log.Debug("delivery processed")
}

// respondError publishes a result:error update describing err, then rejects
// the delivery without requeue. Redelivery is never requested: a malformed
// message would fail decode again and a failed work function is not retried
// by this layer.
func (w *Worker) respondError(ctx context.Context, d amqp091.Delivery, cause error, log *zap.Logger) {
	if err := w.publishUpdate(ctx, d, models.KindResultError, faults.DescribeError(cause)); err != nil {
		log.Error("failed to publish error result", zap.Error(err))
	}
	if err := d.Nack(false, false); err != nil {
		log.Error("failed to nack delivery", zap.Error(err))
		return
	}
	w.metrics.IncRejected()
}

// publishUpdate sends one update envelope to the reply queue named by the
// originating delivery, through the default exchange.
func (w *Worker) publishUpdate(ctx context.Context, d amqp091.Delivery, kind models.Kind, value interface{}) error {
	if d.ReplyTo == "" {
		w.logger.Warn("delivery has no reply queue, dropping update",
			zap.String("kind", string(kind)))
		return nil
	}

	body, contentType, err := codec.Encode(value)
	if err != nil {
		w.metrics.IncPublishFailed()
		return err
	}

	err = w.ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp091.Publishing{
		ContentType:     contentType,
		ContentEncoding: models.ContentEncoding,
		CorrelationId:   d.MessageId,
		Type:            string(kind),
		AppId:           w.appID,
		Timestamp:       time.Now(),
		DeliveryMode:    amqp091.Persistent,
		Body:            body,
	})
	if err != nil {
		w.metrics.IncPublishFailed()
		return err
	}
	w.metrics.IncUpdates()
	return nil
}
