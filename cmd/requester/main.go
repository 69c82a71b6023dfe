package main

import (
	"context"
	"encoding/json"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/habemus/amqp-worker/internal/config"
	"github.com/habemus/amqp-worker/internal/observability"
	"github.com/habemus/amqp-worker/internal/requester"
	"github.com/habemus/amqp-worker/pkg/amqp"
	"github.com/habemus/amqp-worker/pkg/models"
)

func main() {
	taskName := flag.String("task", "", "task name to submit to (overrides TASK_NAME)")
	payload := flag.String("payload", `{"someKey":"someValue"}`, "JSON payload to submit")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the terminal result")
	flag.Parse()

	cfg := config.Load()
	observability.InitLogger(cfg.Logging.Level)
	logger := observability.GetLogger()

	if *taskName != "" {
		cfg.Task.Name = *taskName
	}

	var value interface{}
	if err := json.Unmarshal([]byte(*payload), &value); err != nil {
		logger.WithError(err).Fatal("Invalid payload")
	}

	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to broker")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to open channel")
	}

	zl, err := zap.NewProduction()
	if err != nil {
		logger.WithError(err).Fatal("Failed to build logger")
	}
	defer zl.Sync()

	r, err := requester.New(ch, requester.Config{
		TaskName: cfg.Task.Name,
		Logger:   zl,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build requester")
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start requester")
	}

	// All updates funnel through one channel; the main loop filters by the
	// correlation id returned from Submit.
	updates := make(chan models.Update, 64)
	forward := func(u models.Update) { updates <- u }
	r.On(models.KindResultSuccess, forward)
	r.On(models.KindResultError, forward)
	r.On(models.KindLogInfo, forward)
	r.On(models.KindLogWarning, forward)
	r.On(models.KindLogError, forward)

	id, err := r.Submit(ctx, value)
	if err != nil {
		logger.WithError(err).Fatal("Failed to submit work request")
	}
	logger.WithField("correlation_id", id).Info("Work request submitted")

	// The protocol defines no deadline of its own, so race a local timer
	// against the update stream.
	timer := time.NewTimer(*timeout)
	defer timer.Stop()

	for {
		select {
		case u := <-updates:
			if u.CorrelationID != id {
				continue
			}
			entry := observability.WithCorrelation(u.CorrelationID).WithField("payload", u.Payload)
			switch u.Kind {
			case models.KindResultSuccess:
				entry.Info("Work completed")
				return
			case models.KindResultError:
				entry.Error("Work failed")
				return
			case models.KindLogWarning:
				entry.Warn("Worker log")
			case models.KindLogError:
				entry.Error("Worker log")
			default:
				entry.Info("Worker log")
			}
		case <-timer.C:
			logger.WithField("correlation_id", id).Fatal("Timed out waiting for result")
		}
	}
}
