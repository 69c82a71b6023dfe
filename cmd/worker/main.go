package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/habemus/amqp-worker/internal/config"
	"github.com/habemus/amqp-worker/internal/observability"
	"github.com/habemus/amqp-worker/internal/service"
	"github.com/habemus/amqp-worker/internal/worker"
	"github.com/habemus/amqp-worker/pkg/amqp"
)

func main() {
	taskName := flag.String("task", "", "task name to serve (overrides TASK_NAME)")
	flag.Parse()

	cfg := config.Load()
	observability.InitLogger(cfg.Logging.Level)
	logger := observability.GetLogger()

	if *taskName != "" {
		cfg.Task.Name = *taskName
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

	w, err := worker.New(ch, worker.Config{
		TaskName: cfg.Task.Name,
		Prefetch: cfg.Task.Prefetch,
		Logger:   zl,
	}, service.NewProcessor().Handle)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build worker")
	}

	logger.WithField("task", cfg.Task.Name).Info("Worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Worker stopped with error")
	}
	logger.Info("Worker shut down")
}
