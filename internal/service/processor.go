package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/habemus/amqp-worker/internal/observability"
	"github.com/habemus/amqp-worker/internal/worker"
)

// Processor is the demo work function wired into cmd/worker.
type Processor struct {
	logger *logrus.Logger
}

func NewProcessor() *Processor {
	return &Processor{
		logger: observability.GetLogger(),
	}
}

// Handle processes one work request. It expects a JSON object payload,
// streams a couple of progress lines back to the requester, and returns the
// payload with every string field marked as processed.
func (p *Processor) Handle(ctx context.Context, payload interface{}, log *worker.JobLogger) (interface{}, error) {
	data, ok := payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a JSON object payload, got %T", payload)
	}

	p.logger.WithFields(logrus.Fields{
		"fields": len(data),
	}).Info("Processing work request")

	log.Info("processing started")

	result := make(map[string]interface{}, len(data))
	for key, value := range data {
		if s, ok := value.(string); ok {
			result[key] = s + "-after-work"
			continue
		}
		result[key] = value
	}

	log.Info("processing finished", len(result))

	p.logger.WithField("fields", len(result)).Debug("Work request processed")
	return result, nil
}
