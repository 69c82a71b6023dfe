package worker

import (
	"github.com/habemus/amqp-worker/pkg/models"
)

// JobLogger is handed to the work function. Every call publishes one log
// update correlated to the delivery being processed. Calls are
// fire-and-forget: publish failures are logged by the worker and never
// interrupt the work function.
type JobLogger struct {
	emit func(kind models.Kind, value interface{})
}

// Log publishes a log:info update; the generic log level shares info severity.
func (l *JobLogger) Log(args ...interface{}) {
	l.publish(models.KindLogInfo, args)
}

// Info publishes a log:info update.
func (l *JobLogger) Info(args ...interface{}) {
	l.publish(models.KindLogInfo, args)
}

// Warn publishes a log:warning update.
func (l *JobLogger) Warn(args ...interface{}) {
	l.publish(models.KindLogWarning, args)
}

// Error publishes a log:error update.
func (l *JobLogger) Error(args ...interface{}) {
	l.publish(models.KindLogError, args)
}

func (l *JobLogger) publish(kind models.Kind, args []interface{}) {
	var payload interface{}
	switch len(args) {
	case 0:
		payload = nil
	case 1:
		payload = args[0]
	default:
		payload = args
	}
	l.emit(kind, payload)
}
