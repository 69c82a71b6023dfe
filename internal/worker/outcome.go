package worker

import (
	"context"
	"fmt"
)

// outcome is the normalized result of one work-function invocation: exactly
// one of value or err, never both, never neither.
type outcome struct {
	value interface{}
	err   error
}

// run invokes the work function and always produces exactly one outcome.
// Panics are converted to failures so a misbehaving work function cannot
// crash the worker process.
func run(ctx context.Context, fn WorkFunc, payload interface{}, log *JobLogger) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				out = outcome{err: err}
				return
			}
			out = outcome{err: fmt.Errorf("%v", r)}
		}
	}()

	value, err := fn(ctx, payload, log)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{value: value}
}
