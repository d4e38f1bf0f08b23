package worker

import (
	"context"
	"errors"
)

var (
	// ErrDispatcherBusy means the submit queue is full.
	ErrDispatcherBusy = errors.New("worker: dispatcher queue is full")
	ErrClosed         = errors.New("worker: dispatcher closed")
)

// Job is one unit of work owned by a key. A stop job retires the worker that receives it.
type Job struct {
	key  string
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
	stop bool
}

func (j Job) finish(err error) {
	if j.done != nil {
		j.done <- err
	}
}
