package domain

import "errors"

var (
	ErrNotFound       = errors.New("job not found")
	ErrQueueFull      = errors.New("queue is at capacity")
	ErrNotCancellable = errors.New("job is not cancellable")
)
