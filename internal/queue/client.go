package queue

import "context"

// Client enqueues job messages for the worker fleet. The zero value of a
// service holding a nil Client is valid; callers fall back to inline
// processing when no queue is configured.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
