package driven

import "context"

// TaskQueue hands sync task IDs from the API to the workers.
// Implementations can use Redis (preferred) or Postgres (fallback).
// The queue carries only IDs; task state lives in the SyncTaskStore.
type TaskQueue interface {
	// Enqueue schedules a task for execution.
	// Enqueuing an ID that is already queued is allowed; the runner
	// tolerates duplicate deliveries.
	Enqueue(ctx context.Context, taskID int64) error

	// DequeueWithTimeout retrieves the next task ID, waiting up to timeout
	// seconds. Returns 0, nil if the timeout is reached with nothing queued.
	DequeueWithTimeout(ctx context.Context, timeout int) (int64, error)

	// Ack acknowledges that a delivered task ID has been handled
	Ack(ctx context.Context, taskID int64) error

	// Len returns the number of queued task IDs
	Len(ctx context.Context) (int64, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
