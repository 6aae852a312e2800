package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

const (
	// DefaultClaimTTL is how long a delivered entry stays invisible before
	// it is handed to another worker
	DefaultClaimTTL = 10 * time.Minute

	pollInterval = time.Second
)

// Queue implements TaskQueue on the task_queue table with SKIP LOCKED.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db       *sql.DB
	claimTTL time.Duration
	poll     time.Duration
}

// NewQueue creates a new PostgreSQL-backed task queue.
// Assumes the task_queue table has been created by the schema.
func NewQueue(db *sql.DB, claimTTL time.Duration) *Queue {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	return &Queue{db: db, claimTTL: claimTTL, poll: pollInterval}
}

// Enqueue adds a task ID to the queue
func (q *Queue) Enqueue(ctx context.Context, taskID int64) error {
	if _, err := q.db.ExecContext(ctx, "INSERT INTO task_queue (task_id) VALUES ($1)", taskID); err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

// DequeueWithTimeout claims the oldest visible entry, polling up to timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (int64, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		id, err := q.claim(ctx)
		if err != nil || id != 0 {
			return id, err
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		wait := q.poll
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		select {
		case <-ctx.Done():
			return 0, nil
		case <-time.After(wait):
		}
	}
}

// claim selects one visible entry with SKIP LOCKED so concurrent workers
// never receive the same row, and hides it for claimTTL.
func (q *Queue) claim(ctx context.Context) (int64, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var entryID, taskID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, task_id FROM task_queue
		WHERE claimed_until IS NULL OR claimed_until < NOW()
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&entryID, &taskID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select queue entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE task_queue SET claimed_until = $1 WHERE id = $2",
		time.Now().Add(q.claimTTL), entryID); err != nil {
		return 0, fmt.Errorf("claim queue entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return taskID, nil
}

// Ack deletes the claimed entries of a task. Unclaimed entries for the same
// task stay queued so a later re-enqueue is not lost.
func (q *Queue) Ack(ctx context.Context, taskID int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM task_queue WHERE task_id = $1 AND claimed_until IS NOT NULL", taskID)
	if err != nil {
		return fmt.Errorf("delete queue entries: %w", err)
	}
	return nil
}

// Len returns the number of queued or claimed entries
func (q *Queue) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue entries: %w", err)
	}
	return n, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}
