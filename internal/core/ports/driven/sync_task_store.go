package driven

import (
	"context"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// SyncTaskStore persists sync tasks and their per-record items.
//
// Status changes go through Transition so that concurrent writers (the
// runner and the API) never overwrite each other; counters are only
// changed through RecordItemOutcome, SkipSubmission and ResetFailedItems.
type SyncTaskStore interface {
	// Create inserts a task and its items in a single transaction.
	// Sets task.ID and the TaskID of every item.
	//
	// Ownership is checked inside that transaction: a record already targeted
	// by an active task driving the same channel fails the create with a
	// RecordError wrapping ErrConflict, as does a second active batch import.
	Create(ctx context.Context, task *domain.SyncTask, items []*domain.TaskItem) error

	// Get retrieves a task by ID
	Get(ctx context.Context, id int64) (*domain.SyncTask, error)

	// List returns a page of tasks, newest first, and the total match count
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.SyncTask, int, error)

	// Stats counts tasks per status. Paging fields of the filter are ignored.
	Stats(ctx context.Context, filter domain.TaskFilter) (*domain.TaskStats, error)

	// Transition writes the task's status, error and timestamps if its stored
	// status is one of from. Returns false if the stored status did not match.
	Transition(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (bool, error)

	// NextPendingItem returns the lowest-position pending item, or nil if none remain
	NextPendingItem(ctx context.Context, taskID int64) (*domain.TaskItem, error)

	// AppendItem adds an item at the end of a batch import and advances the
	// task cursor in one transaction. Sets item.Position.
	// Returns false without changing anything if the task already has an
	// item for item.RecordID.
	AppendItem(ctx context.Context, item *domain.TaskItem, cursor int) (bool, error)

	// SkipSubmission advances a batch import past a submission that gets no
	// item, counting it as outcome (synced or failed) in one transaction.
	SkipSubmission(ctx context.Context, taskID int64, cursor int, outcome domain.TaskItemStatus) error

	// RecordItemOutcome moves a pending item to its outcome and increments the
	// matching task counter in one transaction. Returns false without
	// changing anything if the item was no longer pending.
	RecordItemOutcome(ctx context.Context, item *domain.TaskItem) (bool, error)

	// ResetFailedItems moves failed items back to pending, takes them off
	// failed_records and transitions the task in one transaction. Failures
	// without an item (skipped submissions) stay counted.
	// Returns the number of items reset, or ErrConflict if the stored status
	// was not one of from.
	ResetFailedItems(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (int, error)

	// ListItems returns the items of a task in position order
	ListItems(ctx context.Context, taskID int64) ([]*domain.TaskItem, error)

	// ActiveOwners returns, for each of recordIDs targeted by an active task of
	// one of types, a reference to that task. A nil recordIDs means all records.
	ActiveOwners(ctx context.Context, types []domain.TaskType, recordIDs []int64) (map[int64]*domain.TaskRef, error)

	// ListStale returns pending or running tasks not updated since before
	ListStale(ctx context.Context, before time.Time) ([]*domain.SyncTask, error)

	// Delete removes a task and its items
	Delete(ctx context.Context, id int64) error
}
