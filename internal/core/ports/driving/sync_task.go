package driving

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// SyncTaskService manages the lifecycle of sync tasks
type SyncTaskService interface {
	// Create validates and persists a pending task, then enqueues it.
	// A nil RecordIDs on a non-batch type targets every record whose channel can start.
	Create(ctx context.Context, req CreateSyncTaskRequest) (*domain.SyncTask, error)

	// Get retrieves a task by ID
	Get(ctx context.Context, id int64) (*domain.SyncTask, error)

	// List returns a page of tasks and the total match count
	List(ctx context.Context, filter domain.TaskFilter) (*SyncTaskList, error)

	// Stats counts tasks per status
	Stats(ctx context.Context, filter domain.TaskFilter) (*domain.TaskStats, error)

	// Items returns the per-record progress of a task in original order
	Items(ctx context.Context, id int64) ([]*domain.TaskItem, error)

	// Pause stops a running task at the next record boundary
	Pause(ctx context.Context, id int64) (*domain.SyncTask, error)

	// Resume continues a paused task from its first unprocessed record
	Resume(ctx context.Context, id int64) (*domain.SyncTask, error)

	// Retry re-runs only the failed records of a task
	Retry(ctx context.Context, id int64) (*domain.SyncTask, error)

	// Apply performs the action the UI requested through a status update
	Apply(ctx context.Context, id int64, action domain.TaskAction) (*domain.SyncTask, error)

	// Delete removes a task that is not running. Record statuses are kept.
	Delete(ctx context.Context, id int64) error
}

// CreateSyncTaskRequest is the body of a task creation request
type CreateSyncTaskRequest struct {
	Type      domain.TaskType `json:"type"`
	RecordIDs []int64         `json:"record_ids"`
}

// SyncTaskList is a page of tasks
type SyncTaskList struct {
	Items []*domain.SyncTask `json:"items"`
	Total int                `json:"total"`
}

// TaskRunner executes sync tasks
type TaskRunner interface {
	// Run processes a task until it finishes, is paused or is deleted.
	// Returns nil without doing anything if another runner holds the task.
	Run(ctx context.Context, taskID int64) error
}

// Scheduler creates recurring tasks and recovers orphaned ones
type Scheduler interface {
	// Start begins the schedule and recovery loops
	Start(ctx context.Context) error

	// Stop stops the scheduler and waits for running jobs
	Stop(ctx context.Context) error
}
