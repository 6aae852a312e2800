package domain

import (
	"fmt"
	"time"
)

// TaskType identifies what a sync task does
type TaskType string

const (
	// TaskTypeGitHubSync pushes solutions to GitHub
	TaskTypeGitHubSync TaskType = "github_sync"
	// TaskTypeLeetCodeBatchSync imports every submission from LeetCode
	TaskTypeLeetCodeBatchSync TaskType = "leetcode_batch_sync"
	// TaskTypeLeetCodeDetailSync fetches canonical submission detail
	TaskTypeLeetCodeDetailSync TaskType = "leetcode_detail_sync"
	// TaskTypeNotionSync mirrors records into Notion
	TaskTypeNotionSync TaskType = "notion_sync"
	// TaskTypeAIAnalysis runs the AI analysis
	TaskTypeAIAnalysis TaskType = "ai_analysis"
	// TaskTypeGeminiSync runs the AI analysis through Gemini
	TaskTypeGeminiSync TaskType = "gemini_sync"
)

// AllTaskTypes returns every task type
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskTypeGitHubSync,
		TaskTypeLeetCodeBatchSync,
		TaskTypeLeetCodeDetailSync,
		TaskTypeNotionSync,
		TaskTypeAIAnalysis,
		TaskTypeGeminiSync,
	}
}

// IsValid reports whether t is a known task type
func (t TaskType) IsValid() bool {
	for _, known := range AllTaskTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Channel returns the record channel a task of this type drives
func (t TaskType) Channel() Channel {
	switch t {
	case TaskTypeGitHubSync:
		return ChannelGitHub
	case TaskTypeLeetCodeBatchSync, TaskTypeLeetCodeDetailSync:
		return ChannelOJ
	case TaskTypeNotionSync:
		return ChannelNotion
	case TaskTypeAIAnalysis, TaskTypeGeminiSync:
		return ChannelAI
	}
	return ""
}

// Provider returns the provider whose configuration a task of this type needs
func (t TaskType) Provider() ProviderType {
	switch t {
	case TaskTypeGitHubSync:
		return ProviderGitHub
	case TaskTypeLeetCodeBatchSync, TaskTypeLeetCodeDetailSync:
		return ProviderLeetCode
	case TaskTypeNotionSync:
		return ProviderNotion
	case TaskTypeAIAnalysis, TaskTypeGeminiSync:
		return ProviderGemini
	}
	return ""
}

// TaskTypesFor returns the task types that drive ch
func TaskTypesFor(ch Channel) []TaskType {
	var types []TaskType
	for _, t := range AllTaskTypes() {
		if t.Channel() == ch {
			types = append(types, t)
		}
	}
	return types
}

// IsBatch reports whether the task imports records instead of targeting existing ones
func (t TaskType) IsBatch() bool {
	return t == TaskTypeLeetCodeBatchSync
}

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusPaused    TaskStatus = "paused"
)

// AllTaskStatuses returns every task status
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusPending,
		TaskStatusRunning,
		TaskStatusCompleted,
		TaskStatusFailed,
		TaskStatusPaused,
	}
}

// IsValid reports whether s is a known task status
func (s TaskStatus) IsValid() bool {
	for _, known := range AllTaskStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive reports whether the task still owns its record channels
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s == TaskStatusPaused
}

// ActiveTaskStatuses returns the statuses in which a task still owns its records
func ActiveTaskStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusPaused}
}

// SyncTask is a batch operation applying one channel's sync to a set of records
type SyncTask struct {
	ID   int64    `json:"id"`
	Type TaskType `json:"type"`

	Status TaskStatus `json:"status"`

	// RecordIDs is nil for batch imports, which instead take their total
	// from the provider
	RecordIDs []int64 `json:"record_ids"`

	TotalRecords  int `json:"total_records"`
	SyncedRecords int `json:"synced_records"`
	FailedRecords int `json:"failed_records"`

	// Cursor is the submission offset reached by a batch import
	Cursor int `json:"cursor,omitempty"`

	// Error holds the task-level failure, not per-record errors
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSyncTask creates a pending task over recordIDs
func NewSyncTask(taskType TaskType, recordIDs []int64) *SyncTask {
	now := time.Now()
	return &SyncTask{
		Type:         taskType,
		Status:       TaskStatusPending,
		RecordIDs:    recordIDs,
		TotalRecords: len(recordIDs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewBatchSyncTask creates a pending import task of total submissions
func NewBatchSyncTask(total int) *SyncTask {
	t := NewSyncTask(TaskTypeLeetCodeBatchSync, nil)
	t.TotalRecords = total
	return t
}

// Processed returns how many records have an outcome
func (t *SyncTask) Processed() int {
	return t.SyncedRecords + t.FailedRecords
}

// Remaining returns how many records are still to be processed
func (t *SyncTask) Remaining() int {
	return t.TotalRecords - t.Processed()
}

// RecordSynced counts one successful record
func (t *SyncTask) RecordSynced() error {
	if t.Remaining() <= 0 {
		return fmt.Errorf("%w: task %d has no remaining records", ErrConflict, t.ID)
	}
	t.SyncedRecords++
	t.UpdatedAt = time.Now()
	return nil
}

// RecordFailed counts one failed record
func (t *SyncTask) RecordFailed() error {
	if t.Remaining() <= 0 {
		return fmt.Errorf("%w: task %d has no remaining records", ErrConflict, t.ID)
	}
	t.FailedRecords++
	t.UpdatedAt = time.Now()
	return nil
}

// MarkRunning moves the task to running
func (t *SyncTask) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.CompletedAt = nil
	t.Error = ""
	t.UpdatedAt = now
}

// FinalStatus is the status a task reaches once its queue is exhausted.
// Exhausting the queue completes the task unless every record failed.
func (t *SyncTask) FinalStatus() TaskStatus {
	if t.FailedRecords > 0 && t.FailedRecords == t.TotalRecords {
		return TaskStatusFailed
	}
	return TaskStatusCompleted
}

// MarkFinished sets the final status after the queue is exhausted
func (t *SyncTask) MarkFinished() {
	now := time.Now()
	t.Status = t.FinalStatus()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkFailed records a task-level failure
func (t *SyncTask) MarkFailed(reason string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.Error = reason
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// CanPause reports whether the task may be paused
func (t *SyncTask) CanPause() bool {
	return t.Status == TaskStatusRunning
}

// CanResume reports whether the task may be resumed
func (t *SyncTask) CanResume() bool {
	return t.Status == TaskStatusPaused
}

// CanRetry reports whether failed records may be retried.
// Only finished tasks retry; a paused task resumes instead.
func (t *SyncTask) CanRetry() bool {
	switch t.Status {
	case TaskStatusFailed:
		return true
	case TaskStatusCompleted:
		return t.FailedRecords > 0
	}
	return false
}

// CanDelete reports whether the task may be deleted
func (t *SyncTask) CanDelete() bool {
	return t.Status != TaskStatusRunning
}

// TaskItemStatus is the outcome of one record within a task
type TaskItemStatus string

const (
	TaskItemPending TaskItemStatus = "pending"
	TaskItemSynced  TaskItemStatus = "synced"
	TaskItemFailed  TaskItemStatus = "failed"
)

// TaskItem tracks one record of a task in its original position
type TaskItem struct {
	TaskID    int64          `json:"task_id"`
	RecordID  int64          `json:"record_id"`
	Position  int            `json:"position"`
	Status    TaskItemStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewTaskItems builds pending items in the order of recordIDs
func NewTaskItems(taskID int64, recordIDs []int64) []*TaskItem {
	now := time.Now()
	items := make([]*TaskItem, len(recordIDs))
	for i, id := range recordIDs {
		items[i] = &TaskItem{
			TaskID:    taskID,
			RecordID:  id,
			Position:  i,
			Status:    TaskItemPending,
			UpdatedAt: now,
		}
	}
	return items
}

// Page limits shared by every list operation
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// TaskFilter specifies criteria for listing tasks
type TaskFilter struct {
	// Type filters by task type (optional, empty means all)
	Type TaskType
	// Status filters by task status (optional, empty means all)
	Status TaskStatus
	// Limit is the maximum number of tasks to return
	Limit int
	// Offset is the number of tasks to skip (for pagination)
	Offset int
}

// Matches reports whether t satisfies the filter, ignoring paging
func (f TaskFilter) Matches(t *SyncTask) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// TaskStats aggregates task counts per status
type TaskStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    int64 `json:"paused"`
}

// Add counts n tasks of status s
func (s *TaskStats) Add(status TaskStatus, n int64) {
	s.Total += n
	switch status {
	case TaskStatusPending:
		s.Pending += n
	case TaskStatusRunning:
		s.Running += n
	case TaskStatusCompleted:
		s.Completed += n
	case TaskStatusFailed:
		s.Failed += n
	case TaskStatusPaused:
		s.Paused += n
	}
}

// TaskAction is a status change requested through the API
type TaskAction string

const (
	TaskActionPause  TaskAction = "pause"
	TaskActionResume TaskAction = "resume"
	TaskActionRetry  TaskAction = "retry"
)

// ParseTaskAction maps the status value sent by the UI onto an action.
// "stopped" (or "paused") pauses, "running" resumes, "retry" retries.
func ParseTaskAction(status string) (TaskAction, error) {
	switch status {
	case "stopped", "paused":
		return TaskActionPause, nil
	case "running":
		return TaskActionResume, nil
	case "retry":
		return TaskActionRetry, nil
	}
	return "", fmt.Errorf("%w: unsupported task status %q", ErrValidation, status)
}

// ScheduledTask is a recurring task creation rule
type ScheduledTask struct {
	// Name is a human-readable name for the schedule
	Name string `json:"name"`

	// Type is the task type to create when triggered
	Type TaskType `json:"type"`

	// Spec is a cron expression (robfig/cron syntax)
	Spec string `json:"spec"`
}
