package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var _ driving.SyncTaskService = (*SyncTaskService)(nil)

// SyncTaskService validates, persists and controls sync tasks.
// Execution happens in the TaskRunner; this service only enqueues.
type SyncTaskService struct {
	tasks   driven.SyncTaskStore
	records driven.RecordStore
	configs driving.ConfigService
	factory driven.ProviderFactory
	queue   driven.TaskQueue
	metrics driven.SyncMetrics
	logger  *slog.Logger
}

// SyncTaskServiceConfig holds dependencies for the SyncTaskService
type SyncTaskServiceConfig struct {
	Tasks   driven.SyncTaskStore
	Records driven.RecordStore
	Configs driving.ConfigService
	Factory driven.ProviderFactory
	Queue   driven.TaskQueue
	Metrics driven.SyncMetrics
	Logger  *slog.Logger
}

// NewSyncTaskService creates a new SyncTaskService
func NewSyncTaskService(cfg SyncTaskServiceConfig) *SyncTaskService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncTaskService{
		tasks:   cfg.Tasks,
		records: cfg.Records,
		configs: cfg.Configs,
		factory: cfg.Factory,
		queue:   cfg.Queue,
		metrics: metricsOrNop(cfg.Metrics),
		logger:  logger,
	}
}

// Create validates a task request, persists the task with its items and enqueues it.
// No task is persisted when validation fails.
func (s *SyncTaskService) Create(ctx context.Context, req driving.CreateSyncTaskRequest) (*domain.SyncTask, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, req.Type)
	}

	cfg, err := s.configs.Usable(ctx, req.Type.Provider())
	if err != nil {
		return nil, err
	}

	var (
		task  *domain.SyncTask
		items []*domain.TaskItem
	)
	if req.Type.IsBatch() {
		task, err = s.newBatchTask(ctx, req, cfg)
	} else {
		var ids []int64
		ids, err = s.resolveRecords(ctx, req.Type, req.RecordIDs)
		if err == nil {
			task = domain.NewSyncTask(req.Type, ids)
			items = domain.NewTaskItems(0, ids)
		}
	}
	if err != nil {
		return nil, err
	}

	// The store repeats the ownership check atomically, so a concurrent
	// create that won the race surfaces here as a conflict.
	if err := s.tasks.Create(ctx, task, items); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.metrics.TaskCreated(task.Type)

	s.logger.Info("sync task created",
		"task_id", task.ID,
		"task_type", task.Type,
		"total_records", task.TotalRecords,
	)

	// A pending task that never reaches the queue is picked up by the recovery sweep
	if err := s.queue.Enqueue(ctx, task.ID); err != nil {
		s.logger.Warn("failed to enqueue sync task", "task_id", task.ID, "error", err)
	}
	return task, nil
}

func (s *SyncTaskService) newBatchTask(ctx context.Context, req driving.CreateSyncTaskRequest, cfg *domain.ProviderConfig) (*domain.SyncTask, error) {
	if len(req.RecordIDs) > 0 {
		return nil, fmt.Errorf("%w: %s does not take record ids", domain.ErrValidation, req.Type)
	}

	for _, status := range domain.ActiveTaskStatuses() {
		_, total, err := s.tasks.List(ctx, domain.TaskFilter{Type: req.Type, Status: status, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("list active imports: %w", err)
		}
		if total > 0 {
			return nil, fmt.Errorf("%w: a %s task is already %s", domain.ErrConflict, req.Type, status)
		}
	}

	source, err := s.factory.SubmissionSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: build submission source: %v", domain.ErrProviderError, err)
	}
	total, err := source.TotalSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count submissions: %v", domain.ErrProviderError, err)
	}
	return domain.NewBatchSyncTask(total), nil
}

// resolveRecords validates the requested record IDs for taskType.
// A nil ids resolves to every eligible record not owned by an active task.
func (s *SyncTaskService) resolveRecords(ctx context.Context, taskType domain.TaskType, ids []int64) ([]int64, error) {
	ch := taskType.Channel()
	if ids == nil {
		return s.resolveAll(ctx, taskType)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: record_ids is empty", domain.ErrValidation)
	}

	seen := make(map[int64]bool, len(ids))
	var dups []int64
	for _, id := range ids {
		if seen[id] {
			dups = append(dups, id)
		}
		seen[id] = true
	}
	if len(dups) > 0 {
		return nil, domain.NewRecordError(domain.ErrValidation, "duplicate record ids", dups...)
	}

	found, err := s.records.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewRecordError(domain.ErrValidation, "records do not exist", missing...)
	}

	if ch.IsDerived() {
		var notReady []int64
		for _, id := range ids {
			if found[id].OJSyncStatus != domain.ChannelStatusCompleted {
				notReady = append(notReady, id)
			}
		}
		if len(notReady) > 0 {
			return nil, domain.NewRecordError(domain.ErrPreconditionNotMet, "oj sync not completed", notReady...)
		}
	}

	owners, err := s.tasks.ActiveOwners(ctx, domain.TaskTypesFor(ch), ids)
	if err != nil {
		return nil, fmt.Errorf("load active tasks: %w", err)
	}
	var busy []int64
	for _, id := range ids {
		if _, ok := owners[id]; ok {
			busy = append(busy, id)
		}
	}
	if len(busy) > 0 {
		return nil, domain.NewRecordError(domain.ErrConflict,
			fmt.Sprintf("records already targeted by an active %s task", ch), busy...)
	}
	return ids, nil
}

func (s *SyncTaskService) resolveAll(ctx context.Context, taskType domain.TaskType) ([]int64, error) {
	ch := taskType.Channel()
	var filter domain.RecordFilter
	filter.SetStatuses(ch, []domain.ChannelStatus{domain.ChannelStatusPending, domain.ChannelStatusFailed})
	if ch.IsDerived() {
		filter.OJStatuses = []domain.ChannelStatus{domain.ChannelStatusCompleted}
	}

	candidates, err := s.records.ListIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	owners, err := s.tasks.ActiveOwners(ctx, domain.TaskTypesFor(ch), candidates)
	if err != nil {
		return nil, fmt.Errorf("load active tasks: %w", err)
	}

	ids := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := owners[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no records eligible for %s", domain.ErrValidation, taskType)
	}
	return ids, nil
}

// Get retrieves a task by ID
func (s *SyncTaskService) Get(ctx context.Context, id int64) (*domain.SyncTask, error) {
	return s.tasks.Get(ctx, id)
}

// List returns a page of tasks
func (s *SyncTaskService) List(ctx context.Context, filter domain.TaskFilter) (*driving.SyncTaskList, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, filter.Type)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown task status %q", domain.ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultPageLimit
	}
	if filter.Limit > domain.MaxPageLimit {
		filter.Limit = domain.MaxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &driving.SyncTaskList{Items: tasks, Total: total}, nil
}

// Stats counts tasks per status
func (s *SyncTaskService) Stats(ctx context.Context, filter domain.TaskFilter) (*domain.TaskStats, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, filter.Type)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown task status %q", domain.ErrValidation, filter.Status)
	}
	return s.tasks.Stats(ctx, filter)
}

// Items returns the per-record progress of a task
func (s *SyncTaskService) Items(ctx context.Context, id int64) ([]*domain.TaskItem, error) {
	return s.tasks.ListItems(ctx, id)
}

// Pause asks a running task to stop after its in-flight record
func (s *SyncTaskService) Pause(ctx context.Context, id int64) (*domain.SyncTask, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.CanPause() {
		return nil, fmt.Errorf("%w: cannot pause a %s task", domain.ErrConflict, task.Status)
	}

	task.Status = domain.TaskStatusPaused
	if err := s.transition(ctx, task, domain.TaskStatusRunning); err != nil {
		return nil, err
	}
	s.logger.Info("sync task paused", "task_id", id)
	return s.tasks.Get(ctx, id)
}

// Resume moves a paused task back to running and enqueues it
func (s *SyncTaskService) Resume(ctx context.Context, id int64) (*domain.SyncTask, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.CanResume() {
		return nil, fmt.Errorf("%w: cannot resume a %s task", domain.ErrConflict, task.Status)
	}

	task.MarkRunning()
	if err := s.transition(ctx, task, domain.TaskStatusPaused); err != nil {
		return nil, err
	}
	s.enqueue(ctx, id)
	s.logger.Info("sync task resumed", "task_id", id)
	return s.tasks.Get(ctx, id)
}

// Retry resets the failed items of a task and runs it again.
// Synced items are left alone, so their records are not processed twice.
func (s *SyncTaskService) Retry(ctx context.Context, id int64) (*domain.SyncTask, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.CanRetry() {
		return nil, fmt.Errorf("%w: cannot retry a %s task with %d failed records",
			domain.ErrConflict, task.Status, task.FailedRecords)
	}

	task.MarkRunning()
	reset, err := s.tasks.ResetFailedItems(ctx, task, domain.TaskStatusFailed, domain.TaskStatusCompleted)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: task %d changed status", domain.ErrConflict, id)
		}
		return nil, fmt.Errorf("reset failed items: %w", err)
	}
	s.enqueue(ctx, id)
	s.logger.Info("sync task retried", "task_id", id, "reset_items", reset)
	return s.tasks.Get(ctx, id)
}

// Apply performs a UI status action
func (s *SyncTaskService) Apply(ctx context.Context, id int64, action domain.TaskAction) (*domain.SyncTask, error) {
	switch action {
	case domain.TaskActionPause:
		return s.Pause(ctx, id)
	case domain.TaskActionResume:
		return s.Resume(ctx, id)
	case domain.TaskActionRetry:
		return s.Retry(ctx, id)
	}
	return nil, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
}

// Delete removes a task that is not running
func (s *SyncTaskService) Delete(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if !task.CanDelete() {
		return fmt.Errorf("%w: cannot delete a running task", domain.ErrConflict)
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("sync task deleted", "task_id", id, "status", task.Status)
	return nil
}

func (s *SyncTaskService) transition(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) error {
	ok, err := s.tasks.Transition(ctx, task, from...)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: task %d changed status", domain.ErrConflict, task.ID)
	}
	return nil
}

func (s *SyncTaskService) enqueue(ctx context.Context, id int64) {
	if err := s.queue.Enqueue(ctx, id); err != nil {
		s.logger.Warn("failed to enqueue sync task", "task_id", id, "error", err)
	}
}
