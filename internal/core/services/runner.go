package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var _ driving.TaskRunner = (*TaskRunner)(nil)

// Runner defaults
const (
	DefaultTaskLockTTL    = 5 * time.Minute
	DefaultRecordLockWait = 30 * time.Second
	DefaultRecordLockPoll = 200 * time.Millisecond
	DefaultBatchPageSize  = 50
)

// TaskRunner executes sync tasks one record at a time.
//
// A runner holds the task lock for the whole run and a record lock for
// each record step. Before every record it re-reads the task, so a pause
// or delete takes effect at the next record boundary.
type TaskRunner struct {
	tasks   driven.SyncTaskStore
	records driven.RecordStore
	configs driving.ConfigService
	factory driven.ProviderFactory
	lock    driven.DistributedLock
	queue   driven.TaskQueue
	metrics driven.SyncMetrics
	logger  *slog.Logger

	rateLimit rate.Limit
	rateBurst int

	limitersMu sync.Mutex
	limiters   map[domain.ProviderType]*rate.Limiter

	taskLockTTL    time.Duration
	recordLockWait time.Duration
	recordLockPoll time.Duration
	batchPageSize  int
}

// TaskRunnerConfig holds dependencies and tuning for the TaskRunner
type TaskRunnerConfig struct {
	Tasks   driven.SyncTaskStore
	Records driven.RecordStore
	Configs driving.ConfigService
	Factory driven.ProviderFactory
	Lock    driven.DistributedLock
	Queue   driven.TaskQueue
	Metrics driven.SyncMetrics
	Logger  *slog.Logger

	// RateLimit bounds provider calls per second, per provider (0 = unlimited)
	RateLimit float64
	// RateBurst is the token bucket size (default: 1)
	RateBurst int

	TaskLockTTL    time.Duration // default: 5m, extended before every record
	RecordLockWait time.Duration // default: 30s
	RecordLockPoll time.Duration // default: 200ms
	BatchPageSize  int           // default: 50
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(cfg TaskRunnerConfig) *TaskRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	r := &TaskRunner{
		tasks:          cfg.Tasks,
		records:        cfg.Records,
		configs:        cfg.Configs,
		factory:        cfg.Factory,
		lock:           cfg.Lock,
		queue:          cfg.Queue,
		metrics:        metricsOrNop(cfg.Metrics),
		logger:         logger,
		rateLimit:      limit,
		rateBurst:      burst,
		limiters:       make(map[domain.ProviderType]*rate.Limiter),
		taskLockTTL:    cfg.TaskLockTTL,
		recordLockWait: cfg.RecordLockWait,
		recordLockPoll: cfg.RecordLockPoll,
		batchPageSize:  cfg.BatchPageSize,
	}
	if r.taskLockTTL <= 0 {
		r.taskLockTTL = DefaultTaskLockTTL
	}
	if r.recordLockWait <= 0 {
		r.recordLockWait = DefaultRecordLockWait
	}
	if r.recordLockPoll <= 0 {
		r.recordLockPoll = DefaultRecordLockPoll
	}
	if r.batchPageSize <= 0 {
		r.batchPageSize = DefaultBatchPageSize
	}
	return r
}

func taskLockName(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

func recordLockName(id int64, ch domain.Channel) string {
	return fmt.Sprintf("record:%d:%s", id, ch)
}

// limiter returns the shared token bucket of a provider
func (r *TaskRunner) limiter(p domain.ProviderType) *rate.Limiter {
	r.limitersMu.Lock()
	defer r.limitersMu.Unlock()
	l, ok := r.limiters[p]
	if !ok {
		l = rate.NewLimiter(r.rateLimit, r.rateBurst)
		r.limiters[p] = l
	}
	return l
}

// Run executes a task until it finishes, is paused or is deleted.
// Duplicate deliveries are harmless: only the holder of the task lock runs.
func (r *TaskRunner) Run(ctx context.Context, taskID int64) error {
	name := taskLockName(taskID)
	acquired, err := r.lock.Acquire(ctx, name, r.taskLockTTL)
	if err != nil {
		return fmt.Errorf("acquire task lock: %w", err)
	}
	if !acquired {
		r.logger.Debug("task held by another runner", "task_id", taskID)
		return nil
	}

	yielded, runErr := r.execute(ctx, taskID)

	if err := r.lock.Release(context.WithoutCancel(ctx), name); err != nil {
		r.logger.Warn("failed to release task lock", "task_id", taskID, "error", err)
	}

	// A resume or retry may have landed between our last status check and the
	// lock release, in which case its delivery found the lock held.
	if yielded && ctx.Err() == nil {
		if task, err := r.tasks.Get(ctx, taskID); err == nil && task.Status == domain.TaskStatusRunning {
			r.logger.Info("task resumed while yielding, requeueing", "task_id", taskID)
			if err := r.queue.Enqueue(ctx, taskID); err != nil {
				r.logger.Warn("failed to requeue task", "task_id", taskID, "error", err)
			}
		}
	}
	return runErr
}

// execute runs the task loop while the task lock is held.
// yielded reports that the loop stopped because the task left running.
func (r *TaskRunner) execute(ctx context.Context, taskID int64) (yielded bool, err error) {
	task, err := r.tasks.Get(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load task: %w", err)
	}

	switch task.Status {
	case domain.TaskStatusPending:
		task.MarkRunning()
		ok, err := r.tasks.Transition(ctx, task, domain.TaskStatusPending)
		if err != nil {
			return false, fmt.Errorf("start task: %w", err)
		}
		if !ok {
			return true, nil
		}
	case domain.TaskStatusRunning:
		// resumed, retried, or orphaned by a dead worker
	default:
		r.logger.Debug("task not runnable", "task_id", taskID, "status", task.Status)
		return false, nil
	}

	logger := r.logger.With("task_id", taskID, "task_type", task.Type)
	logger.Info("sync task running", "total_records", task.TotalRecords, "processed", task.Processed())

	cfg, err := r.configs.Usable(ctx, task.Type.Provider())
	if err != nil {
		return false, r.fail(ctx, task, logger, err)
	}
	provider, err := r.factory.ChannelProvider(task.Type, cfg)
	if err != nil {
		return false, r.fail(ctx, task, logger, fmt.Errorf("build provider: %w", err))
	}
	var source driven.SubmissionSource
	if task.Type.IsBatch() {
		if source, err = r.factory.SubmissionSource(cfg); err != nil {
			return false, r.fail(ctx, task, logger, fmt.Errorf("build submission source: %w", err))
		}
	}

	step := &recordStep{
		taskType: task.Type,
		channel:  task.Type.Channel(),
		provider: provider,
		limiter:  r.limiter(task.Type.Provider()),
		logger:   logger,
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		current, err := r.tasks.Get(ctx, taskID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("sync task deleted while running")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("reload task: %w", err)
		}
		if current.Status != domain.TaskStatusRunning {
			logger.Info("sync task stopped", "status", current.Status, "processed", current.Processed())
			return true, nil
		}
		if err := r.lock.Extend(ctx, taskLockName(taskID), r.taskLockTTL); err != nil {
			logger.Warn("failed to extend task lock", "error", err)
		}

		item, err := r.tasks.NextPendingItem(ctx, taskID)
		if err != nil {
			return false, fmt.Errorf("next item: %w", err)
		}
		if item == nil {
			if source != nil && current.Cursor < current.TotalRecords {
				n, err := r.importPage(ctx, current, source, logger)
				if err != nil {
					return false, r.fail(ctx, current, logger, err)
				}
				if n > 0 {
					continue
				}
				logger.Warn("submission source ended early", "cursor", current.Cursor, "total", current.TotalRecords)
			}
			return r.finish(ctx, current, logger)
		}

		if err := r.processItem(ctx, step, item); err != nil {
			return false, err
		}
	}
}

// finish moves an exhausted task to its final status
func (r *TaskRunner) finish(ctx context.Context, task *domain.SyncTask, logger *slog.Logger) (bool, error) {
	task.MarkFinished()
	ok, err := r.tasks.Transition(ctx, task, domain.TaskStatusRunning)
	if err != nil {
		return false, fmt.Errorf("finish task: %w", err)
	}
	if !ok {
		return true, nil
	}
	r.metrics.TaskFinished(task.Type, task.Status)
	logger.Info("sync task finished",
		"status", task.Status,
		"synced_records", task.SyncedRecords,
		"failed_records", task.FailedRecords,
	)
	return false, nil
}

// fail records a task-level failure. Per-record errors never reach here.
func (r *TaskRunner) fail(ctx context.Context, task *domain.SyncTask, logger *slog.Logger, cause error) error {
	logger.Error("sync task failed", "error", cause)
	task.MarkFailed(cause.Error())
	ok, err := r.tasks.Transition(context.WithoutCancel(ctx), task, domain.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	if ok {
		r.metrics.TaskFinished(task.Type, domain.TaskStatusFailed)
	}
	return nil
}

// recordStep is the generic channel action: one provider applied to one record
type recordStep struct {
	taskType domain.TaskType
	channel  domain.Channel
	provider driven.ChannelProvider
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// processItem syncs one record under its record lock and stores the outcome.
// It returns an error only when the run itself must stop.
func (r *TaskRunner) processItem(ctx context.Context, step *recordStep, item *domain.TaskItem) error {
	logger := step.logger.With("record_id", item.RecordID)
	name := recordLockName(item.RecordID, step.channel)

	got, err := r.acquireRecordLock(ctx, name)
	if err != nil {
		return err
	}
	if !got {
		return r.outcome(ctx, step, item, logger, domain.NewRecordError(domain.ErrConflict,
			fmt.Sprintf("%s channel is locked by another task", step.channel), item.RecordID))
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("failed to release record lock", "error", err)
		}
	}()

	record, err := r.records.Get(ctx, item.RecordID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.outcome(ctx, step, item, logger, domain.NewRecordError(domain.ErrValidation,
			"record no longer exists", item.RecordID))
	}
	if err != nil {
		return fmt.Errorf("load record %d: %w", item.RecordID, err)
	}

	// Holding the record lock means nobody else is syncing this channel,
	// so a syncing status was left behind by a dead worker.
	if record.ChannelStatus(step.channel) == domain.ChannelStatusSyncing {
		logger.Warn("recovering channel left syncing", "channel", step.channel)
		record.SetChannel(step.channel, domain.ChannelStatusFailed, nil)
		if err := r.records.SaveChannel(ctx, record, step.channel); err != nil {
			return fmt.Errorf("reset record %d: %w", record.ID, err)
		}
	}

	if err := record.CanStartSync(step.channel); err != nil {
		return r.outcome(ctx, step, item, logger, err)
	}

	if err := step.limiter.Wait(ctx); err != nil {
		return err
	}

	record.SetChannel(step.channel, domain.ChannelStatusSyncing, nil)
	if err := r.records.SaveChannel(ctx, record, step.channel); err != nil {
		return fmt.Errorf("mark record %d syncing: %w", record.ID, err)
	}

	start := time.Now()
	result, syncErr := step.provider.SyncOne(ctx, record)
	r.metrics.ProviderCall(step.taskType.Provider(), time.Since(start), syncErr)
	if syncErr == nil {
		syncErr = result.Validate(step.channel)
	} else if !errors.Is(syncErr, domain.ErrProviderError) {
		syncErr = fmt.Errorf("%w: %v", domain.ErrProviderError, syncErr)
	}

	// The record must not stay syncing because the run was cancelled mid-call
	writeCtx := context.WithoutCancel(ctx)
	if syncErr != nil {
		record.SetChannel(step.channel, domain.ChannelStatusFailed, nil)
	} else {
		record.SetChannel(step.channel, step.channel.SuccessStatus(), result)
	}
	if err := r.records.SaveChannel(writeCtx, record, step.channel); err != nil {
		return fmt.Errorf("save record %d: %w", record.ID, err)
	}
	return r.outcome(writeCtx, step, item, logger, syncErr)
}

// outcome stores the result of one item; a nil cause means synced
func (r *TaskRunner) outcome(ctx context.Context, step *recordStep, item *domain.TaskItem, logger *slog.Logger, cause error) error {
	item.Status = domain.TaskItemSynced
	item.Error = ""
	if cause != nil {
		item.Status = domain.TaskItemFailed
		item.Error = cause.Error()
		logger.Warn("record sync failed", "code", domain.ErrorCode(cause), "error", cause)
	} else {
		logger.Debug("record synced")
	}

	counted, err := r.tasks.RecordItemOutcome(ctx, item)
	if err != nil {
		return fmt.Errorf("store item outcome: %w", err)
	}
	if counted {
		r.metrics.ItemProcessed(step.taskType, item.Status)
	}
	return nil
}

// acquireRecordLock polls for a record lock until recordLockWait elapses.
// Returns false if the lock stayed held.
func (r *TaskRunner) acquireRecordLock(ctx context.Context, name string) (bool, error) {
	deadline := time.Now().Add(r.recordLockWait)
	for {
		acquired, err := r.lock.Acquire(ctx, name, r.taskLockTTL)
		if err != nil {
			return false, fmt.Errorf("acquire record lock: %w", err)
		}
		if acquired {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(r.recordLockPoll):
		}
	}
}

// importPage pulls the next page of a batch import, upserting a record and
// appending an item per submission. Submissions whose OJ detail is already
// completed count as synced without a provider call. Every submission is
// counted: an invalid one as failed, a repeat of a record the task already
// holds as synced.
func (r *TaskRunner) importPage(ctx context.Context, task *domain.SyncTask, source driven.SubmissionSource, logger *slog.Logger) (int, error) {
	limit := task.TotalRecords - task.Cursor
	if limit > r.batchPageSize {
		limit = r.batchPageSize
	}
	subs, err := source.ListSubmissions(ctx, task.Cursor, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: list submissions at %d: %v", domain.ErrProviderError, task.Cursor, err)
	}

	step := &recordStep{taskType: task.Type, channel: domain.ChannelOJ, logger: logger}
	cursor := task.Cursor
	for _, sub := range subs {
		cursor++
		if err := sub.Validate(); err != nil {
			logger.Warn("skipping invalid submission", "cursor", cursor, "code", domain.ErrorCode(err), "error", err)
			if err := r.tasks.SkipSubmission(ctx, task.ID, cursor, domain.TaskItemFailed); err != nil {
				return 0, fmt.Errorf("skip submission: %w", err)
			}
			r.metrics.ItemProcessed(task.Type, domain.TaskItemFailed)
			continue
		}

		record, err := r.upsertRecord(ctx, sub)
		if err != nil {
			return 0, err
		}

		item := &domain.TaskItem{
			TaskID:    task.ID,
			RecordID:  record.ID,
			Status:    domain.TaskItemPending,
			UpdatedAt: time.Now(),
		}
		appended, err := r.tasks.AppendItem(ctx, item, cursor)
		if err != nil {
			return 0, fmt.Errorf("append item: %w", err)
		}
		if !appended {
			logger.Debug("submission repeated in listing", "cursor", cursor, "record_id", record.ID)
			if err := r.tasks.SkipSubmission(ctx, task.ID, cursor, domain.TaskItemSynced); err != nil {
				return 0, fmt.Errorf("skip submission: %w", err)
			}
			continue
		}
		if record.OJSyncStatus == domain.ChannelStatusCompleted {
			if err := r.outcome(ctx, step, item, logger.With("record_id", record.ID), nil); err != nil {
				return 0, err
			}
		}
	}
	task.Cursor = cursor
	logger.Debug("imported submission page", "count", len(subs), "cursor", cursor)
	return len(subs), nil
}

func (r *TaskRunner) upsertRecord(ctx context.Context, sub *domain.Submission) (*domain.Record, error) {
	record, err := r.records.GetBySubmission(ctx, sub.OJType, sub.SubmissionID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load submission %s: %w", sub.SubmissionID, err)
	}

	record = domain.NewRecord(*sub)
	err = r.records.Create(ctx, record)
	if errors.Is(err, domain.ErrConflict) {
		return r.records.GetBySubmission(ctx, sub.OJType, sub.SubmissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("create record for submission %s: %w", sub.SubmissionID, err)
	}
	return record, nil
}
