package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler creates recurring sync tasks from cron schedules and re-enqueues
// tasks whose worker died.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate task creation across instances.
type Scheduler struct {
	syncs  driving.SyncTaskService
	tasks  driven.SyncTaskStore
	queue  driven.TaskQueue
	lock   driven.DistributedLock
	logger *slog.Logger

	schedules []domain.ScheduledTask
	cron      *cron.Cron
	now       func() time.Time

	// Internal state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	recoveryInterval time.Duration
	staleAfter       time.Duration
	lockTTL          time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	SyncTasks driving.SyncTaskService
	Tasks     driven.SyncTaskStore
	Queue     driven.TaskQueue
	Lock      driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger    *slog.Logger

	Schedules        []domain.ScheduledTask
	RecoveryInterval time.Duration // How often to look for orphaned tasks (default: 1m)
	StaleAfter       time.Duration // Age after which a pending/running task counts as orphaned (default: 10m)
	LockTTL          time.Duration // TTL for the schedule lock (default: 30s)

	// Now overrides the clock used for staleness (default: time.Now)
	Now func() time.Time
}

// NewScheduler creates a new scheduler. Invalid cron specs fail here rather
// than at the first tick.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		syncs:            cfg.SyncTasks,
		tasks:            cfg.Tasks,
		queue:            cfg.Queue,
		lock:             cfg.Lock,
		logger:           logger,
		schedules:        cfg.Schedules,
		cron:             cron.New(),
		now:              now,
		recoveryInterval: cfg.RecoveryInterval,
		staleAfter:       cfg.StaleAfter,
		lockTTL:          cfg.LockTTL,
	}
	if s.recoveryInterval <= 0 {
		s.recoveryInterval = time.Minute
	}
	if s.staleAfter <= 0 {
		s.staleAfter = 10 * time.Minute
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 30 * time.Second
	}

	for _, sched := range cfg.Schedules {
		if !sched.Type.IsValid() {
			return nil, fmt.Errorf("schedule %s: unknown task type %q", sched.Name, sched.Type)
		}
		sched := sched
		if _, err := s.cron.AddFunc(sched.Spec, func() { s.Trigger(context.Background(), sched) }); err != nil {
			return nil, fmt.Errorf("schedule %s: parse %q: %w", sched.Name, sched.Spec, err)
		}
	}
	return s, nil
}

// Start begins the cron schedule and the recovery loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting",
		"schedules", len(s.schedules),
		"recovery_interval", s.recoveryInterval,
		"stale_after", s.staleAfter,
	)

	s.cron.Start()
	go s.run(ctx)
	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight cron jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
	return nil
}

// run is the recovery loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.recoveryInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.Recover(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Recover(ctx)
		}
	}
}

// withLock runs fn if the named lock can be acquired. With release false the
// lock is left to expire, so instances firing the same tick skip it.
func (s *Scheduler) withLock(ctx context.Context, name string, release bool, fn func()) {
	if s.lock == nil {
		fn()
		return
	}
	acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		s.logger.Warn("failed to acquire scheduler lock", "lock", name, "error", err)
		return
	}
	if !acquired {
		s.logger.Debug("scheduler lock held by another instance, skipping", "lock", name)
		return
	}
	if release {
		defer func() {
			if err := s.lock.Release(ctx, name); err != nil {
				s.logger.Warn("failed to release scheduler lock", "lock", name, "error", err)
			}
		}()
	}
	fn()
}

// Trigger creates the task of a schedule now.
// Returns the created task, or nil if the lock was held or creation was refused.
func (s *Scheduler) Trigger(ctx context.Context, sched domain.ScheduledTask) *domain.SyncTask {
	var created *domain.SyncTask
	s.withLock(ctx, "schedule:"+sched.Name, false, func() {
		task, err := s.syncs.Create(ctx, driving.CreateSyncTaskRequest{Type: sched.Type})
		switch {
		case err == nil:
			created = task
			s.logger.Info("scheduled task created", "schedule", sched.Name, "task_id", task.ID)
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrConfigurationMissing):
			s.logger.Info("scheduled task skipped", "schedule", sched.Name, "reason", err)
		default:
			s.logger.Error("scheduled task failed", "schedule", sched.Name, "error", err)
		}
	})
	return created
}

// Recover re-enqueues pending and running tasks that stopped making progress.
// Runners refuse tasks whose lock is still held, so a live task is never run twice.
func (s *Scheduler) Recover(ctx context.Context) int {
	requeued := 0
	s.withLock(ctx, "recovery", true, func() {
		stale, err := s.tasks.ListStale(ctx, s.now().Add(-s.staleAfter))
		if err != nil {
			s.logger.Error("failed to list stale tasks", "error", err)
			return
		}
		for _, task := range stale {
			if err := s.queue.Enqueue(ctx, task.ID); err != nil {
				s.logger.Error("failed to requeue stale task", "task_id", task.ID, "error", err)
				continue
			}
			requeued++
			s.logger.Info("requeued stale task",
				"task_id", task.ID,
				"status", task.Status,
				"updated_at", task.UpdatedAt,
			)
		}
	})
	return requeued
}
