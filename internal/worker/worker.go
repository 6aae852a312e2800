package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

// Worker takes sync task IDs off the task queue and hands them to the runner.
type Worker struct {
	taskQueue driven.TaskQueue
	runner    driving.TaskRunner
	scheduler driving.Scheduler
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	errorBackoff   time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Runner         driving.TaskRunner
	Scheduler      driving.Scheduler // Optional
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	ErrorBackoff   time.Duration // Pause after a failed dequeue
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		runner:         cfg.Runner,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   errorBackoff,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	// Processing goroutines stop on either signal
	loopCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-w.stopCh:
		case <-loopCtx.Done():
		}
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(loopCtx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		cancel()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. A task in progress is interrupted at
// its next record boundary and left unacknowledged for redelivery.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		if err := w.scheduler.Stop(ctx); err != nil {
			w.logger.Warn("failed to stop scheduler", "error", err)
		}
	}

	select {
	case <-w.doneCh:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out")
		return
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker goroutine stopping")
			return
		}

		taskID, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(w.errorBackoff):
			case <-ctx.Done():
			}
			continue
		}

		if taskID == 0 {
			continue
		}

		w.processTask(ctx, taskID, logger)
	}
}

// processTask runs one delivered task. The delivery is acknowledged even
// when the run fails; the scheduler's recovery sweep re-enqueues tasks left
// running. Only a shutdown leaves it unacknowledged.
func (w *Worker) processTask(ctx context.Context, taskID int64, logger *slog.Logger) {
	logger = logger.With("task_id", taskID)
	logger.Debug("processing task")

	startTime := time.Now()
	err := w.runner.Run(ctx, taskID)
	duration := time.Since(startTime)

	if ctx.Err() != nil {
		logger.Info("task interrupted by shutdown", "duration", duration)
		return
	}

	if err != nil {
		logger.Error("task run failed", "duration", duration, "error", err)
	} else {
		logger.Info("task run finished", "duration", duration)
	}

	if ackErr := w.taskQueue.Ack(ctx, taskID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
