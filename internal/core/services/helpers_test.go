package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven/mocks"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires every service against in-memory mocks with all providers configured
type testEnv struct {
	records     *mocks.MockRecordStore
	tasks       *mocks.MockSyncTaskStore
	configStore *mocks.MockProviderConfigStore
	factory     *mocks.MockProviderFactory
	queue       *mocks.MockTaskQueue
	lock        *mocks.MockDistributedLock

	configs    *ConfigService
	syncs      *SyncTaskService
	runner     *TaskRunner
	recordsSvc *RecordService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()

	e := &testEnv{
		records:     mocks.NewMockRecordStore(),
		tasks:       mocks.NewMockSyncTaskStore(),
		configStore: mocks.NewMockProviderConfigStore(),
		factory:     mocks.NewMockProviderFactory(),
		queue:       mocks.NewMockTaskQueue(),
		lock:        mocks.NewMockDistributedLock(),
	}
	for _, p := range domain.AllProviders() {
		settings := map[string]string{}
		for _, key := range p.RequiredSettings() {
			settings[key] = "test-" + key
		}
		require.NoError(t, e.configStore.Save(context.Background(), &domain.ProviderConfig{
			Provider: p,
			Settings: settings,
			Enabled:  true,
		}))
	}

	e.configs = NewConfigService(ConfigServiceConfig{Store: e.configStore, Logger: logger})
	e.syncs = NewSyncTaskService(SyncTaskServiceConfig{
		Tasks:   e.tasks,
		Records: e.records,
		Configs: e.configs,
		Factory: e.factory,
		Queue:   e.queue,
		Logger:  logger,
	})
	e.runner = NewTaskRunner(TaskRunnerConfig{
		Tasks:          e.tasks,
		Records:        e.records,
		Configs:        e.configs,
		Factory:        e.factory,
		Lock:           e.lock,
		Queue:          e.queue,
		Logger:         logger,
		RecordLockWait: 30 * time.Millisecond,
		RecordLockPoll: 5 * time.Millisecond,
		BatchPageSize:  2,
	})
	e.recordsSvc = NewRecordService(e.records, e.tasks, e.syncs, logger)
	return e
}

// seed stores a record with the given OJ status; other channels are pending
func (e *testEnv) seed(t *testing.T, id int64, oj domain.ChannelStatus) *domain.Record {
	t.Helper()
	r := domain.NewRecord(domain.Submission{
		OJType:       "leetcode",
		SubmissionID: fmt.Sprintf("sub-%d", id),
		ProblemID:    100 + id,
		ProblemTitle: fmt.Sprintf("Problem %d", id),
		Language:     "go",
		Code:         "package main",
		SubmitTime:   baseTime.Add(time.Duration(id) * time.Minute),
	})
	r.ID = id
	r.OJSyncStatus = oj
	e.records.Put(r)
	return r
}

func (e *testEnv) record(t *testing.T, id int64) *domain.Record {
	t.Helper()
	r, err := e.records.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (e *testEnv) task(t *testing.T, id int64) *domain.SyncTask {
	t.Helper()
	task, err := e.tasks.Get(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (e *testEnv) create(t *testing.T, taskType domain.TaskType, ids ...int64) *domain.SyncTask {
	t.Helper()
	task, err := e.syncs.Create(context.Background(), driving.CreateSyncTaskRequest{Type: taskType, RecordIDs: ids})
	require.NoError(t, err)
	return task
}

func (e *testEnv) run(t *testing.T, id int64) *domain.SyncTask {
	t.Helper()
	require.NoError(t, e.runner.Run(context.Background(), id))
	return e.task(t, id)
}
