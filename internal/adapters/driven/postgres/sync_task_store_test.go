package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

var taskRowColumns = []string{
	"id", "type", "status", "record_ids", "total_records", "synced_records", "failed_records",
	"import_cursor", "error", "created_at", "updated_at", "started_at", "completed_at",
}

func TestSyncTaskStore_CreateInsertsItemsInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	task := domain.NewSyncTask(domain.TaskTypeGitHubSync, []int64{5, 2})
	items := domain.NewTaskItems(0, task.RecordIDs)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(k) FROM unnest($1::bigint[]) AS k")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT DISTINCT i.record_id").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}))
	mock.ExpectQuery("INSERT INTO sync_tasks").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(30)))
	prep := mock.ExpectPrepare("INSERT INTO sync_task_items")
	prep.ExpectExec().WithArgs(int64(30), int64(5), 0, "pending", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(30), int64(2), 1, "pending", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Create(context.Background(), task, items))
	assert.Equal(t, int64(30), task.ID)
	assert.Equal(t, int64(30), items[1].TaskID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_CreateRollsBackOnItemFailure(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	task := domain.NewSyncTask(domain.TaskTypeNotionSync, []int64{1})

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT DISTINCT i.record_id").WillReturnRows(sqlmock.NewRows([]string{"record_id"}))
	mock.ExpectQuery("INSERT INTO sync_tasks").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectPrepare("INSERT INTO sync_task_items").ExpectExec().WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.Create(context.Background(), task, domain.NewTaskItems(0, task.RecordIDs))
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_CreateRejectsOwnedRecords(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	task := domain.NewSyncTask(domain.TaskTypeGitHubSync, []int64{1, 4})

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT DISTINCT i.record_id").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(int64(4)))
	mock.ExpectRollback()

	err := store.Create(context.Background(), task, domain.NewTaskItems(0, task.RecordIDs))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []int64{4}, domain.RecordIDsOf(err))
	assert.Zero(t, task.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_CreateBatchRejectsActiveImport(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(hashLockName("owner:leetcode_batch_sync")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sync_tasks WHERE type = \\$1").
		WithArgs("leetcode_batch_sync", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.Create(context.Background(), domain.NewBatchSyncTask(40), nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	now := time.Now()

	mock.ExpectQuery("FROM sync_tasks WHERE id = \\$1").WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(4), "leetcode_batch_sync", "running", nil, 120, 10, 2, 12, "", now, now, now, nil))

	task, err := store.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, task.RecordIDs)
	assert.Equal(t, 12, task.Cursor)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	mock.ExpectQuery("FROM sync_tasks WHERE id").WillReturnRows(sqlmock.NewRows(taskRowColumns))
	_, err = store.Get(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncTaskStore_TransitionIsCompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	task := &domain.SyncTask{ID: 9, Status: domain.TaskStatusPaused}

	mock.ExpectExec("UPDATE sync_tasks SET status = \\$1.*WHERE id = \\$6 AND status = ANY\\(\\$7\\)").
		WithArgs("paused", "", nil, nil, sqlmock.AnyArg(), int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.Transition(context.Background(), task, domain.TaskStatusRunning)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE sync_tasks SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err = store.Transition(context.Background(), task, domain.TaskStatusRunning)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec("UPDATE sync_tasks SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = store.Transition(context.Background(), task, domain.TaskStatusRunning)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_NextPendingItem(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	itemCols := []string{"task_id", "record_id", "position", "status", "error", "updated_at"}

	mock.ExpectQuery("ORDER BY position").WithArgs(int64(3), "pending").
		WillReturnRows(sqlmock.NewRows(itemCols).AddRow(int64(3), int64(9), 2, "pending", "", time.Now()))
	item, err := store.NextPendingItem(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(9), item.RecordID)
	assert.Equal(t, 2, item.Position)

	mock.ExpectQuery("ORDER BY position").WillReturnRows(sqlmock.NewRows(itemCols))
	item, err = store.NextPendingItem(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSyncTaskStore_RecordItemOutcome(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	item := &domain.TaskItem{TaskID: 3, RecordID: 9, Position: 2, Status: domain.TaskItemFailed, Error: "boom"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sync_task_items").
		WithArgs("failed", "boom", sqlmock.AnyArg(), int64(3), 2, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_tasks SET failed_records = failed_records + 1")).
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	counted, err := store.RecordItemOutcome(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_RecordItemOutcomeNotPending(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	item := &domain.TaskItem{TaskID: 3, Position: 0, Status: domain.TaskItemSynced}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sync_task_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	counted, err := store.RecordItemOutcome(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, counted, "counters must not move for an item that is no longer pending")
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = store.RecordItemOutcome(context.Background(), &domain.TaskItem{Status: domain.TaskItemPending})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSyncTaskStore_AppendItem(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	item := &domain.TaskItem{TaskID: 4, RecordID: 77, Status: domain.TaskItemPending, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(4), int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE sync_tasks SET import_cursor").WithArgs(13, sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(position) + 1, 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(12))
	mock.ExpectCommit()

	appended, err := store.AppendItem(context.Background(), item, 13)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, 12, item.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_AppendItemSkipsKnownRecord(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	item := &domain.TaskItem{TaskID: 4, RecordID: 77, Status: domain.TaskItemPending, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(4), int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	appended, err := store.AppendItem(context.Background(), item, 14)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_SkipSubmission(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_tasks SET import_cursor = $1, failed_records = failed_records + 1")).
		WithArgs(9, sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("synced_records = synced_records + 1")).
		WithArgs(10, sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.SkipSubmission(context.Background(), 4, 9, domain.TaskItemFailed))
	assert.ErrorIs(t, store.SkipSubmission(context.Background(), 5, 10, domain.TaskItemSynced), domain.ErrNotFound)
	assert.ErrorIs(t, store.SkipSubmission(context.Background(), 5, 10, domain.TaskItemPending), domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_ResetFailedItems(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)
	task := &domain.SyncTask{ID: 6}
	task.MarkRunning()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM sync_tasks WHERE id = \\$1 FOR UPDATE").WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectExec("UPDATE sync_task_items").
		WithArgs("pending", sqlmock.AnyArg(), int64(6), "failed").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("SET failed_records = failed_records - $1")).
		WithArgs(2, "running", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.ResetFailedItems(context.Background(), task, domain.TaskStatusFailed, domain.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_ResetFailedItemsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("running"))
	mock.ExpectRollback()

	_, err := store.ResetFailedItems(context.Background(), &domain.SyncTask{ID: 6}, domain.TaskStatusFailed)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_ActiveOwnersNewestTaskWins(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectQuery("JOIN sync_tasks t ON t.id = i.task_id").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "id", "status", "status"}).
			AddRow(int64(1), int64(3), "paused", "pending").
			AddRow(int64(2), int64(3), "paused", "synced").
			AddRow(int64(1), int64(8), "running", "pending"))

	owners, err := store.ActiveOwners(context.Background(), domain.TaskTypesFor(domain.ChannelAI), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, &domain.TaskRef{TaskID: 8, TaskStatus: domain.TaskStatusRunning, ItemStatus: domain.TaskItemPending}, owners[1])
	assert.Equal(t, int64(3), owners[2].TaskID)

	owners, err = store.ActiveOwners(context.Background(), domain.TaskTypesFor(domain.ChannelAI), []int64{})
	require.NoError(t, err)
	assert.Empty(t, owners)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTaskStore_Stats(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM sync_tasks WHERE type = $1 GROUP BY status")).
		WithArgs("notion_sync").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("completed", int64(4)).
			AddRow("paused", int64(1)))

	stats, err := store.Stats(context.Background(), domain.TaskFilter{Type: domain.TaskTypeNotionSync})
	require.NoError(t, err)
	assert.Equal(t, &domain.TaskStats{Total: 5, Completed: 4, Paused: 1}, stats)
}

func TestSyncTaskStore_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSyncTaskStore(db)

	mock.ExpectExec("DELETE FROM sync_tasks").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(context.Background(), 2), domain.ErrNotFound)
}
