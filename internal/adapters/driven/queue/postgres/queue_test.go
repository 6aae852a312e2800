package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q := NewQueue(db, time.Minute)
	q.poll = 5 * time.Millisecond
	return q, mock
}

func TestQueue_Enqueue(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectExec("INSERT INTO task_queue").WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, q.Enqueue(context.Background(), 12))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_DequeueClaimsEntry(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, task_id FROM task_queue").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id"}).AddRow(int64(3), int64(42)))
	mock.ExpectExec("UPDATE task_queue SET claimed_until").
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := q.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_DequeueEmptyReturnsZero(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, task_id FROM task_queue").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id"}))
	mock.ExpectRollback()

	id, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_AckDeletesClaimedEntries(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectExec("DELETE FROM task_queue WHERE task_id = \\$1 AND claimed_until IS NOT NULL").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, q.Ack(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Len(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
