package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncTaskStore = (*SyncTaskStore)(nil)

const taskColumns = `id, type, status, record_ids, total_records, synced_records, failed_records,
	import_cursor, error, created_at, updated_at, started_at, completed_at`

const itemColumns = `task_id, record_id, position, status, error, updated_at`

// SyncTaskStore implements driven.SyncTaskStore using PostgreSQL.
// Counters are only changed with in-place increments so the API and a
// runner never overwrite each other's progress.
type SyncTaskStore struct {
	db *DB
}

// NewSyncTaskStore creates a new SyncTaskStore
func NewSyncTaskStore(db *DB) *SyncTaskStore {
	return &SyncTaskStore{db: db}
}

// Create inserts the task and its items atomically
func (s *SyncTaskStore) Create(ctx context.Context, task *domain.SyncTask, items []*domain.TaskItem) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := claimOwnership(ctx, tx, task, items); err != nil {
			return err
		}

		query := `
			INSERT INTO sync_tasks (
				type, status, record_ids, total_records, synced_records, failed_records,
				import_cursor, error, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, query,
			task.Type,
			task.Status,
			pq.Int64Array(task.RecordIDs),
			task.TotalRecords,
			task.SyncedRecords,
			task.FailedRecords,
			task.Cursor,
			task.Error,
			task.CreatedAt,
			task.UpdatedAt,
		).Scan(&task.ID)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if len(items) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_task_items (task_id, record_id, position, status, error, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			item.TaskID = task.ID
			if _, err := stmt.ExecContext(ctx,
				item.TaskID, item.RecordID, item.Position, item.Status, item.Error, item.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert item %d: %w", item.RecordID, err)
			}
		}
		return nil
	})
}

// ownerLockName keys the create-time lock of one record channel
func ownerLockName(recordID int64, ch domain.Channel) string {
	return fmt.Sprintf("owner:%d:%s", recordID, ch)
}

// claimOwnership serialises creates that target the same record channels and
// rejects records already owned by an active task of that channel. The
// transaction-scoped advisory locks are held until commit or rollback.
func claimOwnership(ctx context.Context, tx *sql.Tx, task *domain.SyncTask, items []*domain.TaskItem) error {
	active := statusArray(domain.ActiveTaskStatuses())

	if task.Type.IsBatch() {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)",
			hashLockName("owner:"+string(task.Type))); err != nil {
			return fmt.Errorf("lock %s imports: %w", task.Type, err)
		}
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sync_tasks WHERE type = $1 AND status = ANY($2)",
			task.Type, active).Scan(&n); err != nil {
			return fmt.Errorf("count active imports: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: a %s task is already active", domain.ErrConflict, task.Type)
		}
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	ch := task.Type.Channel()
	ids := make([]int64, len(items))
	keys := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.RecordID
		keys[i] = hashLockName(ownerLockName(item.RecordID, ch))
	}
	// one global order so overlapping creates cannot deadlock
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(k) FROM unnest($1::bigint[]) AS k", pq.Int64Array(keys)); err != nil {
		return fmt.Errorf("lock record channels: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT i.record_id
		FROM sync_task_items i
		JOIN sync_tasks t ON t.id = i.task_id
		WHERE t.status = ANY($1) AND t.type = ANY($2) AND i.record_id = ANY($3)
		ORDER BY i.record_id
	`, active, typeArray(domain.TaskTypesFor(ch)), pq.Int64Array(ids))
	if err != nil {
		return fmt.Errorf("check active owners: %w", err)
	}
	defer rows.Close()

	var busy []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan owner: %w", err)
		}
		busy = append(busy, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate owners: %w", err)
	}
	if len(busy) > 0 {
		return domain.NewRecordError(domain.ErrConflict,
			fmt.Sprintf("records already targeted by an active %s task", ch), busy...)
	}
	return nil
}

// Get retrieves a task by ID
func (s *SyncTaskStore) Get(ctx context.Context, id int64) (*domain.SyncTask, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM sync_tasks WHERE id = $1", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns a page of tasks, newest first
func (s *SyncTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.SyncTask, int, error) {
	var p placeholders
	where := taskWhere(&p, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_tasks"+where, p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := "SELECT " + taskColumns + " FROM sync_tasks" + where + " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + p.add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + p.add(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.SyncTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, total, nil
}

// Stats counts matching tasks per status
func (s *SyncTaskStore) Stats(ctx context.Context, filter domain.TaskFilter) (*domain.TaskStats, error) {
	var p placeholders
	query := "SELECT status, COUNT(*) FROM sync_tasks" + taskWhere(&p, filter) + " GROUP BY status"

	rows, err := s.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.TaskStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Add(domain.TaskStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Transition is a compare-and-set on the task status
func (s *SyncTaskStore) Transition(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (bool, error) {
	query := `
		UPDATE sync_tasks
		SET status = $1, error = $2, started_at = $3, completed_at = $4, updated_at = $5
		WHERE id = $6 AND status = ANY($7)
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Status,
		task.Error,
		NullTime(task.StartedAt),
		NullTime(task.CompletedAt),
		time.Now(),
		task.ID,
		statusArray(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}
	if err := s.exists(ctx, task.ID); err != nil {
		return false, err
	}
	return false, nil
}

// NextPendingItem returns the lowest-position pending item
func (s *SyncTaskStore) NextPendingItem(ctx context.Context, taskID int64) (*domain.TaskItem, error) {
	query := "SELECT " + itemColumns + ` FROM sync_task_items
		WHERE task_id = $1 AND status = $2
		ORDER BY position
		LIMIT 1`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, taskID, domain.TaskItemPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending item: %w", err)
	}
	return item, nil
}

// AppendItem adds an item after the last position and stores the cursor.
// A record the task already has an item for is not appended again.
func (s *SyncTaskStore) AppendItem(ctx context.Context, item *domain.TaskItem, cursor int) (bool, error) {
	appended := false
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM sync_task_items WHERE task_id = $1 AND record_id = $2)",
			item.TaskID, item.RecordID).Scan(&exists); err != nil {
			return fmt.Errorf("check item: %w", err)
		}
		if exists {
			return nil
		}

		result, err := tx.ExecContext(ctx,
			"UPDATE sync_tasks SET import_cursor = $1, updated_at = $2 WHERE id = $3",
			cursor, time.Now(), item.TaskID)
		if err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		} else if rows == 0 {
			return domain.ErrNotFound
		}

		query := `
			INSERT INTO sync_task_items (task_id, record_id, position, status, error, updated_at)
			SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5
			FROM sync_task_items WHERE task_id = $1
			RETURNING position
		`
		err = tx.QueryRowContext(ctx, query,
			item.TaskID, item.RecordID, item.Status, item.Error, item.UpdatedAt,
		).Scan(&item.Position)
		if err != nil {
			return fmt.Errorf("append item: %w", err)
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return appended, nil
}

// SkipSubmission moves the cursor past a submission and counts its outcome
func (s *SyncTaskStore) SkipSubmission(ctx context.Context, taskID int64, cursor int, outcome domain.TaskItemStatus) error {
	counter, err := outcomeCounter(outcome)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE sync_tasks SET import_cursor = $1, "+counter+" = "+counter+" + 1, updated_at = $2 WHERE id = $3",
		cursor, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("skip submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// outcomeCounter names the task counter an item outcome increments
func outcomeCounter(outcome domain.TaskItemStatus) (string, error) {
	switch outcome {
	case domain.TaskItemSynced:
		return "synced_records", nil
	case domain.TaskItemFailed:
		return "failed_records", nil
	}
	return "", fmt.Errorf("%w: item outcome %q", domain.ErrValidation, outcome)
}

// RecordItemOutcome stores a pending item's outcome and bumps the matching counter
func (s *SyncTaskStore) RecordItemOutcome(ctx context.Context, item *domain.TaskItem) (bool, error) {
	counter, err := outcomeCounter(item.Status)
	if err != nil {
		return false, err
	}

	counted := false
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		result, err := tx.ExecContext(ctx, `
			UPDATE sync_task_items
			SET status = $1, error = $2, updated_at = $3
			WHERE task_id = $4 AND position = $5 AND status = $6
		`, item.Status, item.Error, now, item.TaskID, item.Position, domain.TaskItemPending)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE sync_tasks SET "+counter+" = "+counter+" + 1, updated_at = $1 WHERE id = $2",
			now, item.TaskID); err != nil {
			return fmt.Errorf("increment %s: %w", counter, err)
		}
		item.UpdatedAt = now
		counted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return counted, nil
}

// ResetFailedItems re-queues failed items and transitions the task
func (s *SyncTaskStore) ResetFailedItems(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (int, error) {
	reset := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var current domain.TaskStatus
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM sync_tasks WHERE id = $1 FOR UPDATE", task.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock task: %w", err)
		}
		if !statusIn(current, from) {
			return fmt.Errorf("%w: task %d is %s", domain.ErrConflict, task.ID, current)
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx, `
			UPDATE sync_task_items
			SET status = $1, error = '', updated_at = $2
			WHERE task_id = $3 AND status = $4
		`, domain.TaskItemPending, now, task.ID, domain.TaskItemFailed)
		if err != nil {
			return fmt.Errorf("reset items: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		reset = int(n)

		_, err = tx.ExecContext(ctx, `
			UPDATE sync_tasks
			SET failed_records = failed_records - $1, status = $2, error = $3, started_at = $4, completed_at = $5, updated_at = $6
			WHERE id = $7
		`, reset, task.Status, task.Error, NullTime(task.StartedAt), NullTime(task.CompletedAt), now, task.ID)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// ListItems returns a task's items in position order
func (s *SyncTaskStore) ListItems(ctx context.Context, taskID int64) ([]*domain.TaskItem, error) {
	if err := s.exists(ctx, taskID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM sync_task_items WHERE task_id = $1 ORDER BY position", taskID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []*domain.TaskItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// ActiveOwners maps record IDs onto the newest active task of types targeting them
func (s *SyncTaskStore) ActiveOwners(ctx context.Context, types []domain.TaskType, recordIDs []int64) (map[int64]*domain.TaskRef, error) {
	owners := make(map[int64]*domain.TaskRef)
	if recordIDs != nil && len(recordIDs) == 0 {
		return owners, nil
	}

	var p placeholders
	query := `
		SELECT i.record_id, t.id, t.status, i.status
		FROM sync_task_items i
		JOIN sync_tasks t ON t.id = i.task_id
		WHERE t.status = ANY(` + p.add(statusArray(domain.ActiveTaskStatuses())) + `)
		  AND t.type = ANY(` + p.add(typeArray(types)) + `)`
	if recordIDs != nil {
		query += " AND i.record_id = ANY(" + p.add(pq.Int64Array(recordIDs)) + ")"
	}
	query += " ORDER BY t.id ASC"

	rows, err := s.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("query active owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		ref := &domain.TaskRef{}
		if err := rows.Scan(&recordID, &ref.TaskID, &ref.TaskStatus, &ref.ItemStatus); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners[recordID] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}
	return owners, nil
}

// ListStale returns pending or running tasks untouched since before
func (s *SyncTaskStore) ListStale(ctx context.Context, before time.Time) ([]*domain.SyncTask, error) {
	query := "SELECT " + taskColumns + ` FROM sync_tasks
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query,
		statusArray([]domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusRunning}), before)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.SyncTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes a task; its items go with it
func (s *SyncTaskStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sync_tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SyncTaskStore) exists(ctx context.Context, id int64) error {
	var found bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sync_tasks WHERE id = $1)", id).Scan(&found)
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func taskWhere(p *placeholders, filter domain.TaskFilter) string {
	var conds []string
	if filter.Type != "" {
		conds = append(conds, "type = "+p.add(filter.Type))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+p.add(filter.Status))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func statusArray(statuses []domain.TaskStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func typeArray(types []domain.TaskType) pq.StringArray {
	out := make(pq.StringArray, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func statusIn(s domain.TaskStatus, from []domain.TaskStatus) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

func scanTask(row rowScanner) (*domain.SyncTask, error) {
	var t domain.SyncTask
	var recordIDs pq.Int64Array
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.Status,
		&recordIDs,
		&t.TotalRecords,
		&t.SyncedRecords,
		&t.FailedRecords,
		&t.Cursor,
		&t.Error,
		&t.CreatedAt,
		&t.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if recordIDs != nil {
		t.RecordIDs = []int64(recordIDs)
	}
	t.StartedAt = TimePtr(startedAt)
	t.CompletedAt = TimePtr(completedAt)
	return &t, nil
}

func scanItem(row rowScanner) (*domain.TaskItem, error) {
	var it domain.TaskItem
	if err := row.Scan(&it.TaskID, &it.RecordID, &it.Position, &it.Status, &it.Error, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}
