package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.SyncTaskStore = (*MockSyncTaskStore)(nil)

// MockSyncTaskStore is an in-memory SyncTaskStore for testing
type MockSyncTaskStore struct {
	mu     sync.RWMutex
	tasks  map[int64]*domain.SyncTask
	items  map[int64][]*domain.TaskItem
	nextID int64

	// CreateFn, if set, is called before a task is created and may fail it
	CreateFn func(task *domain.SyncTask) error
	// OutcomeFn, if set, is called after an item outcome has been stored
	OutcomeFn func(item *domain.TaskItem)
}

// NewMockSyncTaskStore creates a new MockSyncTaskStore
func NewMockSyncTaskStore() *MockSyncTaskStore {
	return &MockSyncTaskStore{
		tasks: make(map[int64]*domain.SyncTask),
		items: make(map[int64][]*domain.TaskItem),
	}
}

func cloneTask(t *domain.SyncTask) *domain.SyncTask {
	c := *t
	if t.RecordIDs != nil {
		c.RecordIDs = append([]int64(nil), t.RecordIDs...)
	}
	return &c
}

func (m *MockSyncTaskStore) Create(ctx context.Context, task *domain.SyncTask, items []*domain.TaskItem) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(task); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOwnership(task, items); err != nil {
		return err
	}
	m.nextID++
	task.ID = m.nextID
	m.tasks[task.ID] = cloneTask(task)
	stored := make([]*domain.TaskItem, len(items))
	for i, it := range items {
		it.TaskID = task.ID
		c := *it
		stored[i] = &c
	}
	m.items[task.ID] = stored
	return nil
}

// checkOwnership mirrors the create-time ownership rule; m.mu must be held
func (m *MockSyncTaskStore) checkOwnership(task *domain.SyncTask, items []*domain.TaskItem) error {
	if task.Type.IsBatch() {
		for _, t := range m.tasks {
			if t.Type == task.Type && t.Status.IsActive() {
				return fmt.Errorf("%w: a %s task is already active", domain.ErrConflict, task.Type)
			}
		}
		return nil
	}

	ch := task.Type.Channel()
	targeted := make(map[int64]bool, len(items))
	for _, it := range items {
		targeted[it.RecordID] = true
	}
	owned := make(map[int64]bool)
	for id, t := range m.tasks {
		if !t.Status.IsActive() || t.Type.Channel() != ch {
			continue
		}
		for _, it := range m.items[id] {
			if targeted[it.RecordID] {
				owned[it.RecordID] = true
			}
		}
	}
	if len(owned) == 0 {
		return nil
	}
	busy := make([]int64, 0, len(owned))
	for id := range owned {
		busy = append(busy, id)
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i] < busy[j] })
	return domain.NewRecordError(domain.ErrConflict,
		fmt.Sprintf("records already targeted by an active %s task", ch), busy...)
}

func (m *MockSyncTaskStore) Get(ctx context.Context, id int64) (*domain.SyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *MockSyncTaskStore) matching(filter domain.TaskFilter) []*domain.SyncTask {
	var result []*domain.SyncTask
	for _, t := range m.tasks {
		if filter.Matches(t) {
			result = append(result, cloneTask(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

func (m *MockSyncTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.SyncTask, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.matching(filter)
	total := len(all)
	if filter.Offset >= total {
		return []*domain.SyncTask{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (m *MockSyncTaskStore) Stats(ctx context.Context, filter domain.TaskFilter) (*domain.TaskStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.TaskStats{}
	for _, t := range m.matching(filter) {
		stats.Add(t.Status, 1)
	}
	return stats, nil
}

func statusIn(s domain.TaskStatus, from []domain.TaskStatus) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

func (m *MockSyncTaskStore) Transition(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !statusIn(stored.Status, from) {
		return false, nil
	}
	stored.Status = task.Status
	stored.Error = task.Error
	stored.StartedAt = task.StartedAt
	stored.CompletedAt = task.CompletedAt
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockSyncTaskStore) NextPendingItem(ctx context.Context, taskID int64) (*domain.TaskItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var next *domain.TaskItem
	for _, it := range m.items[taskID] {
		if it.Status == domain.TaskItemPending && (next == nil || it.Position < next.Position) {
			next = it
		}
	}
	if next == nil {
		return nil, nil
	}
	c := *next
	return &c, nil
}

func (m *MockSyncTaskStore) AppendItem(ctx context.Context, item *domain.TaskItem, cursor int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[item.TaskID]
	if !ok {
		return false, domain.ErrNotFound
	}
	for _, it := range m.items[item.TaskID] {
		if it.RecordID == item.RecordID {
			return false, nil
		}
	}
	task.Cursor = cursor
	task.UpdatedAt = time.Now()
	item.Position = len(m.items[item.TaskID])
	c := *item
	m.items[item.TaskID] = append(m.items[item.TaskID], &c)
	return true, nil
}

func (m *MockSyncTaskStore) SkipSubmission(ctx context.Context, taskID int64, cursor int, outcome domain.TaskItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	switch outcome {
	case domain.TaskItemSynced:
		task.SyncedRecords++
	case domain.TaskItemFailed:
		task.FailedRecords++
	default:
		return domain.ErrValidation
	}
	task.Cursor = cursor
	task.UpdatedAt = time.Now()
	return nil
}

func (m *MockSyncTaskStore) RecordItemOutcome(ctx context.Context, item *domain.TaskItem) (bool, error) {
	m.mu.Lock()
	task, ok := m.tasks[item.TaskID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	var stored *domain.TaskItem
	for _, it := range m.items[item.TaskID] {
		if it.RecordID == item.RecordID && it.Position == item.Position {
			stored = it
		}
	}
	if stored == nil || stored.Status != domain.TaskItemPending {
		m.mu.Unlock()
		return false, nil
	}
	stored.Status = item.Status
	stored.Error = item.Error
	stored.UpdatedAt = time.Now()
	switch item.Status {
	case domain.TaskItemSynced:
		task.SyncedRecords++
	case domain.TaskItemFailed:
		task.FailedRecords++
	}
	task.UpdatedAt = time.Now()
	c := *stored
	m.mu.Unlock()

	if m.OutcomeFn != nil {
		m.OutcomeFn(&c)
	}
	return true, nil
}

func (m *MockSyncTaskStore) ResetFailedItems(ctx context.Context, task *domain.SyncTask, from ...domain.TaskStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if !statusIn(stored.Status, from) {
		return 0, domain.ErrConflict
	}
	n := 0
	for _, it := range m.items[task.ID] {
		if it.Status == domain.TaskItemFailed {
			it.Status = domain.TaskItemPending
			it.Error = ""
			n++
		}
	}
	stored.FailedRecords -= n
	stored.Status = task.Status
	stored.Error = task.Error
	stored.StartedAt = task.StartedAt
	stored.CompletedAt = task.CompletedAt
	stored.UpdatedAt = time.Now()
	return n, nil
}

func (m *MockSyncTaskStore) ListItems(ctx context.Context, taskID int64) ([]*domain.TaskItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tasks[taskID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.TaskItem, 0, len(m.items[taskID]))
	for _, it := range m.items[taskID] {
		c := *it
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MockSyncTaskStore) ActiveOwners(ctx context.Context, types []domain.TaskType, recordIDs []int64) (map[int64]*domain.TaskRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[int64]bool, len(recordIDs))
	for _, id := range recordIDs {
		wanted[id] = true
	}
	owners := make(map[int64]*domain.TaskRef)
	for id, t := range m.tasks {
		if !t.Status.IsActive() || !typeIn(t.Type, types) {
			continue
		}
		for _, it := range m.items[id] {
			if recordIDs != nil && !wanted[it.RecordID] {
				continue
			}
			if prev, ok := owners[it.RecordID]; ok && prev.TaskID > id {
				continue
			}
			owners[it.RecordID] = &domain.TaskRef{TaskID: id, TaskStatus: t.Status, ItemStatus: it.Status}
		}
	}
	return owners, nil
}

func typeIn(t domain.TaskType, types []domain.TaskType) bool {
	for _, known := range types {
		if t == known {
			return true
		}
	}
	return false
}

func (m *MockSyncTaskStore) ListStale(ctx context.Context, before time.Time) ([]*domain.SyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.SyncTask
	for _, t := range m.tasks {
		if (t.Status == domain.TaskStatusPending || t.Status == domain.TaskStatusRunning) && t.UpdatedAt.Before(before) {
			result = append(result, cloneTask(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockSyncTaskStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	delete(m.items, id)
	return nil
}

// SetUpdatedAt backdates a task, for recovery tests
func (m *MockSyncTaskStore) SetUpdatedAt(id int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.UpdatedAt = at
	}
}
