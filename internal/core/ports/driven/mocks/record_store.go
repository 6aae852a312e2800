package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.RecordStore = (*MockRecordStore)(nil)

// MockRecordStore is an in-memory RecordStore for testing.
// Records are copied on the way in and out so callers never share state with the store.
type MockRecordStore struct {
	mu      sync.RWMutex
	records map[int64]*domain.Record
	nextID  int64

	// SaveChannelFn, if set, is called before a channel write and may fail it
	SaveChannelFn func(record *domain.Record, ch domain.Channel) error
}

// NewMockRecordStore creates a new MockRecordStore
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{records: make(map[int64]*domain.Record)}
}

func cloneRecord(r *domain.Record) *domain.Record {
	c := *r
	if r.GitFilePath != nil {
		v := *r.GitFilePath
		c.GitFilePath = &v
	}
	if r.NotionURL != nil {
		v := *r.NotionURL
		c.NotionURL = &v
	}
	if r.AIAnalysis != nil {
		v := *r.AIAnalysis
		c.AIAnalysis = &v
	}
	return &c
}

func (m *MockRecordStore) Create(ctx context.Context, record *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.OJType == record.OJType && r.SubmissionID == record.SubmissionID {
			return fmt.Errorf("%w: submission %s/%s exists", domain.ErrConflict, record.OJType, record.SubmissionID)
		}
	}
	if record.ID == 0 {
		m.nextID++
		record.ID = m.nextID
	} else if record.ID > m.nextID {
		m.nextID = record.ID
	}
	m.records[record.ID] = cloneRecord(record)
	return nil
}

// Put stores a record as-is, for test setup
func (m *MockRecordStore) Put(record *domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID > m.nextID {
		m.nextID = record.ID
	}
	m.records[record.ID] = cloneRecord(record)
}

func (m *MockRecordStore) Get(ctx context.Context, id int64) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *MockRecordStore) GetMany(ctx context.Context, ids []int64) (map[int64]*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]*domain.Record, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out[id] = cloneRecord(r)
		}
	}
	return out, nil
}

func (m *MockRecordStore) GetBySubmission(ctx context.Context, ojType, submissionID string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.OJType == ojType && r.SubmissionID == submissionID {
			return cloneRecord(r), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRecordStore) matching(filter domain.RecordFilter) []*domain.Record {
	var result []*domain.Record
	for _, r := range m.records {
		if filter.Matches(r) {
			result = append(result, cloneRecord(r))
		}
	}
	desc := filter.Sort == domain.SortDescending
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.SubmitTime.Equal(b.SubmitTime) {
			if desc {
				return a.SubmitTime.After(b.SubmitTime)
			}
			return a.SubmitTime.Before(b.SubmitTime)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return result
}

func (m *MockRecordStore) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.matching(filter)
	total := len(all)
	if filter.Offset >= total {
		return []*domain.Record{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (m *MockRecordStore) ListIDs(ctx context.Context, filter domain.RecordFilter) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filter.Sort = domain.SortAscending
	var ids []int64
	for _, r := range m.matching(filter) {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *MockRecordStore) SaveChannel(ctx context.Context, record *domain.Record, ch domain.Channel) error {
	if m.SaveChannelFn != nil {
		if err := m.SaveChannelFn(record, ch); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[record.ID]
	if !ok {
		return domain.ErrNotFound
	}
	src := cloneRecord(record)
	switch ch {
	case domain.ChannelOJ:
		stored.OJSyncStatus = src.OJSyncStatus
	case domain.ChannelGitHub:
		stored.GitHubSyncStatus = src.GitHubSyncStatus
		stored.GitFilePath = src.GitFilePath
	case domain.ChannelAI:
		stored.AISyncStatus = src.AISyncStatus
		stored.AIAnalysis = src.AIAnalysis
	case domain.ChannelNotion:
		stored.NotionSyncStatus = src.NotionSyncStatus
		stored.NotionURL = src.NotionURL
	}
	stored.UpdatedAt = src.UpdatedAt
	return nil
}

func (m *MockRecordStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	return nil
}
