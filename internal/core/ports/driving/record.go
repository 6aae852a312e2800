package driving

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// RecordService manages submission records
type RecordService interface {
	// Create adds a submission record with every channel pending
	Create(ctx context.Context, sub domain.Submission) (*domain.Record, error)

	// Get returns a record with the apparent status of each channel
	Get(ctx context.Context, id int64) (*domain.RecordDetail, error)

	// List returns a page of records matching the filter
	List(ctx context.Context, filter domain.RecordFilter) (*RecordList, error)

	// Delete removes a record
	Delete(ctx context.Context, id int64) error

	// Sync creates a single-record task of taskType for the record
	Sync(ctx context.Context, id int64, taskType domain.TaskType) (*domain.SyncTask, error)
}

// RecordList is a page of records
type RecordList struct {
	Items []*domain.RecordDetail `json:"items"`
	Total int                    `json:"total"`
}
