package driven

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// RecordStore persists submission records and their channel state
type RecordStore interface {
	// Create inserts a record and sets its ID.
	// Returns ErrConflict if (oj_type, submission_id) already exists.
	Create(ctx context.Context, record *domain.Record) error

	// Get retrieves a record by ID
	Get(ctx context.Context, id int64) (*domain.Record, error)

	// GetMany retrieves the records that exist among ids, keyed by ID
	GetMany(ctx context.Context, ids []int64) (map[int64]*domain.Record, error)

	// GetBySubmission retrieves a record by its OJ-side identity
	GetBySubmission(ctx context.Context, ojType, submissionID string) (*domain.Record, error)

	// List returns a page of records matching the filter and the total match count
	List(ctx context.Context, filter domain.RecordFilter) ([]*domain.Record, int, error)

	// ListIDs returns the IDs of every record matching the filter,
	// ordered by submit time ascending. Paging is ignored.
	ListIDs(ctx context.Context, filter domain.RecordFilter) ([]int64, error)

	// SaveChannel writes the status and result column of one channel only.
	// Other channels of the same record are left untouched.
	SaveChannel(ctx context.Context, record *domain.Record, ch domain.Channel) error

	// Delete removes a record
	Delete(ctx context.Context, id int64) error
}
