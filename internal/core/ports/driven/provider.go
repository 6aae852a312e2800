package driven

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// ChannelProvider performs one channel's sync for a single record.
// Calls are blocking; the runner invokes them sequentially per task.
type ChannelProvider interface {
	// Channel returns the channel this provider writes
	Channel() domain.Channel

	// SyncOne syncs one record and returns the channel's result fields.
	// A returned error fails only this record.
	SyncOne(ctx context.Context, record *domain.Record) (*domain.ChannelResult, error)
}

// SubmissionSource enumerates OJ submissions for batch imports
type SubmissionSource interface {
	// TotalSubmissions returns the number of submissions the OJ reports
	TotalSubmissions(ctx context.Context) (int, error)

	// ListSubmissions returns up to limit submissions starting at offset,
	// in a stable order. An empty page means the end was reached.
	ListSubmissions(ctx context.Context, offset, limit int) ([]*domain.Submission, error)
}

// ProviderFactory builds providers from configuration
type ProviderFactory interface {
	// ChannelProvider builds the provider a task type needs
	ChannelProvider(taskType domain.TaskType, cfg *domain.ProviderConfig) (ChannelProvider, error)

	// SubmissionSource builds the batch import source
	SubmissionSource(cfg *domain.ProviderConfig) (SubmissionSource, error)
}
