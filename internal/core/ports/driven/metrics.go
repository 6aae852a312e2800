package driven

import (
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// SyncMetrics receives sync events for monitoring.
// Implementations must be safe for concurrent use.
type SyncMetrics interface {
	TaskCreated(taskType domain.TaskType)
	TaskFinished(taskType domain.TaskType, status domain.TaskStatus)
	ItemProcessed(taskType domain.TaskType, outcome domain.TaskItemStatus)
	ProviderCall(provider domain.ProviderType, took time.Duration, err error)
	ConfigCacheLookup(hit bool)
}
