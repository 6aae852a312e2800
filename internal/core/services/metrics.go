package services

import (
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.SyncMetrics = nopMetrics{}

// nopMetrics is used when no metrics sink is configured
type nopMetrics struct{}

func (nopMetrics) TaskCreated(domain.TaskType) {}

func (nopMetrics) TaskFinished(domain.TaskType, domain.TaskStatus) {}

func (nopMetrics) ItemProcessed(domain.TaskType, domain.TaskItemStatus) {}

func (nopMetrics) ProviderCall(domain.ProviderType, time.Duration, error) {}

func (nopMetrics) ConfigCacheLookup(bool) {}

func metricsOrNop(m driven.SyncMetrics) driven.SyncMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
