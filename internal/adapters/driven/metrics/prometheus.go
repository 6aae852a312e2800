// Package metrics exports sync events as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.SyncMetrics = (*Metrics)(nil)

const (
	// Namespace is the namespace for all service metrics.
	Namespace = "algoassistant"

	// Subsystem is the subsystem for sync metrics.
	Subsystem = "sync"
)

// queueLenTimeout bounds the queue length lookup done on every scrape
const queueLenTimeout = 2 * time.Second

// Metrics holds the Prometheus collectors of the sync service
type Metrics struct {
	TasksCreated       *prometheus.CounterVec
	TasksFinished      *prometheus.CounterVec
	ItemsProcessed     *prometheus.CounterVec
	ProviderCalls      *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec
	ConfigCacheLookups *prometheus.CounterVec

	factory promauto.Factory
}

// NewMetrics creates and registers the sync metrics on reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		factory: factory,
		TasksCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "tasks_created_total",
				Help:      "Total number of sync tasks created",
			},
			[]string{"type"},
		),
		TasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "tasks_finished_total",
				Help:      "Total number of sync tasks that reached a final status",
			},
			[]string{"type", "status"},
		),
		ItemsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "items_processed_total",
				Help:      "Total number of task records processed, by outcome",
			},
			[]string{"type", "outcome"},
		),
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "provider_calls_total",
				Help:      "Total number of provider calls",
			},
			[]string{"provider", "result"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"provider"},
		),
		ConfigCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "config_cache_lookups_total",
				Help:      "Provider config cache lookups, by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveQueue exports the queue length as a gauge read at scrape time
func (m *Metrics) ObserveQueue(queue driven.TaskQueue) {
	m.factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "queue_depth",
			Help:      "Number of task IDs waiting in the queue",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), queueLenTimeout)
			defer cancel()
			n, err := queue.Len(ctx)
			if err != nil {
				return -1
			}
			return float64(n)
		},
	)
}

func (m *Metrics) TaskCreated(taskType domain.TaskType) {
	m.TasksCreated.WithLabelValues(string(taskType)).Inc()
}

func (m *Metrics) TaskFinished(taskType domain.TaskType, status domain.TaskStatus) {
	m.TasksFinished.WithLabelValues(string(taskType), string(status)).Inc()
}

func (m *Metrics) ItemProcessed(taskType domain.TaskType, outcome domain.TaskItemStatus) {
	m.ItemsProcessed.WithLabelValues(string(taskType), string(outcome)).Inc()
}

func (m *Metrics) ProviderCall(provider domain.ProviderType, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderCalls.WithLabelValues(string(provider), result).Inc()
	m.ProviderDuration.WithLabelValues(string(provider)).Observe(took.Seconds())
}

func (m *Metrics) ConfigCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ConfigCacheLookups.WithLabelValues(result).Inc()
}
