package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue is a channel-backed TaskQueue for testing
type MockTaskQueue struct {
	ch chan int64

	mu       sync.Mutex
	enqueued []int64
	acked    []int64

	// EnqueueFn, if set, is called before a task ID is queued and may fail it
	EnqueueFn func(taskID int64) error
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{ch: make(chan int64, 1024)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, taskID int64) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(taskID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.enqueued = append(m.enqueued, taskID)
	m.mu.Unlock()
	m.ch <- taskID
	return nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (int64, error) {
	select {
	case id := <-m.ch:
		return id, nil
	case <-time.After(time.Duration(timeout) * time.Second):
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, taskID)
	return nil
}

func (m *MockTaskQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(m.ch)), nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Enqueued returns every task ID passed to Enqueue, in order
func (m *MockTaskQueue) Enqueued() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.enqueued...)
}

// Acked returns every task ID passed to Ack, in order
func (m *MockTaskQueue) Acked() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.acked...)
}

// Drain discards queued IDs without delivering them
func (m *MockTaskQueue) Drain() {
	for {
		select {
		case <-m.ch:
		default:
			return
		}
	}
}
