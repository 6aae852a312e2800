package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var _ driven.ProviderConfigStore = (*MockProviderConfigStore)(nil)

// MockProviderConfigStore is an in-memory ProviderConfigStore for testing.
// GetCalls counts reads so cache tests can tell hits from misses.
type MockProviderConfigStore struct {
	mu      sync.RWMutex
	configs map[domain.ProviderType]*domain.ProviderConfig

	GetCalls atomic.Int64

	// GetFn, if set, replaces Get
	GetFn func(provider domain.ProviderType) (*domain.ProviderConfig, error)
}

// NewMockProviderConfigStore creates a new MockProviderConfigStore
func NewMockProviderConfigStore() *MockProviderConfigStore {
	return &MockProviderConfigStore{configs: make(map[domain.ProviderType]*domain.ProviderConfig)}
}

func cloneConfig(cfg *domain.ProviderConfig) *domain.ProviderConfig {
	c := *cfg
	c.Settings = make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		c.Settings[k] = v
	}
	return &c
}

func (m *MockProviderConfigStore) Save(ctx context.Context, cfg *domain.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.Provider] = cloneConfig(cfg)
	return nil
}

func (m *MockProviderConfigStore) Get(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error) {
	m.GetCalls.Add(1)
	if m.GetFn != nil {
		return m.GetFn(provider)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[provider]
	if !ok {
		return nil, nil
	}
	return cloneConfig(cfg), nil
}

func (m *MockProviderConfigStore) List(ctx context.Context) ([]*domain.ProviderConfigSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ProviderConfigSummary
	for _, p := range domain.AllProviders() {
		if cfg, ok := m.configs[p]; ok {
			result = append(result, cfg.Summary())
		}
	}
	return result, nil
}

func (m *MockProviderConfigStore) Delete(ctx context.Context, provider domain.ProviderType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[provider]; !ok {
		return domain.ErrNotFound
	}
	delete(m.configs, provider)
	return nil
}
