package services

import (
	"sync"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// DefaultConfigCacheTTL is how long a provider config is served from memory
const DefaultConfigCacheTTL = 5 * time.Minute

// ConfigCache is a process-local read-through cache of provider configs.
//
// Every invalidation bumps a generation counter. A fill carries the
// generation observed before its store read and is dropped if the
// generation moved, so a slow read cannot overwrite a newer write.
// Absent configs are cached as nil.
type ConfigCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	entries    map[domain.ProviderType]configEntry
	generation uint64
}

type configEntry struct {
	cfg     *domain.ProviderConfig
	expires time.Time
}

// NewConfigCache creates a cache with the given TTL.
// A zero ttl uses DefaultConfigCacheTTL; a nil now uses time.Now.
func NewConfigCache(ttl time.Duration, now func() time.Time) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ConfigCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[domain.ProviderType]configEntry),
	}
}

// Get returns the cached config and whether the entry was present and fresh
func (c *ConfigCache) Get(provider domain.ProviderType) (*domain.ProviderConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[provider]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, provider)
		return nil, false
	}
	return copyConfig(e.cfg), true
}

// Generation returns the current generation, to be passed to Fill
func (c *ConfigCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Fill stores cfg if no invalidation happened since gen was read.
// Returns false if the fill was dropped.
func (c *ConfigCache) Fill(provider domain.ProviderType, cfg *domain.ProviderConfig, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.entries[provider] = configEntry{cfg: copyConfig(cfg), expires: c.now().Add(c.ttl)}
	return true
}

// Invalidate drops the entry of provider and bumps the generation
func (c *ConfigCache) Invalidate(provider domain.ProviderType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, provider)
	c.generation++
}

func copyConfig(cfg *domain.ProviderConfig) *domain.ProviderConfig {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.Settings = make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		out.Settings[k] = v
	}
	return &out
}
