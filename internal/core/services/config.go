package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var _ driving.ConfigService = (*ConfigService)(nil)

// ConfigService manages provider configurations behind a ConfigCache
type ConfigService struct {
	store   driven.ProviderConfigStore
	cache   *ConfigCache
	metrics driven.SyncMetrics
	logger  *slog.Logger
}

// ConfigServiceConfig holds dependencies for the ConfigService
type ConfigServiceConfig struct {
	Store   driven.ProviderConfigStore
	Cache   *ConfigCache // Optional: defaults to a cache with DefaultConfigCacheTTL
	Metrics driven.SyncMetrics
	Logger  *slog.Logger
}

// NewConfigService creates a new ConfigService
func NewConfigService(cfg ConfigServiceConfig) *ConfigService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewConfigCache(0, nil)
	}
	return &ConfigService{
		store:   cfg.Store,
		cache:   cache,
		metrics: metricsOrNop(cfg.Metrics),
		logger:  logger,
	}
}

// load reads a config through the cache. A nil result means not configured.
func (s *ConfigService) load(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error) {
	if cfg, ok := s.cache.Get(provider); ok {
		s.metrics.ConfigCacheLookup(true)
		return cfg, nil
	}
	s.metrics.ConfigCacheLookup(false)

	gen := s.cache.Generation()
	cfg, err := s.store.Get(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load %s config: %w", provider, err)
	}
	if !s.cache.Fill(provider, cfg, gen) {
		s.logger.Debug("dropped stale config cache fill", "provider", provider)
	}
	return cfg, nil
}

// List returns a summary for every supported provider
func (s *ConfigService) List(ctx context.Context) ([]*domain.ProviderConfigSummary, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	byProvider := make(map[domain.ProviderType]*domain.ProviderConfigSummary, len(stored))
	for _, summary := range stored {
		byProvider[summary.Provider] = summary
	}

	result := make([]*domain.ProviderConfigSummary, 0, len(domain.AllProviders()))
	for _, p := range domain.AllProviders() {
		if summary, ok := byProvider[p]; ok {
			result = append(result, summary)
			continue
		}
		result = append(result, &domain.ProviderConfigSummary{Provider: p, Keys: []string{}})
	}
	return result, nil
}

// Get returns a provider's config with its settings redacted
func (s *ConfigService) Get(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, provider)
	}
	cfg, err := s.load(ctx, provider)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}
	return cfg.Redacted(), nil
}

// Save creates or replaces a provider's config and invalidates its cache entry
func (s *ConfigService) Save(ctx context.Context, provider domain.ProviderType, req driving.SaveProviderConfigRequest) (*domain.ProviderConfig, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, provider)
	}
	settings := make(map[string]string, len(req.Settings))
	for k, v := range req.Settings {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("%w: empty setting name", domain.ErrValidation)
		}
		settings[k] = v
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	existing, err := s.store.Get(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load %s config: %w", provider, err)
	}

	now := time.Now()
	cfg := &domain.ProviderConfig{
		Provider:  provider,
		Settings:  settings,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		cfg.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save %s config: %w", provider, err)
	}
	s.cache.Invalidate(provider)

	s.logger.Info("provider config saved",
		"provider", provider,
		"enabled", enabled,
		"missing", cfg.MissingSettings(),
	)
	return cfg.Redacted(), nil
}

// Delete removes a provider's config and invalidates its cache entry
func (s *ConfigService) Delete(ctx context.Context, provider domain.ProviderType) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, provider)
	}
	if err := s.store.Delete(ctx, provider); err != nil {
		return err
	}
	s.cache.Invalidate(provider)
	s.logger.Info("provider config deleted", "provider", provider)
	return nil
}

// Usable returns the decrypted config of provider if it can drive the provider
func (s *ConfigService) Usable(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error) {
	cfg, err := s.load(ctx, provider)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrConfigurationMissing, provider)
	}
	if err := cfg.Usable(); err != nil {
		return nil, err
	}
	return cfg, nil
}
