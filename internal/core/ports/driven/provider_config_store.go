package driven

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// ProviderConfigStore persists provider configurations.
// One config per provider.
type ProviderConfigStore interface {
	// Save stores or updates provider config (encrypts settings)
	Save(ctx context.Context, cfg *domain.ProviderConfig) error

	// Get retrieves provider config by type (decrypts settings).
	// Returns nil, nil when the provider has never been configured.
	Get(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error)

	// List retrieves all provider configs (summaries only, no secrets)
	List(ctx context.Context) ([]*domain.ProviderConfigSummary, error)

	// Delete removes provider config
	Delete(ctx context.Context, provider domain.ProviderType) error
}
