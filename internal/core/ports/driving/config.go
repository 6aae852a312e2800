package driving

import (
	"context"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// ConfigService manages provider configurations.
// Reads are served from a process-local cache.
type ConfigService interface {
	// List returns a summary of every provider; settings are never exposed
	List(ctx context.Context) ([]*domain.ProviderConfigSummary, error)

	// Get returns a provider's config with its settings redacted
	Get(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error)

	// Save creates or replaces a provider's config
	Save(ctx context.Context, provider domain.ProviderType, req SaveProviderConfigRequest) (*domain.ProviderConfig, error)

	// Delete removes a provider's config
	Delete(ctx context.Context, provider domain.ProviderType) error

	// Usable returns the decrypted config of a provider, or
	// ErrConfigurationMissing if it is absent, disabled or incomplete
	Usable(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error)
}

// SaveProviderConfigRequest is the body of a config update.
// Enabled defaults to true.
type SaveProviderConfigRequest struct {
	Settings map[string]string `json:"settings"`
	Enabled  *bool             `json:"enabled,omitempty"`
}
