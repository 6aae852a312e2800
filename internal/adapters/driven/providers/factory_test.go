package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaohuanlin/algoassistant-sync/internal/adapters/driven/providers/github"
	"github.com/xiaohuanlin/algoassistant-sync/internal/adapters/driven/providers/httpbridge"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

func config(provider domain.ProviderType, settings map[string]string) *domain.ProviderConfig {
	return &domain.ProviderConfig{Provider: provider, Enabled: true, Settings: settings}
}

func TestFactory_RoutesGitHubNatively(t *testing.T) {
	f := NewFactory(httpbridge.NewFactory(httpbridge.Config{BaseURL: "http://bridge.local"}), nil)

	p, err := f.ChannelProvider(domain.TaskTypeGitHubSync, config(domain.ProviderGitHub, map[string]string{
		"token": "ghp_x",
		"repo":  "me/algo",
	}))
	require.NoError(t, err)
	assert.IsType(t, &github.Provider{}, p)
}

func TestFactory_EndpointOptsIntoBridge(t *testing.T) {
	f := NewFactory(httpbridge.NewFactory(httpbridge.Config{}), nil)

	p, err := f.ChannelProvider(domain.TaskTypeGitHubSync, config(domain.ProviderGitHub, map[string]string{
		"token":    "ghp_x",
		"repo":     "me/algo",
		"endpoint": "http://bridge.local",
	}))
	require.NoError(t, err)
	assert.IsType(t, &httpbridge.ChannelProvider{}, p)
	assert.Equal(t, domain.ChannelGitHub, p.Channel())
}

func TestFactory_OtherChannelsUseBridge(t *testing.T) {
	f := NewFactory(httpbridge.NewFactory(httpbridge.Config{BaseURL: "http://bridge.local"}), nil)

	p, err := f.ChannelProvider(domain.TaskTypeNotionSync, config(domain.ProviderNotion, map[string]string{
		"token":       "secret",
		"database_id": "db",
	}))
	require.NoError(t, err)
	assert.IsType(t, &httpbridge.ChannelProvider{}, p)

	src, err := f.SubmissionSource(config(domain.ProviderLeetCode, map[string]string{"session": "s"}))
	require.NoError(t, err)
	assert.IsType(t, &httpbridge.SubmissionSource{}, src)
}

func TestFactory_MissingConfig(t *testing.T) {
	f := NewFactory(httpbridge.NewFactory(httpbridge.Config{}), nil)

	_, err := f.ChannelProvider(domain.TaskTypeGitHubSync, nil)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}
