// Package providers selects the provider implementation for each task type.
package providers

import (
	"github.com/xiaohuanlin/algoassistant-sync/internal/adapters/driven/providers/github"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// Factory writes GitHub solutions natively and sends every other channel,
// and batch imports, through the bridge. A github config carrying an
// endpoint setting opts back into the bridge.
type Factory struct {
	bridge driven.ProviderFactory
	github *github.Config
}

// NewFactory creates a Factory. A nil githubCfg uses github.DefaultConfig.
func NewFactory(bridge driven.ProviderFactory, githubCfg *github.Config) *Factory {
	if githubCfg == nil {
		githubCfg = github.DefaultConfig()
	}
	return &Factory{bridge: bridge, github: githubCfg}
}

// ChannelProvider builds the provider for a task type
func (f *Factory) ChannelProvider(taskType domain.TaskType, cfg *domain.ProviderConfig) (driven.ChannelProvider, error) {
	if taskType == domain.TaskTypeGitHubSync && cfg != nil && cfg.Setting(domain.SettingEndpoint) == "" {
		return github.NewProvider(cfg, f.github)
	}
	return f.bridge.ChannelProvider(taskType, cfg)
}

// SubmissionSource builds the batch import source
func (f *Factory) SubmissionSource(cfg *domain.ProviderConfig) (driven.SubmissionSource, error) {
	return f.bridge.SubmissionSource(cfg)
}
