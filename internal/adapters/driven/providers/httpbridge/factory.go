// Package httpbridge implements the provider ports by forwarding calls to an
// external HTTP service that owns the GitHub, LeetCode, Gemini and Notion
// integrations.
//
// The bridge contract:
//
//	POST {endpoint}/sync/{channel}   {"record": {...}, "settings": {...}}
//	                                 -> {"git_file_path"|"notion_url"|"ai_analysis"}
//	GET  {endpoint}/submissions?offset=&limit=
//	                                 -> {"total": n, "submissions": [...]}
//
// The provider's credential setting is sent as a bearer token.
package httpbridge

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// Defaults
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultBackoff    = time.Second
)

// credentialSettings names the setting sent as the bearer token
var credentialSettings = map[domain.ProviderType]string{
	domain.ProviderGitHub:   "token",
	domain.ProviderLeetCode: "session",
	domain.ProviderNotion:   "token",
	domain.ProviderGemini:   "api_key",
}

// Config configures the bridge factory
type Config struct {
	// BaseURL is used when a provider config has no endpoint setting
	BaseURL string
	// Timeout bounds each HTTP request (default: 30s)
	Timeout time.Duration
	// MaxRetries for 5xx and 429 responses (default: 2, negative disables)
	MaxRetries int
	// Backoff is the base delay between retries (default: 1s)
	Backoff time.Duration
	// HTTPClient overrides the client; Timeout is ignored when set
	HTTPClient *http.Client
}

// Factory builds bridge-backed providers from provider configs
type Factory struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

// NewFactory creates a bridge factory
func NewFactory(cfg Config) *Factory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	} else if retries < 0 {
		retries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Factory{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		maxRetries: retries,
		backoff:    backoff,
	}
}

// ChannelProvider builds the provider for a task type
func (f *Factory) ChannelProvider(taskType domain.TaskType, cfg *domain.ProviderConfig) (driven.ChannelProvider, error) {
	if !taskType.IsValid() {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, taskType)
	}
	c, err := f.client(cfg)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		if k == domain.SettingEndpoint || k == credentialSettings[cfg.Provider] {
			continue
		}
		settings[k] = v
	}
	return &ChannelProvider{client: c, channel: taskType.Channel(), settings: settings}, nil
}

// SubmissionSource builds the batch import source
func (f *Factory) SubmissionSource(cfg *domain.ProviderConfig) (driven.SubmissionSource, error) {
	if cfg != nil && cfg.Provider != domain.ProviderLeetCode {
		return nil, fmt.Errorf("%w: %s does not list submissions", domain.ErrValidation, cfg.Provider)
	}
	c, err := f.client(cfg)
	if err != nil {
		return nil, err
	}
	return &SubmissionSource{client: c}, nil
}

func (f *Factory) client(cfg *domain.ProviderConfig) (*client, error) {
	if cfg == nil {
		return nil, domain.ErrConfigurationMissing
	}
	endpoint := cfg.Setting(domain.SettingEndpoint)
	if endpoint == "" {
		endpoint = f.baseURL
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: no bridge endpoint for %s", domain.ErrConfigurationMissing, cfg.Provider)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid bridge endpoint %q", domain.ErrValidation, endpoint)
	}
	return &client{
		httpClient: f.httpClient,
		baseURL:    strings.TrimSuffix(endpoint, "/"),
		credential: cfg.Setting(credentialSettings[cfg.Provider]),
		maxRetries: f.maxRetries,
		backoff:    f.backoff,
	}, nil
}
