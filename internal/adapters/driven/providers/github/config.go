package github

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// DefaultAPIBaseURL is the public GitHub API
const DefaultAPIBaseURL = "https://api.github.com"

// Provider settings read from the github provider config
const (
	SettingToken      = "token"
	SettingRepo       = "repo"        // owner/name
	SettingBranch     = "branch"      // optional, repository default when empty
	SettingPathPrefix = "path_prefix" // optional, default "solutions"
	SettingAPIURL     = "api_url"     // optional, for GitHub Enterprise
)

// DefaultPathPrefix is the repository directory solutions are written under
const DefaultPathPrefix = "solutions"

// Config contains configuration for the GitHub client.
type Config struct {
	// APIBaseURL is the base URL for GitHub API.
	// Defaults to https://api.github.com for github.com.
	// For GitHub Enterprise, use https://<hostname>/api/v3
	APIBaseURL string

	// MaxRetries is the maximum number of retry attempts for rate-limited
	// and 5xx responses.
	MaxRetries int

	// Backoff is the base delay between 5xx retries (default: 1s)
	Backoff time.Duration

	// HTTPClient overrides the default client with a 30s timeout
	HTTPClient *http.Client
}

// DefaultConfig returns the default GitHub client configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: DefaultAPIBaseURL,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// target is where a provider config writes solutions
type target struct {
	owner      string
	repo       string
	branch     string
	pathPrefix string
}

// parseTarget reads the repository settings of a github provider config
func parseTarget(cfg *domain.ProviderConfig) (target, error) {
	repo := strings.TrimSpace(cfg.Setting(SettingRepo))
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return target{}, fmt.Errorf("%w: github repo must be owner/name, got %q", domain.ErrValidation, repo)
	}
	prefix := strings.Trim(cfg.Setting(SettingPathPrefix), "/")
	if prefix == "" {
		prefix = DefaultPathPrefix
	}
	return target{
		owner:      owner,
		repo:       name,
		branch:     strings.TrimSpace(cfg.Setting(SettingBranch)),
		pathPrefix: prefix,
	}, nil
}

func encodeContent(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
