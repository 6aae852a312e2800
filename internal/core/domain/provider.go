package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProviderType identifies an external service a task delegates sync work to
type ProviderType string

const (
	ProviderGitHub   ProviderType = "github"
	ProviderLeetCode ProviderType = "leetcode"
	ProviderNotion   ProviderType = "notion"
	ProviderGemini   ProviderType = "gemini"
)

// AllProviders returns every supported provider
func AllProviders() []ProviderType {
	return []ProviderType{ProviderGitHub, ProviderLeetCode, ProviderNotion, ProviderGemini}
}

// IsValid reports whether p is a supported provider
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGitHub, ProviderLeetCode, ProviderNotion, ProviderGemini:
		return true
	}
	return false
}

// RequiredSettings lists the settings a provider cannot work without
func (p ProviderType) RequiredSettings() []string {
	switch p {
	case ProviderGitHub:
		return []string{"token", "repo"}
	case ProviderLeetCode:
		return []string{"session"}
	case ProviderNotion:
		return []string{"token", "database_id"}
	case ProviderGemini:
		return []string{"api_key"}
	}
	return nil
}

// SettingEndpoint optionally overrides the provider bridge URL
const SettingEndpoint = "endpoint"

// ProviderConfig holds the settings of one provider.
// Settings contain credentials and are encrypted at rest.
type ProviderConfig struct {
	Provider  ProviderType      `json:"provider"`
	Settings  map[string]string `json:"settings"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MissingSettings returns the required settings that are absent or blank
func (c *ProviderConfig) MissingSettings() []string {
	var missing []string
	for _, key := range c.Provider.RequiredSettings() {
		if strings.TrimSpace(c.Settings[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Usable returns ErrConfigurationMissing unless the config can drive its provider.
// A nil config is treated as missing.
func (c *ProviderConfig) Usable() error {
	if c == nil {
		return ErrConfigurationMissing
	}
	if !c.Enabled {
		return fmt.Errorf("%w: %s is disabled", ErrConfigurationMissing, c.Provider)
	}
	if missing := c.MissingSettings(); len(missing) > 0 {
		return fmt.Errorf("%w: %s requires %s", ErrConfigurationMissing, c.Provider, strings.Join(missing, ", "))
	}
	return nil
}

// Setting returns a single setting value
func (c *ProviderConfig) Setting(key string) string {
	if c == nil || c.Settings == nil {
		return ""
	}
	return c.Settings[key]
}

// Redacted returns a copy whose setting values are masked
func (c *ProviderConfig) Redacted() *ProviderConfig {
	out := *c
	out.Settings = make(map[string]string, len(c.Settings))
	for k, v := range c.Settings {
		if k == SettingEndpoint || len(v) == 0 {
			out.Settings[k] = v
			continue
		}
		out.Settings[k] = "********"
	}
	return &out
}

// Summary returns the secret-free summary of the config
func (c *ProviderConfig) Summary() *ProviderConfigSummary {
	keys := make([]string, 0, len(c.Settings))
	for k := range c.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &ProviderConfigSummary{
		Provider:   c.Provider,
		Enabled:    c.Enabled,
		Configured: len(c.MissingSettings()) == 0,
		Keys:       keys,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ProviderConfigSummary describes a config without exposing its settings
type ProviderConfigSummary struct {
	Provider   ProviderType `json:"provider"`
	Enabled    bool         `json:"enabled"`
	Configured bool         `json:"configured"`
	Keys       []string     `json:"keys"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
