package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestProviderConfigUsable(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ProviderConfig
		wantErr bool
	}{
		{"nil", nil, true},
		{"disabled", &ProviderConfig{Provider: ProviderGemini, Enabled: false, Settings: map[string]string{"api_key": "k"}}, true},
		{"missing setting", &ProviderConfig{Provider: ProviderGitHub, Enabled: true, Settings: map[string]string{"token": "t"}}, true},
		{"blank setting", &ProviderConfig{Provider: ProviderLeetCode, Enabled: true, Settings: map[string]string{"session": "  "}}, true},
		{"complete", &ProviderConfig{Provider: ProviderNotion, Enabled: true, Settings: map[string]string{"token": "t", "database_id": "d"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Usable()
			if tt.wantErr {
				if !errors.Is(err, ErrConfigurationMissing) {
					t.Errorf("expected ErrConfigurationMissing, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestProviderConfigMissingSettingsNamesKeys(t *testing.T) {
	cfg := &ProviderConfig{Provider: ProviderGitHub, Enabled: true, Settings: map[string]string{}}
	err := cfg.Usable()
	if err == nil || !strings.Contains(err.Error(), "token, repo") {
		t.Errorf("expected missing keys in error, got %v", err)
	}
}

func TestProviderConfigRedacted(t *testing.T) {
	cfg := &ProviderConfig{
		Provider: ProviderGitHub,
		Settings: map[string]string{"token": "ghp_secret", "repo": "", SettingEndpoint: "http://bridge"},
	}

	red := cfg.Redacted()

	if red.Settings["token"] != "********" {
		t.Errorf("expected token to be masked, got %q", red.Settings["token"])
	}
	if red.Settings["repo"] != "" {
		t.Error("empty values stay empty")
	}
	if red.Settings[SettingEndpoint] != "http://bridge" {
		t.Error("endpoint is not a secret")
	}
	if cfg.Settings["token"] != "ghp_secret" {
		t.Error("Redacted must not modify the original")
	}
}

func TestProviderConfigSummary(t *testing.T) {
	cfg := &ProviderConfig{
		Provider: ProviderGemini,
		Enabled:  true,
		Settings: map[string]string{"model": "flash", "api_key": "k"},
	}
	s := cfg.Summary()
	if !s.Configured || !s.Enabled {
		t.Error("expected configured and enabled")
	}
	if len(s.Keys) != 2 || s.Keys[0] != "api_key" || s.Keys[1] != "model" {
		t.Errorf("expected sorted keys, got %v", s.Keys)
	}
}

func TestProviderTypes(t *testing.T) {
	for _, p := range AllProviders() {
		if !p.IsValid() {
			t.Errorf("%s should be valid", p)
		}
		if len(p.RequiredSettings()) == 0 {
			t.Errorf("%s should require settings", p)
		}
	}
	if ProviderType("dropbox").IsValid() {
		t.Error("unexpected valid provider")
	}
}
