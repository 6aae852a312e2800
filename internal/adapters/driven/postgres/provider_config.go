package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Ensure ProviderConfigStore implements the interface.
var _ driven.ProviderConfigStore = (*ProviderConfigStore)(nil)

// ProviderConfigStore implements driven.ProviderConfigStore using PostgreSQL.
// Settings are sealed as one blob; their key names and completeness are kept
// in clear columns so List never has to decrypt.
type ProviderConfigStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewProviderConfigStore creates a new PostgreSQL-backed provider config store.
func NewProviderConfigStore(db *DB, encryptor *SecretEncryptor) *ProviderConfigStore {
	return &ProviderConfigStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Save stores or updates a provider config (upsert).
func (s *ProviderConfigStore) Save(ctx context.Context, cfg *domain.ProviderConfig) error {
	settings := cfg.Settings
	if settings == nil {
		settings = map[string]string{}
	}
	blob, err := s.encryptor.Encrypt(settings, []byte(cfg.Provider))
	if err != nil {
		return fmt.Errorf("encrypt settings: %w", err)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO provider_configs (
			provider, settings_blob, setting_keys, configured, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider) DO UPDATE SET
			settings_blob = EXCLUDED.settings_blob,
			setting_keys = EXCLUDED.setting_keys,
			configured = EXCLUDED.configured,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		cfg.Provider,
		blob,
		pq.StringArray(keys),
		len(cfg.MissingSettings()) == 0,
		cfg.Enabled,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save provider config: %w", err)
	}
	return nil
}

// Get retrieves a provider config with decrypted settings.
// Returns nil, nil when the provider was never configured.
func (s *ProviderConfigStore) Get(ctx context.Context, provider domain.ProviderType) (*domain.ProviderConfig, error) {
	query := `
		SELECT provider, settings_blob, enabled, created_at, updated_at
		FROM provider_configs
		WHERE provider = $1
	`

	var cfg domain.ProviderConfig
	var blob []byte

	err := s.db.QueryRowContext(ctx, query, provider).Scan(
		&cfg.Provider,
		&blob,
		&cfg.Enabled,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider config: %w", err)
	}

	cfg.Settings = map[string]string{}
	if err := s.encryptor.Decrypt(blob, []byte(cfg.Provider), &cfg.Settings); err != nil {
		return nil, fmt.Errorf("decrypt settings: %w", err)
	}
	return &cfg, nil
}

// List retrieves all provider configs as summaries (no secrets).
func (s *ProviderConfigStore) List(ctx context.Context) ([]*domain.ProviderConfigSummary, error) {
	query := `
		SELECT provider, enabled, configured, setting_keys, updated_at
		FROM provider_configs
		ORDER BY provider
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.ProviderConfigSummary
	for rows.Next() {
		var summary domain.ProviderConfigSummary
		var keys pq.StringArray

		if err := rows.Scan(
			&summary.Provider,
			&summary.Enabled,
			&summary.Configured,
			&keys,
			&summary.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		summary.Keys = []string(keys)
		summaries = append(summaries, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider configs: %w", err)
	}
	return summaries, nil
}

// Delete removes a provider config.
func (s *ProviderConfigStore) Delete(ctx context.Context, provider domain.ProviderType) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM provider_configs WHERE provider = $1", provider)
	if err != nil {
		return fmt.Errorf("delete provider config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
