package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed ConfigStore implementation.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a channel config store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "channel_store")),
	}
}

const configColumns = `id, bot_id, channel_type, app_id, app_secret,
	disabled, disabled_reason, created_at, updated_at`

// ListEnabledConfigs returns all channel configs that are not disabled.
func (s *Store) ListEnabledConfigs(ctx context.Context) ([]ChannelConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+configColumns+` FROM channel_configs WHERE NOT disabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list channel configs: %w", err)
	}
	defer rows.Close()

	var configs []ChannelConfig
	for rows.Next() {
		var cfg ChannelConfig
		if err := rows.Scan(
			&cfg.ID,
			&cfg.BotID,
			&cfg.ChannelType,
			&cfg.AppID,
			&cfg.AppSecret,
			&cfg.Disabled,
			&cfg.DisabledReason,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channel configs: %w", err)
	}
	return configs, nil
}

// MarkDisabled disables a channel config and records the reason.
func (s *Store) MarkDisabled(ctx context.Context, configID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE channel_configs SET disabled = TRUE, disabled_reason = $2, updated_at = now() WHERE id = $1`,
		configID, reason)
	if err != nil {
		return fmt.Errorf("disable channel config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("channel config not found: %s", configID)
	}
	return nil
}
