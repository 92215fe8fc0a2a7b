package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service provides bot directory lookups.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a bot directory service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "bots")),
	}
}

const botColumns = `id, display_name, status, gateway_address, gateway_token,
	vision_enabled, vision_proxy_address, vision_model, created_at, updated_at`

// Get returns the bot record by id.
func (s *Service) Get(ctx context.Context, botID string) (Bot, error) {
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return Bot{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+botColumns+` FROM bots WHERE id = $1`, botID)
	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bot{}, ErrNotFound
		}
		return Bot{}, fmt.Errorf("get bot: %w", err)
	}
	return bot, nil
}

// ResolveTarget resolves the delivery descriptor for the bot. It returns
// ErrNotFound for a missing record, ErrNotRunning for a stopped bot, and
// ErrGatewayUnconfigured when the record carries no gateway address or token.
func (s *Service) ResolveTarget(ctx context.Context, botID string) (DeliveryTarget, error) {
	bot, err := s.Get(ctx, botID)
	if err != nil {
		return DeliveryTarget{}, err
	}
	return TargetFromBot(bot)
}

// TargetFromBot validates a bot record and converts it to a DeliveryTarget.
func TargetFromBot(bot Bot) (DeliveryTarget, error) {
	if !strings.EqualFold(strings.TrimSpace(bot.Status), BotStatusRunning) {
		return DeliveryTarget{}, ErrNotRunning
	}
	address := strings.TrimSpace(bot.GatewayAddress)
	token := strings.TrimSpace(bot.GatewayToken)
	if address == "" || token == "" {
		return DeliveryTarget{}, ErrGatewayUnconfigured
	}
	target := DeliveryTarget{
		BotID:              bot.ID,
		TextGatewayAddress: address,
		GatewayToken:       token,
		VisionModel:        strings.TrimSpace(bot.VisionModel),
	}
	proxy := strings.TrimSpace(bot.VisionProxyAddress)
	if bot.VisionEnabled && proxy != "" {
		target.HasVision = true
		target.VisionProxyAddress = proxy
	}
	return target, nil
}

func scanBot(row pgx.Row) (Bot, error) {
	var bot Bot
	err := row.Scan(
		&bot.ID,
		&bot.DisplayName,
		&bot.Status,
		&bot.GatewayAddress,
		&bot.GatewayToken,
		&bot.VisionEnabled,
		&bot.VisionProxyAddress,
		&bot.VisionModel,
		&bot.CreatedAt,
		&bot.UpdatedAt,
	)
	return bot, err
}
