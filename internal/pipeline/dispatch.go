package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/botdock/botdock/internal/channel"
)

// ReplierResolver looks up the live replier for a channel config.
type ReplierResolver interface {
	Replier(configID string) (channel.Replier, bool)
}

// Dispatcher sends backend answers back to the originating conversation.
// Delivery is best effort: a failed reply is logged and dropped, never
// retried, and never propagated to the caller.
type Dispatcher struct {
	resolver ReplierResolver
	logger   *slog.Logger
}

// NewDispatcher creates a reply dispatcher.
func NewDispatcher(log *slog.Logger, resolver ReplierResolver) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		resolver: resolver,
		logger:   log.With(slog.String("component", "reply_dispatcher")),
	}
}

// Dispatch replies to the conversation the message came from. Blank
// answers are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, configID, conversationID, inReplyTo, answer string) {
	if strings.TrimSpace(answer) == "" {
		d.logger.Debug("empty answer; nothing to dispatch",
			slog.String("config_id", configID),
			slog.String("conversation_id", conversationID),
		)
		return
	}
	replier, ok := d.resolver.Replier(configID)
	if !ok {
		d.logger.Warn("no live connection for reply",
			slog.String("config_id", configID),
			slog.String("conversation_id", conversationID),
		)
		return
	}
	if err := replier.Reply(ctx, conversationID, inReplyTo, answer); err != nil {
		d.logger.Error("reply failed",
			slog.String("config_id", configID),
			slog.String("conversation_id", conversationID),
			slog.Any("error", err),
		)
	}
}
