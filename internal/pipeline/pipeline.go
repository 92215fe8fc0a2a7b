package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/botdock/botdock/internal/bots"
	"github.com/botdock/botdock/internal/channel"
)

// Outcome classifies how the pipeline finished with one inbound event.
type Outcome string

const (
	OutcomeDone                Outcome = "done"
	OutcomeSkippedDuplicate    Outcome = "skipped_duplicate"
	OutcomeSkippedEmpty        Outcome = "skipped_empty"
	OutcomeSkippedUnsupported  Outcome = "skipped_unsupported_type"
	OutcomeSkippedNoBot        Outcome = "skipped_no_bot"
	OutcomeSkippedNotAddressed Outcome = "skipped_not_addressed"
	OutcomeFailed              Outcome = "failed"
)

// TargetResolver resolves a bot id to its delivery target.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, botID string) (bots.DeliveryTarget, error)
}

// FetcherResolver looks up the live attachment fetcher for a channel config.
type FetcherResolver interface {
	Fetcher(configID string) (channel.AttachmentFetcher, bool)
}

// TeardownFunc disables a channel config whose bot no longer exists.
type TeardownFunc func(ctx context.Context, configID, reason string)

// Pipeline orchestrates the inbound stages: dedup, normalization, target
// resolution, content building, delivery, and reply dispatch.
type Pipeline struct {
	deduper    *Deduper
	builder    *Builder
	router     *Router
	dispatcher *Dispatcher
	targets    TargetResolver
	fetchers   FetcherResolver
	teardown   TeardownFunc
	logger     *slog.Logger
}

// New assembles the pipeline. teardown may be nil when config teardown is
// not wanted (tests).
func New(log *slog.Logger, deduper *Deduper, builder *Builder, router *Router, dispatcher *Dispatcher, targets TargetResolver, fetchers FetcherResolver, teardown TeardownFunc) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		deduper:    deduper,
		builder:    builder,
		router:     router,
		dispatcher: dispatcher,
		targets:    targets,
		fetchers:   fetchers,
		teardown:   teardown,
		logger:     log.With(slog.String("component", "pipeline")),
	}
}

// HandleInbound is the channel.InboundHandler entry point. A panic while
// processing one message is recovered and logged; it never takes down the
// channel connection.
func (p *Pipeline) HandleInbound(ctx context.Context, cfg channel.ChannelConfig, event channel.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing inbound message",
				slog.String("message_id", event.MessageID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	outcome := p.Process(ctx, event)
	p.logger.Debug("inbound message processed",
		slog.String("channel", string(event.Channel)),
		slog.String("message_id", event.MessageID),
		slog.String("outcome", string(outcome)),
	)
}

// Process runs one inbound event through every stage and reports the outcome.
func (p *Pipeline) Process(ctx context.Context, event channel.InboundEvent) Outcome {
	if !p.deduper.ShouldProcess(event.MessageID) {
		return OutcomeSkippedDuplicate
	}

	parsed, supported := Normalize(event.MessageType, event.RawContent)
	if !supported {
		return OutcomeSkippedUnsupported
	}
	if parsed.IsEmpty() {
		return OutcomeSkippedEmpty
	}

	// Group conversations only engage the bot when it is mentioned.
	if event.GroupChat() && !event.Mentioned {
		return OutcomeSkippedNotAddressed
	}

	target, err := p.targets.ResolveTarget(ctx, event.BotID)
	switch {
	case errors.Is(err, bots.ErrNotFound):
		p.logger.Warn("bot record missing; tearing down channel config",
			slog.String("bot_id", event.BotID),
			slog.String("config_id", event.ConfigID),
		)
		if p.teardown != nil {
			p.teardown(ctx, event.ConfigID, "bot record missing")
		}
		return OutcomeSkippedNoBot
	case errors.Is(err, bots.ErrNotRunning):
		p.logger.Debug("bot not running; message dropped",
			slog.String("bot_id", event.BotID),
			slog.String("message_id", event.MessageID),
		)
		return OutcomeSkippedNoBot
	case err != nil:
		p.logger.Error("target resolution failed",
			slog.String("bot_id", event.BotID),
			slog.Any("error", err),
		)
		return OutcomeFailed
	}

	var fetcher channel.AttachmentFetcher
	if p.fetchers != nil {
		fetcher, _ = p.fetchers.Fetcher(event.ConfigID)
	}
	content := p.builder.Build(ctx, fetcher, event.MessageID, parsed, target)

	answer, err := p.router.Deliver(ctx, target, content)
	if errors.Is(err, ErrEmptyMessage) {
		return OutcomeSkippedEmpty
	}
	if err != nil {
		p.logger.Error("delivery failed",
			slog.String("bot_id", event.BotID),
			slog.String("message_id", event.MessageID),
			slog.Any("error", err),
		)
		return OutcomeFailed
	}

	p.dispatcher.Dispatch(ctx, event.ConfigID, event.ConversationID, event.MessageID, answer)
	return OutcomeDone
}
