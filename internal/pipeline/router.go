package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/botdock/botdock/internal/bots"
)

// ErrEmptyMessage reports that nothing deliverable remained after building.
var ErrEmptyMessage = errors.New("pipeline: empty message")

// attachmentPlaceholder replaces binary-only content when no delivery path
// can carry it.
const attachmentPlaceholder = "The user sent an attachment that cannot currently be processed."

// BackendClient talks to the bot's answering backends.
type BackendClient interface {
	// TextChat sends plain text to the bot's text gateway and returns the answer.
	TextChat(ctx context.Context, address, token, text string) (string, error)
	// VisionChat sends multi-modal content parts to the vision proxy.
	VisionChat(ctx context.Context, proxyAddress, model string, parts []ContentPart) (string, error)
}

// RouterConfig carries router tunables.
type RouterConfig struct {
	// DefaultVisionModel is used when the target does not pin a model.
	DefaultVisionModel string
}

// deliveryStrategy is one attempt at getting an answer out of a backend.
// Strategies run in order; the first success wins.
type deliveryStrategy func(ctx context.Context, target bots.DeliveryTarget, content BuiltContent) (string, error)

// Router selects the delivery path for built content: vision proxy first for
// multi-modal content, text gateway as the terminal fallback. The vision
// path is attempted at most once per message.
type Router struct {
	client BackendClient
	cfg    RouterConfig
	logger *slog.Logger
}

// NewRouter creates a delivery router.
func NewRouter(log *slog.Logger, client BackendClient, cfg RouterConfig) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		client: client,
		cfg:    cfg,
		logger: log.With(slog.String("component", "delivery_router")),
	}
}

// Deliver routes content to the target's backends and returns the answer.
// Returns ErrEmptyMessage when nothing deliverable remains.
func (r *Router) Deliver(ctx context.Context, target bots.DeliveryTarget, content BuiltContent) (string, error) {
	var lastErr error
	for _, strategy := range r.strategies(target, content) {
		answer, err := strategy(ctx, target, content)
		if err == nil {
			return answer, nil
		}
		if errors.Is(err, ErrEmptyMessage) {
			return "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		return "", ErrEmptyMessage
	}
	return "", lastErr
}

// strategies builds the ordered attempt list for this message.
func (r *Router) strategies(target bots.DeliveryTarget, content BuiltContent) []deliveryStrategy {
	if content.Mode == ModeMultiModal && target.HasVision && r.hasBinaryParts(content) {
		return []deliveryStrategy{r.deliverVision, r.deliverText}
	}
	return []deliveryStrategy{r.deliverText}
}

func (r *Router) hasBinaryParts(content BuiltContent) bool {
	images, files, _ := CountParts(content.Parts)
	return images > 0 || files > 0
}

func (r *Router) deliverVision(ctx context.Context, target bots.DeliveryTarget, content BuiltContent) (string, error) {
	model := target.VisionModel
	if model == "" {
		model = r.cfg.DefaultVisionModel
	}
	answer, err := r.client.VisionChat(ctx, target.VisionProxyAddress, model, content.Parts)
	if err != nil {
		r.logger.Warn("vision delivery failed; falling back to text",
			slog.String("bot_id", target.BotID),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("vision delivery: %w", err)
	}
	return answer, nil
}

// deliverText sends the textual rendering of the content to the text
// gateway. Binary-only content is replaced by a fixed placeholder so the
// backend still learns an attachment arrived.
func (r *Router) deliverText(ctx context.Context, target bots.DeliveryTarget, content BuiltContent) (string, error) {
	text := r.textRendering(content)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	answer, err := r.client.TextChat(ctx, target.TextGatewayAddress, target.GatewayToken, text)
	if err != nil {
		return "", fmt.Errorf("text delivery: %w", err)
	}
	return answer, nil
}

func (r *Router) textRendering(content BuiltContent) string {
	if content.Mode == ModeTextOnly {
		return content.Text
	}
	text := JoinedText(content.Parts)
	if strings.TrimSpace(text) == "" && r.hasBinaryParts(content) {
		return attachmentPlaceholder
	}
	return text
}
