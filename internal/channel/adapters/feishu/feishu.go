// Package feishu implements the Feishu (Lark) channel adapter: a websocket
// receiver for inbound messages plus reply and attachment-download support
// on the live connection.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/botdock/botdock/internal/channel"
)

// Type is the Feishu channel type.
const Type = channel.ChannelType("feishu")

const reconnectDelay = 3 * time.Second

// Adapter implements channel.Adapter and channel.Receiver for Feishu.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter creates a Feishu adapter.
func NewAdapter(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "feishu")),
	}
}

// Type returns the Feishu channel type.
func (a *Adapter) Type() channel.ChannelType {
	return Type
}

// Connect opens a websocket long connection to Feishu and forwards inbound
// messages to the handler. The connection reconnects on failure until stopped.
func (a *Adapter) Connect(ctx context.Context, cfg channel.ChannelConfig, handler channel.InboundHandler) (channel.Connection, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, fmt.Errorf("feishu config %s: app_id and app_secret are required", cfg.ID)
	}
	a.logger.Info("start", slog.String("config_id", cfg.ID))

	apiClient := lark.NewClient(cfg.AppID, cfg.AppSecret)
	botOpenID := a.resolveBotOpenID(ctx, apiClient)
	a.logger.Info("bot identity", slog.String("config_id", cfg.ID), slog.String("bot_open_id", botOpenID))

	connCtx, cancel := context.WithCancel(ctx)
	newClient := func() *larkws.Client {
		eventDispatcher := dispatcher.NewEventDispatcher("", "")
		eventDispatcher.OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if connCtx.Err() != nil {
				return nil
			}
			inbound, ok := extractInbound(event, cfg, botOpenID)
			if !ok {
				return nil
			}
			a.logger.Debug("inbound received",
				slog.String("config_id", cfg.ID),
				slog.String("message_id", inbound.MessageID),
				slog.String("message_type", string(inbound.MessageType)),
				slog.String("chat_type", inbound.ConversationType),
				slog.Bool("mentioned", inbound.Mentioned),
			)
			// The SDK delivers events serially; processing runs off the
			// receive loop so a slow backend never stalls the connection.
			go handler(connCtx, cfg, inbound)
			return nil
		})
		eventDispatcher.OnP2MessageReadV1(func(_ context.Context, _ *larkim.P2MessageReadV1) error {
			return nil
		})
		return larkws.NewClient(
			cfg.AppID,
			cfg.AppSecret,
			larkws.WithEventHandler(eventDispatcher),
			larkws.WithLogger(newLarkSlogLogger(a.logger)),
			larkws.WithLogLevel(larkcore.LogLevelWarn),
		)
	}

	go func() {
		for {
			if connCtx.Err() != nil {
				return
			}
			client := newClient()
			err := client.Start(connCtx)
			if connCtx.Err() != nil {
				return
			}
			if err != nil {
				a.logger.Error("client start failed", slog.String("config_id", cfg.ID), slog.Any("error", err))
			} else {
				a.logger.Warn("client exited without error; reconnecting", slog.String("config_id", cfg.ID))
			}
			timer := time.NewTimer(reconnectDelay)
			select {
			case <-connCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	stop := func(context.Context) error {
		cancel()
		return nil
	}
	return &connection{
		BaseConnection: channel.NewConnection(cfg, stop),
		client:         apiClient,
		logger:         a.logger,
	}, nil
}

// resolveBotOpenID fetches the bot's own open_id so that group mentions can
// be matched against it. Failure is tolerated: without the id any mention
// counts as addressing the bot.
func (a *Adapter) resolveBotOpenID(ctx context.Context, client *lark.Client) string {
	resp, err := client.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		a.logger.Warn("bot identity lookup failed", slog.Any("error", err))
		return ""
	}
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID string `json:"open_id"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &body); err != nil {
		a.logger.Warn("bot identity lookup failed", slog.Any("error", err))
		return ""
	}
	if body.Code != 0 {
		a.logger.Warn("bot identity lookup failed", slog.String("msg", body.Msg), slog.Int("code", body.Code))
		return ""
	}
	return strings.TrimSpace(body.Bot.OpenID)
}

// connection is the live Feishu link. It implements channel.Replier and
// channel.AttachmentFetcher on top of the base connection.
type connection struct {
	*channel.BaseConnection
	client *lark.Client
	logger *slog.Logger
}

// Reply sends a text answer into the conversation. When inReplyTo names the
// originating message the answer is threaded under it.
func (c *connection) Reply(ctx context.Context, conversationID, inReplyTo, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("feishu reply: text is required")
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("feishu reply: marshal content: %w", err)
	}
	content := string(payload)

	if strings.TrimSpace(inReplyTo) != "" {
		req := larkim.NewReplyMessageReqBuilder().
			MessageId(inReplyTo).
			Body(larkim.NewReplyMessageReqBodyBuilder().
				Content(content).
				MsgType(larkim.MsgTypeText).
				Uuid(uuid.NewString()).
				Build()).
			Build()
		resp, err := c.client.Im.V1.Message.Reply(ctx, req)
		if err != nil {
			return fmt.Errorf("feishu reply: %w", err)
		}
		if resp == nil || !resp.Success() {
			code, msg := 0, ""
			if resp != nil {
				code, msg = resp.Code, resp.Msg
			}
			return fmt.Errorf("feishu reply failed: %s (code: %d)", msg, code)
		}
		return nil
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(conversationID).
			MsgType(larkim.MsgTypeText).
			Content(content).
			Uuid(uuid.NewString()).
			Build()).
		Build()
	resp, err := c.client.Im.V1.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("feishu send: %w", err)
	}
	if resp == nil || !resp.Success() {
		code, msg := 0, ""
		if resp != nil {
			code, msg = resp.Code, resp.Msg
		}
		return fmt.Errorf("feishu send failed: %s (code: %d)", msg, code)
	}
	return nil
}

// FetchImage downloads image bytes via the message-resource API.
func (c *connection) FetchImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	return c.fetchResource(ctx, messageID, imageKey, "image")
}

// FetchFile downloads file bytes via the message-resource API.
func (c *connection) FetchFile(ctx context.Context, messageID, fileKey string) ([]byte, error) {
	return c.fetchResource(ctx, messageID, fileKey, "file")
}

func (c *connection) fetchResource(ctx context.Context, messageID, key, resourceType string) ([]byte, error) {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("feishu resource: message_id and key are required")
	}
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(key).
		Type(resourceType).
		Build()
	resp, err := c.client.Im.V1.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("feishu resource %s: %w", key, err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("feishu resource %s: %s (code: %d)", key, resp.Msg, resp.Code)
	}
	if resp.File == nil {
		return nil, fmt.Errorf("feishu resource %s: empty payload", key)
	}
	data, err := io.ReadAll(resp.File)
	if err != nil {
		return nil, fmt.Errorf("feishu resource %s: read: %w", key, err)
	}
	return data, nil
}
