package feishu

import (
	"encoding/json"
	"strings"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/botdock/botdock/internal/channel"
)

// extractInbound converts a Feishu P2MessageReceiveV1 event into a typed
// channel.InboundEvent. The raw content string is passed through untouched;
// the pipeline normalizer interprets it per message type. Returns false for
// events that carry no usable message.
func extractInbound(event *larkim.P2MessageReceiveV1, cfg channel.ChannelConfig, botOpenID string) (channel.InboundEvent, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return channel.InboundEvent{}, false
	}
	message := event.Event.Message

	inbound := channel.InboundEvent{
		Channel:    Type,
		ConfigID:   cfg.ID,
		BotID:      cfg.BotID,
		ReceivedAt: time.Now().UTC(),
	}
	if message.MessageId != nil {
		inbound.MessageID = strings.TrimSpace(*message.MessageId)
	}
	if message.ChatId != nil {
		inbound.ConversationID = strings.TrimSpace(*message.ChatId)
	}
	if message.ChatType != nil {
		inbound.ConversationType = strings.TrimSpace(*message.ChatType)
	}
	if message.MessageType != nil {
		inbound.MessageType = channel.MessageType(strings.TrimSpace(*message.MessageType))
	}
	if message.Content != nil {
		inbound.RawContent = *message.Content
	}
	if sender := event.Event.Sender; sender != nil && sender.SenderId != nil && sender.SenderId.OpenId != nil {
		inbound.SenderID = strings.TrimSpace(*sender.SenderId.OpenId)
	}
	inbound.Mentioned = isBotMentioned(message.Mentions, inbound.RawContent, botOpenID)

	if inbound.MessageID == "" && inbound.RawContent == "" {
		return channel.InboundEvent{}, false
	}
	return inbound, true
}

// isBotMentioned reports whether the bot itself is mentioned. When botOpenID
// is known only mentions matching it count; otherwise any mention counts.
func isBotMentioned(mentions []*larkim.MentionEvent, rawContent, botOpenID string) bool {
	botOpenID = strings.TrimSpace(botOpenID)
	if botOpenID == "" {
		return len(mentions) > 0 || hasAtTag(rawContent)
	}
	for _, m := range mentions {
		if m == nil || m.Id == nil || m.Id.OpenId == nil {
			continue
		}
		if strings.TrimSpace(*m.Id.OpenId) == botOpenID {
			return true
		}
	}
	return matchContentMention(rawContent, botOpenID)
}

// hasAtTag checks rich-text content for any at element.
func hasAtTag(rawContent string) bool {
	var content any
	if err := json.Unmarshal([]byte(rawContent), &content); err != nil {
		return false
	}
	return walkAtTags(content, func(map[string]any) bool { return true })
}

// matchContentMention checks rich-text at tags for the bot's open_id.
func matchContentMention(rawContent, botOpenID string) bool {
	var content any
	if err := json.Unmarshal([]byte(rawContent), &content); err != nil {
		return false
	}
	return walkAtTags(content, func(element map[string]any) bool {
		if uid, ok := element["user_id"].(string); ok && strings.TrimSpace(uid) == botOpenID {
			return true
		}
		if uid, ok := element["open_id"].(string); ok && strings.TrimSpace(uid) == botOpenID {
			return true
		}
		return false
	})
}

// walkAtTags visits every at-tagged element in the decoded content tree.
func walkAtTags(raw any, match func(map[string]any) bool) bool {
	switch value := raw.(type) {
	case map[string]any:
		if tag, ok := value["tag"].(string); ok && strings.EqualFold(strings.TrimSpace(tag), "at") {
			if match(value) {
				return true
			}
		}
		for _, child := range value {
			if walkAtTags(child, match) {
				return true
			}
		}
	case []any:
		for _, child := range value {
			if walkAtTags(child, match) {
				return true
			}
		}
	}
	return false
}
