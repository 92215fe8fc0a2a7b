package feishu

import (
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/botdock/botdock/internal/channel"
)

func messageEvent(msgType, content, chatType, chatID, msgID, senderOpenID string, mentions []*larkim.MentionEvent) *larkim.P2MessageReceiveV1 {
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Message: &larkim.EventMessage{
				MessageId:   &msgID,
				MessageType: &msgType,
				Content:     &content,
				ChatType:    &chatType,
				ChatId:      &chatID,
				Mentions:    mentions,
			},
			Sender: &larkim.EventSender{
				SenderId: &larkim.UserId{
					OpenId: &senderOpenID,
				},
			},
		},
	}
}

func TestExtractInboundP2P(t *testing.T) {
	t.Parallel()

	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1"}
	event := messageEvent(larkim.MsgTypeText, `{"text":"hi"}`, "p2p", "oc_1", "om_1", "ou_sender", nil)

	got, ok := extractInbound(event, cfg, "ou_bot")
	if !ok {
		t.Fatal("extractInbound() ok = false")
	}
	if got.ConfigID != "cfg-1" || got.BotID != "bot-1" {
		t.Fatalf("config/bot = %q/%q", got.ConfigID, got.BotID)
	}
	if got.MessageID != "om_1" || got.ConversationID != "oc_1" || got.ConversationType != "p2p" {
		t.Fatalf("event = %+v", got)
	}
	if got.MessageType != channel.MessageTypeText {
		t.Fatalf("MessageType = %q", got.MessageType)
	}
	if got.RawContent != `{"text":"hi"}` {
		t.Fatalf("RawContent = %q, want the payload passed through", got.RawContent)
	}
	if got.SenderID != "ou_sender" {
		t.Fatalf("SenderID = %q", got.SenderID)
	}
	if got.Mentioned {
		t.Fatal("Mentioned = true for a message without mentions")
	}
	if got.GroupChat() {
		t.Fatal("GroupChat() = true for p2p")
	}
}

func TestExtractInboundGroupMention(t *testing.T) {
	t.Parallel()

	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1"}
	botOpenID := "ou_bot"
	otherOpenID := "ou_other"
	mentionBot := []*larkim.MentionEvent{{Id: &larkim.UserId{OpenId: &botOpenID}}}
	mentionOther := []*larkim.MentionEvent{{Id: &larkim.UserId{OpenId: &otherOpenID}}}

	got, _ := extractInbound(messageEvent(larkim.MsgTypeText, `{"text":"@bot hi"}`, "group", "oc_2", "om_2", "ou_s", mentionBot), cfg, "ou_bot")
	if !got.Mentioned {
		t.Fatal("Mentioned = false when the bot's open_id is mentioned")
	}
	if !got.GroupChat() {
		t.Fatal("GroupChat() = false for group chat")
	}

	got, _ = extractInbound(messageEvent(larkim.MsgTypeText, `{"text":"@alice hi"}`, "group", "oc_2", "om_3", "ou_s", mentionOther), cfg, "ou_bot")
	if got.Mentioned {
		t.Fatal("Mentioned = true for a mention of someone else")
	}

	// Without a known bot open_id any mention counts.
	got, _ = extractInbound(messageEvent(larkim.MsgTypeText, `{"text":"@alice hi"}`, "group", "oc_2", "om_4", "ou_s", mentionOther), cfg, "")
	if !got.Mentioned {
		t.Fatal("Mentioned = false in fallback mode with a mention present")
	}
}

func TestExtractInboundRichTextAtTag(t *testing.T) {
	t.Parallel()

	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1"}
	content := `{"title":"","content":[[{"tag":"at","user_id":"ou_bot"},{"tag":"text","text":"ping"}]]}`
	got, _ := extractInbound(messageEvent(larkim.MsgTypePost, content, "group", "oc_3", "om_5", "ou_s", nil), cfg, "ou_bot")
	if !got.Mentioned {
		t.Fatal("Mentioned = false for an at tag carrying the bot's open_id")
	}
}

func TestExtractInboundEmptyEvent(t *testing.T) {
	t.Parallel()

	if _, ok := extractInbound(nil, channel.ChannelConfig{}, ""); ok {
		t.Fatal("extractInbound(nil) ok = true")
	}
	if _, ok := extractInbound(&larkim.P2MessageReceiveV1{}, channel.ChannelConfig{}, ""); ok {
		t.Fatal("extractInbound(empty) ok = true")
	}
}
