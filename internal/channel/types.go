// Package channel provides the messaging-channel abstraction: typed inbound
// events, adapter interfaces, and the manager that owns long-lived provider
// connections.
package channel

import (
	"strings"
	"time"
)

// ChannelType identifies a messaging platform (e.g. "feishu").
type ChannelType string

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// MessageType identifies the provider-side payload shape of an inbound message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypePost  MessageType = "post"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// InboundEvent is a provider event reduced to the closed shape the pipeline
// consumes. RawContent keeps the provider's type-dependent encoding; the
// normalizer interprets it per MessageType.
type InboundEvent struct {
	Channel          ChannelType
	ConfigID         string
	BotID            string
	MessageID        string
	ConversationID   string
	ConversationType string
	MessageType      MessageType
	RawContent       string
	SenderID         string
	Mentioned        bool
	ReceivedAt       time.Time
}

// GroupChat reports whether the event originated in a group conversation.
func (e InboundEvent) GroupChat() bool {
	ct := strings.ToLower(strings.TrimSpace(e.ConversationType))
	return ct != "" && ct != "p2p" && ct != "private"
}

// ChannelConfig holds the configuration for a bot's channel integration.
// Disabled: true means the channel is stopped (not connected).
type ChannelConfig struct {
	ID             string      `json:"id"`
	BotID          string      `json:"bot_id"`
	ChannelType    ChannelType `json:"channel_type"`
	AppID          string      `json:"app_id"`
	AppSecret      string      `json:"app_secret"`
	Disabled       bool        `json:"disabled"`
	DisabledReason string      `json:"disabled_reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ConnectionStatus describes runtime status for one configured channel connection.
type ConnectionStatus struct {
	ConfigID    string      `json:"config_id"`
	BotID       string      `json:"bot_id"`
	ChannelType ChannelType `json:"channel_type"`
	Running     bool        `json:"running"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
