package channel

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStopNotSupported is returned when a connection does not support graceful shutdown.
var ErrStopNotSupported = errors.New("channel connection stop not supported")

// InboundHandler is a callback invoked for each message arriving from a
// channel. Implementations own their error handling; the adapter never sees
// a processing failure.
type InboundHandler func(ctx context.Context, cfg ChannelConfig, event InboundEvent)

// Adapter is the base interface every channel adapter must implement.
type Adapter interface {
	Type() ChannelType
}

// Receiver is an adapter capable of establishing a long-lived connection to
// receive messages.
type Receiver interface {
	Connect(ctx context.Context, cfg ChannelConfig, handler InboundHandler) (Connection, error)
}

// Replier sends a reply to a conversation through an active connection.
type Replier interface {
	Reply(ctx context.Context, conversationID, inReplyTo, text string) error
}

// AttachmentFetcher downloads message attachment bytes by provider key.
type AttachmentFetcher interface {
	FetchImage(ctx context.Context, messageID, imageKey string) ([]byte, error)
	FetchFile(ctx context.Context, messageID, fileKey string) ([]byte, error)
}

// Connection represents an active, long-lived link to a channel platform.
// Implementations that can send replies or download attachments additionally
// implement Replier and AttachmentFetcher.
type Connection interface {
	ConfigID() string
	BotID() string
	ChannelType() ChannelType
	Stop(ctx context.Context) error
	Running() bool
}

// BaseConnection is a default Connection implementation backed by a stop function.
type BaseConnection struct {
	configID    string
	botID       string
	channelType ChannelType
	stop        func(ctx context.Context) error
	running     atomic.Bool
}

// NewConnection creates a BaseConnection for the given config and stop function.
func NewConnection(cfg ChannelConfig, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{
		configID:    cfg.ID,
		botID:       cfg.BotID,
		channelType: cfg.ChannelType,
		stop:        stop,
	}
	conn.running.Store(true)
	return conn
}

// ConfigID returns the channel configuration identifier.
func (c *BaseConnection) ConfigID() string {
	return c.configID
}

// BotID returns the bot identifier that owns this connection.
func (c *BaseConnection) BotID() string {
	return c.botID
}

// ChannelType returns the type of channel this connection serves.
func (c *BaseConnection) ChannelType() ChannelType {
	return c.channelType
}

// Stop gracefully shuts down the connection.
func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	c.running.Store(false)
	return c.stop(ctx)
}

// Running reports whether the connection is still active.
func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
