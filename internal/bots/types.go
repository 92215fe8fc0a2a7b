// Package bots is the bot directory: it resolves the bot record that owns a
// channel conversation into the delivery descriptor the inbound pipeline
// needs.
package bots

import (
	"errors"
	"time"
)

// Bot represents a bot record.
type Bot struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"display_name"`
	Status             string    `json:"status"`
	GatewayAddress     string    `json:"gateway_address"`
	GatewayToken       string    `json:"gateway_token"`
	VisionEnabled      bool      `json:"vision_enabled"`
	VisionProxyAddress string    `json:"vision_proxy_address"`
	VisionModel        string    `json:"vision_model,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const (
	BotStatusRunning = "running"
	BotStatusStopped = "stopped"
)

// DeliveryTarget is the resolved backend descriptor for one message.
type DeliveryTarget struct {
	BotID              string
	HasVision          bool
	TextGatewayAddress string
	GatewayToken       string
	VisionProxyAddress string
	VisionModel        string
}

var (
	// ErrNotFound indicates the bot record does not exist.
	ErrNotFound = errors.New("bot not found")
	// ErrNotRunning indicates the bot exists but is not currently running.
	ErrNotRunning = errors.New("bot not running")
	// ErrGatewayUnconfigured indicates the bot record lacks a usable gateway.
	ErrGatewayUnconfigured = errors.New("bot gateway not configured")
)
