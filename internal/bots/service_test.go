package bots_test

import (
	"errors"
	"testing"

	"github.com/botdock/botdock/internal/bots"
)

func runningBot() bots.Bot {
	return bots.Bot{
		ID:             "bot-1",
		Status:         bots.BotStatusRunning,
		GatewayAddress: "http://dify.local/v1",
		GatewayToken:   "app-token",
	}
}

func TestTargetFromBot_TextOnly(t *testing.T) {
	t.Parallel()
	target, err := bots.TargetFromBot(runningBot())
	if err != nil {
		t.Fatalf("TargetFromBot() error = %v", err)
	}
	if target.HasVision {
		t.Error("HasVision = true, want false")
	}
	if target.TextGatewayAddress != "http://dify.local/v1" {
		t.Errorf("TextGatewayAddress = %q", target.TextGatewayAddress)
	}
}

func TestTargetFromBot_Vision(t *testing.T) {
	t.Parallel()
	bot := runningBot()
	bot.VisionEnabled = true
	bot.VisionProxyAddress = "http://proxy.local"
	bot.VisionModel = "gpt-4o-mini"
	target, err := bots.TargetFromBot(bot)
	if err != nil {
		t.Fatalf("TargetFromBot() error = %v", err)
	}
	if !target.HasVision {
		t.Fatal("HasVision = false, want true")
	}
	if target.VisionProxyAddress != "http://proxy.local" {
		t.Errorf("VisionProxyAddress = %q", target.VisionProxyAddress)
	}
	if target.VisionModel != "gpt-4o-mini" {
		t.Errorf("VisionModel = %q", target.VisionModel)
	}
}

func TestTargetFromBot_VisionFlagWithoutProxy(t *testing.T) {
	t.Parallel()
	bot := runningBot()
	bot.VisionEnabled = true
	target, err := bots.TargetFromBot(bot)
	if err != nil {
		t.Fatalf("TargetFromBot() error = %v", err)
	}
	if target.HasVision {
		t.Error("HasVision = true without proxy address, want false")
	}
}

func TestTargetFromBot_NotRunning(t *testing.T) {
	t.Parallel()
	bot := runningBot()
	bot.Status = bots.BotStatusStopped
	if _, err := bots.TargetFromBot(bot); !errors.Is(err, bots.ErrNotRunning) {
		t.Fatalf("TargetFromBot() error = %v, want ErrNotRunning", err)
	}
}

func TestTargetFromBot_MissingGateway(t *testing.T) {
	t.Parallel()
	bot := runningBot()
	bot.GatewayToken = ""
	if _, err := bots.TargetFromBot(bot); !errors.Is(err, bots.ErrGatewayUnconfigured) {
		t.Fatalf("TargetFromBot() error = %v, want ErrGatewayUnconfigured", err)
	}
}
