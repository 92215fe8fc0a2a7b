package channel_test

import (
	"context"
	"sync"
	"testing"

	"github.com/botdock/botdock/internal/channel"
)

type fakeStore struct {
	mu       sync.Mutex
	configs  []channel.ChannelConfig
	disabled map[string]string
}

func newFakeStore(configs ...channel.ChannelConfig) *fakeStore {
	return &fakeStore{configs: configs, disabled: map[string]string{}}
}

func (s *fakeStore) ListEnabledConfigs(context.Context) ([]channel.ChannelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var enabled []channel.ChannelConfig
	for _, cfg := range s.configs {
		if _, ok := s.disabled[cfg.ID]; !ok {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

func (s *fakeStore) MarkDisabled(_ context.Context, configID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[configID] = reason
	return nil
}

// replyingConnection is a Connection that also implements Replier.
type replyingConnection struct {
	*channel.BaseConnection
	replies []string
}

func (c *replyingConnection) Reply(_ context.Context, conversationID, _, text string) error {
	c.replies = append(c.replies, conversationID+":"+text)
	return nil
}

func newManagerForTest(t *testing.T, store channel.ConfigStore, connect func(ctx context.Context, cfg channel.ChannelConfig, handler channel.InboundHandler) (channel.Connection, error)) *channel.Manager {
	t.Helper()
	reg := channel.NewRegistry()
	reg.MustRegister(&stubReceiver{
		stubAdapter: stubAdapter{channelType: testChannelType},
		connect:     connect,
	})
	mgr := channel.NewManager(nil, reg, store)
	mgr.SetHandler(func(context.Context, channel.ChannelConfig, channel.InboundEvent) {})
	return mgr
}

func TestManager_RefreshConnects(t *testing.T) {
	t.Parallel()
	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1", ChannelType: testChannelType}
	store := newFakeStore(cfg)

	connects := 0
	mgr := newManagerForTest(t, store, func(_ context.Context, cfg channel.ChannelConfig, _ channel.InboundHandler) (channel.Connection, error) {
		connects++
		return channel.NewConnection(cfg, func(context.Context) error { return nil }), nil
	})

	mgr.Refresh(context.Background())
	mgr.Refresh(context.Background())
	if connects != 1 {
		t.Fatalf("connect count = %d, want 1 (running connection must not reconnect)", connects)
	}

	statuses := mgr.Statuses()
	if len(statuses) != 1 || !statuses[0].Running {
		t.Fatalf("Statuses() = %+v, want one running entry", statuses)
	}
}

func TestManager_ReplierLookup(t *testing.T) {
	t.Parallel()
	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1", ChannelType: testChannelType}
	store := newFakeStore(cfg)

	mgr := newManagerForTest(t, store, func(_ context.Context, cfg channel.ChannelConfig, _ channel.InboundHandler) (channel.Connection, error) {
		return &replyingConnection{
			BaseConnection: channel.NewConnection(cfg, func(context.Context) error { return nil }),
		}, nil
	})
	mgr.Refresh(context.Background())

	if _, ok := mgr.Replier("cfg-1"); !ok {
		t.Fatal("Replier(cfg-1) = false, want true")
	}
	if _, ok := mgr.Replier("missing"); ok {
		t.Fatal("Replier(missing) = true, want false")
	}
	// The test connection implements no AttachmentFetcher.
	if _, ok := mgr.Fetcher("cfg-1"); ok {
		t.Fatal("Fetcher(cfg-1) = true, want false")
	}
}

func TestManager_TeardownDisablesConfig(t *testing.T) {
	t.Parallel()
	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1", ChannelType: testChannelType}
	store := newFakeStore(cfg)

	stopped := false
	mgr := newManagerForTest(t, store, func(_ context.Context, cfg channel.ChannelConfig, _ channel.InboundHandler) (channel.Connection, error) {
		return channel.NewConnection(cfg, func(context.Context) error {
			stopped = true
			return nil
		}), nil
	})
	mgr.Refresh(context.Background())

	mgr.Teardown(context.Background(), "cfg-1", "bot record missing")
	if !stopped {
		t.Error("connection was not stopped on teardown")
	}
	if reason := store.disabled["cfg-1"]; reason != "bot record missing" {
		t.Errorf("disabled reason = %q, want %q", reason, "bot record missing")
	}
	if _, ok := mgr.Replier("cfg-1"); ok {
		t.Error("Replier(cfg-1) = true after teardown, want false")
	}

	// A reconcile after teardown must not reconnect the disabled config.
	mgr.Refresh(context.Background())
	if _, ok := mgr.Replier("cfg-1"); ok {
		t.Error("teardown config reconnected on refresh")
	}
}

func TestManager_RemovedConfigStops(t *testing.T) {
	t.Parallel()
	cfg := channel.ChannelConfig{ID: "cfg-1", BotID: "bot-1", ChannelType: testChannelType}
	store := newFakeStore(cfg)

	mgr := newManagerForTest(t, store, func(_ context.Context, cfg channel.ChannelConfig, _ channel.InboundHandler) (channel.Connection, error) {
		return channel.NewConnection(cfg, func(context.Context) error { return nil }), nil
	})
	mgr.Refresh(context.Background())

	store.mu.Lock()
	store.configs = nil
	store.mu.Unlock()
	mgr.Refresh(context.Background())

	if statuses := mgr.Statuses(); len(statuses) != 0 {
		t.Fatalf("Statuses() = %+v after config removal, want empty", statuses)
	}
}
