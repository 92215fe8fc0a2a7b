package channel

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConfigStore is the persistence interface required by the Manager.
type ConfigStore interface {
	// ListEnabledConfigs returns all channel configs that should be connected.
	ListEnabledConfigs(ctx context.Context) ([]ChannelConfig, error)
	// MarkDisabled disables a config with a reason; its connection will not
	// be re-established on the next reconcile.
	MarkDisabled(ctx context.Context, configID, reason string) error
}

type connectionEntry struct {
	config     ChannelConfig
	connection Connection
}

// Manager coordinates channel adapters and connection lifecycle. It loads
// enabled configs from the store, keeps one connection per config, and
// reconciles periodically as a safety net.
type Manager struct {
	registry        *Registry
	store           ConfigStore
	handler         InboundHandler
	refreshInterval time.Duration
	logger          *slog.Logger

	mu          sync.Mutex
	refreshMu   sync.Mutex
	connections map[string]*connectionEntry
	meta        map[string]ConnectionStatus
}

// NewManager creates a Manager with the given logger, registry, and config store.
func NewManager(log *slog.Logger, registry *Registry, store ConfigStore) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:        registry,
		store:           store,
		refreshInterval: 5 * time.Minute,
		connections:     map[string]*connectionEntry{},
		meta:            map[string]ConnectionStatus{},
		logger:          log.With(slog.String("component", "channel")),
	}
}

// Registry returns the adapter registry used by this manager.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetHandler installs the inbound handler invoked for every received event.
// Must be called before Start.
func (m *Manager) SetHandler(handler InboundHandler) {
	m.handler = handler
}

// Start performs an initial reconcile and begins the periodic refresh loop.
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("manager start")
	go func() {
		m.refresh(ctx)
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("manager stop")
				m.stopAll(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				m.refresh(ctx)
			}
		}
	}()
}

// Refresh reconciles connections against the store immediately.
func (m *Manager) Refresh(ctx context.Context) {
	m.refresh(ctx)
}

func (m *Manager) refresh(ctx context.Context) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	configs, err := m.store.ListEnabledConfigs(ctx)
	if err != nil {
		m.logger.Error("list channel configs failed", slog.Any("error", err))
		return
	}

	wanted := make(map[string]ChannelConfig, len(configs))
	for _, cfg := range configs {
		wanted[cfg.ID] = cfg
	}

	// Stop connections whose config disappeared or was disabled.
	m.mu.Lock()
	var stale []*connectionEntry
	for id, entry := range m.connections {
		if _, ok := wanted[id]; !ok {
			stale = append(stale, entry)
			delete(m.connections, id)
			delete(m.meta, id)
		}
	}
	m.mu.Unlock()
	for _, entry := range stale {
		m.stopEntry(ctx, entry)
	}

	for _, cfg := range configs {
		m.ensureConnection(ctx, cfg)
	}
}

func (m *Manager) ensureConnection(ctx context.Context, cfg ChannelConfig) {
	m.mu.Lock()
	if entry, ok := m.connections[cfg.ID]; ok && entry.connection != nil && entry.connection.Running() {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	receiver, ok := m.registry.GetReceiver(cfg.ChannelType)
	if !ok {
		m.setStatus(cfg, false, "no adapter for channel type "+cfg.ChannelType.String())
		return
	}
	if m.handler == nil {
		m.setStatus(cfg, false, "inbound handler not configured")
		return
	}

	conn, err := receiver.Connect(ctx, cfg, m.handler)
	if err != nil {
		m.logger.Error("connect failed",
			slog.String("config_id", cfg.ID),
			slog.String("channel", cfg.ChannelType.String()),
			slog.Any("error", err),
		)
		m.setStatus(cfg, false, err.Error())
		return
	}
	m.mu.Lock()
	m.connections[cfg.ID] = &connectionEntry{config: cfg, connection: conn}
	m.mu.Unlock()
	m.setStatus(cfg, true, "")
	m.logger.Info("connected",
		slog.String("config_id", cfg.ID),
		slog.String("bot_id", cfg.BotID),
		slog.String("channel", cfg.ChannelType.String()),
	)
}

// Teardown stops and removes the connection for a config and disables it in
// the store. Used when the owning bot record is gone.
func (m *Manager) Teardown(ctx context.Context, configID, reason string) {
	m.mu.Lock()
	entry, ok := m.connections[configID]
	if ok {
		delete(m.connections, configID)
		delete(m.meta, configID)
	}
	m.mu.Unlock()
	if ok {
		m.stopEntry(ctx, entry)
	}
	if err := m.store.MarkDisabled(ctx, configID, reason); err != nil {
		m.logger.Error("disable channel config failed",
			slog.String("config_id", configID),
			slog.Any("error", err),
		)
	}
	m.logger.Warn("connection torn down",
		slog.String("config_id", configID),
		slog.String("reason", reason),
	)
}

// Replier returns the reply client of the live connection for a config.
func (m *Manager) Replier(configID string) (Replier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.connections[configID]
	if !ok || entry.connection == nil {
		return nil, false
	}
	replier, ok := entry.connection.(Replier)
	return replier, ok
}

// Fetcher returns the attachment fetcher of the live connection for a config.
func (m *Manager) Fetcher(configID string) (AttachmentFetcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.connections[configID]
	if !ok || entry.connection == nil {
		return nil, false
	}
	fetcher, ok := entry.connection.(AttachmentFetcher)
	return fetcher, ok
}

// Statuses returns observed connection statuses sorted by config id.
func (m *Manager) Statuses() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]ConnectionStatus, 0, len(m.meta))
	for _, status := range m.meta {
		items = append(items, status)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ConfigID < items[j].ConfigID })
	return items
}

// Shutdown stops all active connections.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopAll(ctx)
	return nil
}

func (m *Manager) stopAll(ctx context.Context) {
	m.mu.Lock()
	entries := make([]*connectionEntry, 0, len(m.connections))
	for id, entry := range m.connections {
		entries = append(entries, entry)
		delete(m.connections, id)
	}
	m.mu.Unlock()
	for _, entry := range entries {
		m.stopEntry(ctx, entry)
	}
}

func (m *Manager) stopEntry(ctx context.Context, entry *connectionEntry) {
	if entry == nil || entry.connection == nil {
		return
	}
	if err := entry.connection.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
		m.logger.Warn("stop connection failed",
			slog.String("config_id", entry.config.ID),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) setStatus(cfg ChannelConfig, running bool, lastError string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[cfg.ID] = ConnectionStatus{
		ConfigID:    cfg.ID,
		BotID:       cfg.BotID,
		ChannelType: cfg.ChannelType,
		Running:     running,
		LastError:   strings.TrimSpace(lastError),
		UpdatedAt:   time.Now().UTC(),
	}
}
