package channel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the registered channel adapters by type.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ChannelType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[ChannelType]Adapter{}}
}

// Register adds an adapter. Registering a duplicate or empty type is an error.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is required")
	}
	channelType := adapter.Type()
	if strings.TrimSpace(channelType.String()) == "" {
		return fmt.Errorf("adapter type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[channelType]; exists {
		return fmt.Errorf("adapter already registered: %s", channelType)
	}
	r.adapters[channelType] = adapter
	return nil
}

// MustRegister registers an adapter and panics on error. Intended for wiring.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Unregister removes the adapter for the given type.
func (r *Registry) Unregister(channelType ChannelType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, channelType)
}

// Get returns the adapter for the given type.
func (r *Registry) Get(channelType ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// GetReceiver returns the adapter for the type if it can receive messages.
func (r *Registry) GetReceiver(channelType ChannelType) (Receiver, bool) {
	adapter, ok := r.Get(channelType)
	if !ok {
		return nil, false
	}
	receiver, ok := adapter.(Receiver)
	return receiver, ok
}

// Types returns the registered channel types in sorted order.
func (r *Registry) Types() []ChannelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]ChannelType, 0, len(r.adapters))
	for channelType := range r.adapters {
		types = append(types, channelType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
