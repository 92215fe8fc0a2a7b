package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const dedupSweepInterval = 30 * time.Second

// Deduper is the admission gate that prevents reprocessing a message the
// pipeline has already seen. Entries expire after a fixed TTL; expiry is
// handled by a single periodic sweep rather than one timer per entry.
type Deduper struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduper creates a dedup gate with the given entry TTL.
func NewDeduper(log *slog.Logger, ttl time.Duration) *Deduper {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Deduper{
		ttl:    ttl,
		now:    time.Now,
		seen:   map[string]time.Time{},
		logger: log.With(slog.String("component", "dedup")),
	}
}

// ShouldProcess reports whether the message id is seen for the first time
// within the TTL window, recording it atomically. Messages without a
// provider id are never deduplicated.
func (d *Deduper) ShouldProcess(messageID string) bool {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if insertedAt, ok := d.seen[messageID]; ok && now.Sub(insertedAt) < d.ttl {
		return false
	}
	d.seen[messageID] = now
	return true
}

// Start runs the expiry sweep until the context is cancelled.
func (d *Deduper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(dedupSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sweep()
			}
		}
	}()
}

func (d *Deduper) sweep() {
	now := d.now()
	d.mu.Lock()
	removed := 0
	for id, insertedAt := range d.seen {
		if now.Sub(insertedAt) >= d.ttl {
			delete(d.seen, id)
			removed++
		}
	}
	remaining := len(d.seen)
	d.mu.Unlock()
	if removed > 0 {
		d.logger.Debug("dedup sweep", slog.Int("removed", removed), slog.Int("remaining", remaining))
	}
}
