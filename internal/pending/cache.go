// Package pending holds attachments that arrived without a caption, keyed by
// sender, until a follow-up text message claims them.
package pending

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
)

// DefaultTTL is how long an uncaptioned attachment stays claimable.
const DefaultTTL = 24 * time.Hour

// Entry is one parked attachment awaiting its deferred caption.
// AttachmentID points at the persisted attachment row so a deferred caption
// can refresh the same row's summary.
type Entry struct {
	Data         []byte
	Kind         attachment.Kind
	FileName     string
	Mime         string
	AttachmentID string
	ReceivedAt   time.Time
}

// Cache is an in-process per-sender store with lazy TTL expiry. At most one
// entry exists per sender; a new arrival overwrites the previous one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewCache creates a pending-attachment cache.
func NewCache(log *slog.Logger, ttl time.Duration) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		logger:  log.With(slog.String("service", "pending_cache")),
		now:     time.Now,
	}
}

// Put stores an entry for the sender, overwriting any existing one.
func (c *Cache) Put(sender string, entry Entry) {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sender] = entry
}

// Get returns the sender's entry. An entry older than the TTL is removed and
// reported absent; it is never resurrected.
func (c *Cache) Get(sender string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sender]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.ReceivedAt) > c.ttl {
		delete(c.entries, sender)
		return Entry{}, false
	}
	return entry, true
}

// Remove drops the sender's entry, if any.
func (c *Cache) Remove(sender string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sender)
}

// Sweep removes every expired entry. Correctness never depends on it
// running; Get expires lazily.
func (c *Cache) Sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for sender, entry := range c.entries {
		if now.Sub(entry.ReceivedAt) > c.ttl {
			delete(c.entries, sender)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("swept expired pending attachments", slog.Int("removed", removed))
	}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
