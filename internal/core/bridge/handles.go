package bridge

import (
	"sync"
	"time"

	"mindgate/internal/core"
)

// DefaultHandleTTL covers the longest polling deadline with room to spare
const DefaultHandleTTL = 30 * time.Minute

type bookEntry struct {
	handle  core.TaskHandle
	expires time.Time
}

// HandleBook remembers which credential created a task so that later
// out-of-band queries poll with the same one
type HandleBook struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]bookEntry
}

// NewHandleBook creates a book whose entries expire after ttl
func NewHandleBook(ttl time.Duration) *HandleBook {
	if ttl <= 0 {
		ttl = DefaultHandleTTL
	}
	return &HandleBook{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]bookEntry),
	}
}

// Put records handle, replacing any earlier entry for the same task
func (b *HandleBook) Put(handle core.TaskHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.pruneLocked(now)
	b.entries[handle.TaskID] = bookEntry{handle: handle, expires: now.Add(b.ttl)}
}

// Get returns the live handle for taskID
func (b *HandleBook) Get(taskID string) (core.TaskHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[taskID]
	if !ok {
		return core.TaskHandle{}, false
	}
	if !b.now().Before(entry.expires) {
		delete(b.entries, taskID)
		return core.TaskHandle{}, false
	}
	return entry.handle, true
}

// Len returns the number of entries, expired ones included until the next Put
func (b *HandleBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *HandleBook) pruneLocked(now time.Time) {
	for id, entry := range b.entries {
		if !now.Before(entry.expires) {
			delete(b.entries, id)
		}
	}
}
