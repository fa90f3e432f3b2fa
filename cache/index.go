package cache

import (
	"context"
	"sync"
	"time"

	"gopkg.in/guregu/null.v3"
)

// Entry is a cached payload known to the dedup index.
type Entry struct {
	// Key is the exact content hash combined with the container format.
	Key string `gorm:"primaryKey"`
	// Format is the container the payload was written as.
	Format string `gorm:"primaryKey"`
	// Path is the cache file holding the payload.
	Path     string      `gorm:"not null"`
	MIMEType null.String `gorm:"column:mime_type"`
	// Perceptual is the difference hash for image payloads.
	Perceptual null.String
	FirstSeen  time.Time `gorm:"not null"`
	LastSeen   time.Time `gorm:"not null"`
	// Hits counts how many times the entry short-circuited a write.
	Hits int64 `gorm:"not null"`
}

func (e *Entry) TableName() string {
	return "blob"
}

// Index locates previously written payloads by exact content.
type Index interface {
	// Locate returns the entry for the key and format, or nil when unseen.
	Locate(ctx context.Context, key, format string) (*Entry, error)
	// Store upserts the entry, bumping last_seen and the hit counter on
	// conflict.
	Store(ctx context.Context, entry *Entry) error
}

// MemoryIndex is a process-local Index for cacheless deployments and tests.
type MemoryIndex struct {
	entries map[string]Entry
	once    sync.Once
	mu      sync.RWMutex
}

func (i *MemoryIndex) init() {
	i.once.Do(func() { i.entries = make(map[string]Entry) })
}

func (i *MemoryIndex) Locate(_ context.Context, key, format string) (*Entry, error) {
	i.init()
	i.mu.RLock()
	defer i.mu.RUnlock()

	if entry, ok := i.entries[key+"/"+format]; ok {
		return &entry, nil
	}

	return nil, nil
}

func (i *MemoryIndex) Store(_ context.Context, entry *Entry) error {
	i.init()
	i.mu.Lock()
	defer i.mu.Unlock()

	id := entry.Key + "/" + entry.Format
	if existing, ok := i.entries[id]; ok {
		existing.LastSeen = entry.LastSeen
		existing.Hits++
		i.entries[id] = existing
		*entry = existing
		return nil
	}

	i.entries[id] = *entry
	return nil
}
