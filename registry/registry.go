// Package registry keeps the client-side mirror of server state: the last
// value received per key, with change detection by content checksum.
package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Entry is the mirrored state of one key.
type Entry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Checksum  string    `json:"checksum"`   // SHA256 of the value's JSON
	UpdatedAt time.Time `json:"updated_at"` // last time the value changed
	Updates   int       `json:"updates"`    // updates received, changed or not
}

type cachedEntry struct {
	lastRawJSON []byte // JSON for comparison
	entry       Entry
}

// Registry mirrors server state keys.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*cachedEntry
	now     func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*cachedEntry),
		now:     time.Now,
	}
}

// Record stores value for key and reports whether it differs from the
// previous value. Unchanged values skip the checksum.
func (r *Registry) Record(key string, value any) (bool, error) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cached := r.entries[key]
	if cached != nil && bytes.Equal(cached.lastRawJSON, jsonData) {
		cached.entry.Updates++
		return false, nil
	}

	hash := sha256.Sum256(jsonData)
	updates := 1
	if cached != nil {
		updates = cached.entry.Updates + 1
	}

	r.entries[key] = &cachedEntry{
		lastRawJSON: jsonData,
		entry: Entry{
			Key:       key,
			Value:     value,
			Checksum:  hex.EncodeToString(hash[:]),
			UpdatedAt: r.now(),
			Updates:   updates,
		},
	}
	return true, nil
}

// Get returns the mirrored entry for key.
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cached, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	return cached.entry, true
}

// Keys returns all mirrored keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := lo.Keys(r.entries)
	sort.Strings(keys)
	return keys
}

// Snapshot returns key -> value for every mirrored key.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapValues(r.entries, func(cached *cachedEntry, _ string) any {
		return cached.entry.Value
	})
}
