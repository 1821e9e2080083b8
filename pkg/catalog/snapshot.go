package catalog

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"gametrack/pkg/cachestore"
)

// Cache keys for the published snapshot blob and its companion flag.
const (
	snapshotKey = "catalog:snapshot"
	completeKey = "catalog:snapshot_complete"
)

// Snapshots stores the last fully-published catalog as a single JSON blob
// with an expiry. Publication is all-or-nothing: readers see either the
// previous complete snapshot or the new one, never a half-written state,
// because the blob is written in one Set.
type Snapshots struct {
	store cachestore.Store
	ttl   time.Duration
}

// NewSnapshots creates a snapshot store with the given blob TTL.
func NewSnapshots(store cachestore.Store, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Snapshots{store: store, ttl: ttl}
}

// Publish serializes the ordered item list and replaces the current
// snapshot, then marks the download complete.
func (s *Snapshots) Publish(items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.store.Set(snapshotKey, data, s.ttl); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err := s.store.Set(completeKey, []byte("1"), s.ttl); err != nil {
		return fmt.Errorf("mark snapshot complete: %w", err)
	}
	return nil
}

// Load returns the current snapshot items. ok is false when no snapshot is
// published (missing or expired).
func (s *Snapshots) Load() (items []Item, ok bool, err error) {
	data, getErr := s.store.Get(snapshotKey)
	if getErr != nil {
		return nil, false, nil
	}

	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return items, true, nil
}

// Exists reports whether a snapshot is currently published.
func (s *Snapshots) Exists() bool {
	_, err := s.store.Get(snapshotKey)
	return err == nil
}

// Clear removes the snapshot and its completion flag (operator cache-clear).
func (s *Snapshots) Clear() error {
	if err := s.store.Delete(snapshotKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	if err := s.store.Delete(completeKey); err != nil {
		return fmt.Errorf("clear snapshot flag: %w", err)
	}
	return nil
}
