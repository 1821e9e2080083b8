package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"gametrack/pkg/cachestore"
)

// Status describes the lifecycle of a refresh run.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusStopped    Status = "stopped"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Cache keys for the sync control records. These live in the shared store so
// any process can read progress without coordinating with the engine.
const (
	stateKey = "catalog:sync_state"
	stopKey  = "catalog:stop_requested"
)

const (
	stateTTL = 24 * time.Hour
	// stopTTL outlives one page fetch plus its full retry backoff, but not a
	// later unrelated run.
	stopTTL = 10 * time.Minute
)

// SyncState is the progress record for the current or last refresh run.
// Offset and Total are telemetry for observers, not a resumption checkpoint:
// every run re-crawls from offset 0.
type SyncState struct {
	Status     Status     `json:"status"`
	Phase      string     `json:"phase"`
	Offset     int        `json:"offset"`
	Total      *int       `json:"total"`
	ItemCount  int        `json:"item_count"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// StateStore persists SyncState and the stop flag in the shared cache tier.
type StateStore struct {
	store cachestore.Store
}

// NewStateStore creates a state store over the given cache store.
func NewStateStore(store cachestore.Store) *StateStore {
	return &StateStore{store: store}
}

// Load returns the current sync state. A missing or expired record reads as
// not_started.
func (s *StateStore) Load() SyncState {
	data, err := s.store.Get(stateKey)
	if err != nil {
		return SyncState{Status: StatusNotStarted, Phase: "not started"}
	}

	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return SyncState{Status: StatusNotStarted, Phase: "not started"}
	}
	return state
}

// Save overwrites the sync state record.
func (s *StateStore) Save(state SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := s.store.Set(stateKey, data, stateTTL); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// Clear removes the sync state record (operator cache-clear action).
func (s *StateStore) Clear() error {
	if err := s.store.Delete(stateKey); err != nil {
		return fmt.Errorf("clear sync state: %w", err)
	}
	return s.ClearStop()
}

// RequestStop sets the stop flag. The engine observes it at its next page
// boundary; cancellation is cooperative, not preemptive.
func (s *StateStore) RequestStop() error {
	if err := s.store.Set(stopKey, []byte("1"), stopTTL); err != nil {
		return fmt.Errorf("set stop flag: %w", err)
	}
	return nil
}

// StopRequested reports whether an operator has asked the active run to stop.
func (s *StateStore) StopRequested() bool {
	_, err := s.store.Get(stopKey)
	return err == nil
}

// ClearStop removes the stop flag once the engine has observed it.
func (s *StateStore) ClearStop() error {
	if err := s.store.Delete(stopKey); err != nil && !errors.Is(err, cachestore.ErrNotFound) {
		return fmt.Errorf("clear stop flag: %w", err)
	}
	return nil
}
