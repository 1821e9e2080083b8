// Package cachestore provides the shared key/value cache tier used by the
// refresh engine and the query path: snapshot blobs, API tokens, sync state
// and the stop flag all live here with per-entry TTLs.
package cachestore

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key is missing or its entry has expired.
var ErrNotFound = errors.New("cachestore: key not found")

// Store is the minimal contract the engine and query path depend on.
// Implementations must provide read-after-write visibility across all
// readers of the same store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases underlying resources.
	Close() error
}
