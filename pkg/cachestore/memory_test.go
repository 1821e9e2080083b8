package cachestore

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Set("key", []byte("value"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := store.Get("key")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("Get = %q, want %q", got, "value")
	}
}

func TestMemoryStore_MissingKey(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()

	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return current })

	if err := store.Set("key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if _, err := store.Get("key"); err != nil {
		t.Fatalf("Get before expiry returned error: %v", err)
	}

	current = current.Add(2 * time.Minute)

	if _, err := store.Get("key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Set("key", []byte("value"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Delete("key"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get("key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error
	if err := store.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) returned error: %v", err)
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()

	original := []byte("value")
	if err := store.Set("key", original, 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	original[0] = 'X'

	got, err := store.Get("key")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("stored value mutated through caller slice: got %q", got)
	}
}
