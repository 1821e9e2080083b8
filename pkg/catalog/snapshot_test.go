package catalog

import (
	"testing"

	"gametrack/pkg/cachestore"
)

func TestSnapshots_PublishLoadRoundTrip(t *testing.T) {
	snapshots := NewSnapshots(cachestore.NewMemoryStore(), 0)

	published := []Item{
		{ID: 3, Name: "High", Popularity: pop(9)},
		{ID: 1, Name: "Low", Popularity: pop(1)},
		{ID: 2, Name: "None"},
	}
	if err := snapshots.Publish(published); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	loaded, ok, err := snapshots.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !ok {
		t.Fatal("Load reports no snapshot after publish")
	}
	if len(loaded) != len(published) {
		t.Fatalf("loaded %d items, want %d", len(loaded), len(published))
	}
	for i := range published {
		if loaded[i].ID != published[i].ID {
			t.Errorf("loaded[%d].ID = %d, want %d (order must survive serialization)", i, loaded[i].ID, published[i].ID)
		}
	}
	if loaded[2].Popularity != nil {
		t.Errorf("absent popularity decoded as %v, want nil", *loaded[2].Popularity)
	}
}

func TestSnapshots_MissingSnapshot(t *testing.T) {
	snapshots := NewSnapshots(cachestore.NewMemoryStore(), 0)

	if snapshots.Exists() {
		t.Error("Exists true with empty store")
	}
	_, ok, err := snapshots.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if ok {
		t.Error("Load reports a snapshot in an empty store")
	}
}

func TestSnapshots_Clear(t *testing.T) {
	snapshots := NewSnapshots(cachestore.NewMemoryStore(), 0)

	if err := snapshots.Publish([]Item{{ID: 1, Name: "A"}}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := snapshots.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if snapshots.Exists() {
		t.Error("snapshot survived Clear")
	}
}
