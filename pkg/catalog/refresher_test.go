package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gametrack/pkg/cachestore"
	"gametrack/pkg/igdb"
)

// fakeAPI serves a fixed catalog in pages and records calls.
type fakeAPI struct {
	games      []igdb.Game
	popularity map[int64]float64

	countErr error
	failPage int // 1-based page number that returns an error (0 = never)

	pagesServed int
	afterPage   func(page int) // invoked after each successful games page
}

func (f *fakeAPI) Games(ctx context.Context, offset, limit int) ([]igdb.Game, error) {
	page := offset/limit + 1
	if f.failPage != 0 && page == f.failPage {
		return nil, fmt.Errorf("%w (10): simulated outage", igdb.ErrTooManyRetries)
	}

	start := offset
	if start > len(f.games) {
		start = len(f.games)
	}
	end := start + limit
	if end > len(f.games) {
		end = len(f.games)
	}

	result := f.games[start:end]
	if len(result) > 0 {
		f.pagesServed++
		if f.afterPage != nil {
			f.afterPage(f.pagesServed)
		}
	}
	return result, nil
}

func (f *fakeAPI) PopularityPrimitives(ctx context.Context, ids []int64, popularityType int) ([]igdb.PopularityPrimitive, error) {
	var primitives []igdb.PopularityPrimitive
	for _, id := range ids {
		if value, ok := f.popularity[id]; ok {
			primitives = append(primitives, igdb.PopularityPrimitive{
				GameID:         id,
				Value:          value,
				PopularityType: popularityType,
			})
		}
	}
	return primitives, nil
}

func (f *fakeAPI) CountGames(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.games), nil
}

func game(id int64, name string) igdb.Game {
	return igdb.Game{ID: id, Name: name}
}

type refresherFixture struct {
	api       *fakeAPI
	store     *cachestore.MemoryStore
	states    *StateStore
	snapshots *Snapshots
	refresher *Refresher
}

func newRefresherFixture(api *fakeAPI, pageSize int) *refresherFixture {
	store := cachestore.NewMemoryStore()
	states := NewStateStore(store)
	snapshots := NewSnapshots(store, 0)
	config := &RefresherConfig{PageSize: pageSize, PopularityType: 1}

	return &refresherFixture{
		api:       api,
		store:     store,
		states:    states,
		snapshots: snapshots,
		refresher: NewRefresher(api, states, snapshots, nil, config, nil),
	}
}

func TestRefresher_PublishesSortedSnapshot(t *testing.T) {
	api := &fakeAPI{
		games: []igdb.Game{
			game(1, "Doom"),
			game(2, "Quake"),
			game(3, "Halo"),
		},
		popularity: map[int64]float64{1: 5.0, 3: 9.5},
	}
	fx := newRefresherFixture(api, 2)

	if err := fx.refresher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	state := fx.states.Load()
	if state.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", state.Status)
	}
	if state.ItemCount != 3 {
		t.Errorf("ItemCount = %d, want 3", state.ItemCount)
	}
	if state.Total == nil || *state.Total != 3 {
		t.Errorf("Total = %v, want 3", state.Total)
	}
	if state.LastUpdate == nil {
		t.Error("LastUpdate not set on completion")
	}

	items, ok, err := fx.snapshots.Load()
	if err != nil || !ok {
		t.Fatalf("snapshot load: ok=%v err=%v", ok, err)
	}

	// Present popularity descending, absent last
	wantOrder := []int64{3, 1, 2}
	if len(items) != len(wantOrder) {
		t.Fatalf("snapshot has %d items, want %d", len(items), len(wantOrder))
	}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %d, want %d", i, items[i].ID, want)
		}
	}
	if items[2].Popularity != nil {
		t.Errorf("unmatched item popularity = %v, want nil", items[2].Popularity)
	}

	// Ids must be unique within the snapshot
	seen := make(map[int64]bool)
	for _, item := range items {
		if seen[item.ID] {
			t.Errorf("duplicate id %d in snapshot", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestRefresher_ZeroPopularityIsPresent(t *testing.T) {
	api := &fakeAPI{
		games:      []igdb.Game{game(1, "A"), game(2, "B")},
		popularity: map[int64]float64{1: 0},
	}
	fx := newRefresherFixture(api, 500)

	if err := fx.refresher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	items, _, _ := fx.snapshots.Load()
	if items[0].ID != 1 {
		t.Errorf("item with popularity 0 sorted after absent one: order = [%d %d]", items[0].ID, items[1].ID)
	}
	if items[0].Popularity == nil || *items[0].Popularity != 0 {
		t.Errorf("popularity 0 coerced: %v", items[0].Popularity)
	}
}

func TestRefresher_SecondTriggerIsNoOp(t *testing.T) {
	fx := newRefresherFixture(&fakeAPI{}, 500)

	inProgress := SyncState{Status: StatusInProgress, Phase: "downloading items", Offset: 1500}
	if err := fx.states.Save(inProgress); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := fx.refresher.Run(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Run error = %v, want ErrAlreadyRunning", err)
	}

	// The losing trigger must not disturb the active run's progress record
	state := fx.states.Load()
	if state.Status != StatusInProgress || state.Offset != 1500 {
		t.Errorf("state changed by rejected trigger: %+v", state)
	}
}

func TestRefresher_StopFlagWithinOnePage(t *testing.T) {
	api := &fakeAPI{
		games: []igdb.Game{
			game(1, "A"), game(2, "B"),
			game(3, "C"), game(4, "D"),
			game(5, "E"),
		},
	}
	fx := newRefresherFixture(api, 2)

	// Publish a previous snapshot to prove it survives the stop untouched
	previous := []Item{{ID: 99, Name: "Old"}}
	if err := fx.snapshots.Publish(previous); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	before, err := fx.store.Get("catalog:snapshot")
	if err != nil {
		t.Fatalf("Get snapshot: %v", err)
	}

	api.afterPage = func(page int) {
		if page == 1 {
			if err := fx.states.RequestStop(); err != nil {
				t.Fatalf("RequestStop: %v", err)
			}
		}
	}

	err = fx.refresher.Run(context.Background())
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run error = %v, want ErrStopped", err)
	}

	if got := api.pagesServed; got != 1 {
		t.Errorf("engine fetched %d pages after stop request, want 1", got)
	}

	state := fx.states.Load()
	if state.Status != StatusStopped {
		t.Errorf("Status = %s, want stopped", state.Status)
	}
	if fx.states.StopRequested() {
		t.Error("stop flag not cleared after being observed")
	}

	after, err := fx.store.Get("catalog:snapshot")
	if err != nil {
		t.Fatalf("Get snapshot after stop: %v", err)
	}
	if string(before) != string(after) {
		t.Error("previous snapshot modified by a stopped run")
	}
}

func TestRefresher_FetchErrorMarksRunFailed(t *testing.T) {
	api := &fakeAPI{
		games:    []igdb.Game{game(1, "A"), game(2, "B"), game(3, "C")},
		failPage: 2,
	}
	fx := newRefresherFixture(api, 2)

	err := fx.refresher.Run(context.Background())
	if err == nil || errors.Is(err, ErrStopped) {
		t.Fatalf("Run error = %v, want fatal fetch error", err)
	}

	state := fx.states.Load()
	if state.Status != StatusError {
		t.Errorf("Status = %s, want error", state.Status)
	}
	if state.LastError == "" {
		t.Error("LastError not recorded")
	}

	// No partial snapshot is published on failure
	if fx.snapshots.Exists() {
		t.Error("partial snapshot published by failed run")
	}
}

func TestRefresher_CountFailureDegradesTotal(t *testing.T) {
	api := &fakeAPI{
		games:    []igdb.Game{game(1, "A")},
		countErr: errors.New("count endpoint down"),
	}
	fx := newRefresherFixture(api, 500)

	if err := fx.refresher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	state := fx.states.Load()
	if state.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed (count failure must not abort)", state.Status)
	}
	if state.Total != nil {
		t.Errorf("Total = %v, want nil when count endpoint is unavailable", *state.Total)
	}
}

func TestRefresher_NewRunAfterErrorStartsFresh(t *testing.T) {
	api := &fakeAPI{
		games:    []igdb.Game{game(1, "A")},
		failPage: 1,
	}
	fx := newRefresherFixture(api, 500)

	if err := fx.refresher.Run(context.Background()); err == nil {
		t.Fatal("first Run should fail")
	}

	api.failPage = 0
	if err := fx.refresher.Run(context.Background()); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if state := fx.states.Load(); state.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed after fresh run", state.Status)
	}
}

func TestRefresher_OnFinishCallback(t *testing.T) {
	api := &fakeAPI{games: []igdb.Game{game(1, "A")}}
	fx := newRefresherFixture(api, 500)

	var got *SyncState
	fx.refresher.OnFinish(func(state SyncState) { got = &state })

	if err := fx.refresher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got == nil {
		t.Fatal("OnFinish callback not invoked")
	}
	if got.Status != StatusCompleted {
		t.Errorf("callback state = %s, want completed", got.Status)
	}
}
