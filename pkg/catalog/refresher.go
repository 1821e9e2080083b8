package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gametrack/pkg/igdb"
	"gametrack/pkg/logging"
)

// ErrAlreadyRunning is returned when a trigger arrives while a run is
// in progress. The second trigger is a no-op.
var ErrAlreadyRunning = errors.New("catalog refresh already running")

// ErrStopped is returned when an operator stop request ends a run early.
// It is a terminal outcome for that run, not an error condition: the
// previously published snapshot stays authoritative.
var ErrStopped = errors.New("catalog refresh stopped by operator")

const (
	phaseItems      = "downloading items"
	phasePopularity = "downloading popularity"
	phaseCompleted  = "completed"
)

// CatalogAPI is the slice of the remote client the engine depends on.
type CatalogAPI interface {
	Games(ctx context.Context, offset, limit int) ([]igdb.Game, error)
	PopularityPrimitives(ctx context.Context, ids []int64, popularityType int) ([]igdb.PopularityPrimitive, error)
	CountGames(ctx context.Context) (int, error)
}

// ItemSink receives the merged catalog after each successful publish. The
// relational fallback store implements it; a nil sink disables the tier.
type ItemSink interface {
	UpsertItems(ctx context.Context, items []Item) (int64, error)
}

// RefresherConfig configures the refresh engine.
type RefresherConfig struct {
	PageSize       int // crawl batch size (default: 500)
	PopularityType int // popularity metric joined against items (default: 1)
}

// DefaultRefresherConfig returns sensible defaults.
func DefaultRefresherConfig() *RefresherConfig {
	return &RefresherConfig{
		PageSize:       500,
		PopularityType: 1,
	}
}

// Refresher performs a full paginated crawl of the remote catalog, joins in
// the popularity dataset, sorts the merged result and atomically publishes a
// new snapshot. A single instance is active at a time, enforced by an
// advisory in_progress check; the benign race where two triggers both pass
// the check is tolerated because runs are idempotent.
//
// Cancellation is cooperative: the stop flag is polled after every page, so
// a stop request takes effect within one page-fetch-plus-backoff latency.
type Refresher struct {
	api       CatalogAPI
	states    *StateStore
	snapshots *Snapshots
	sink      ItemSink
	config    *RefresherConfig
	logger    *logging.Logger

	mu      sync.Mutex
	running bool

	onFinish func(SyncState)
}

// NewRefresher creates a refresh engine.
func NewRefresher(api CatalogAPI, states *StateStore, snapshots *Snapshots, sink ItemSink, config *RefresherConfig, logger *logging.Logger) *Refresher {
	if config == nil {
		config = DefaultRefresherConfig()
	}
	if logger == nil {
		logger = logging.NewLogger("error", "json")
	}
	return &Refresher{
		api:       api,
		states:    states,
		snapshots: snapshots,
		sink:      sink,
		config:    config,
		logger:    logger,
	}
}

// OnFinish registers a callback invoked with the terminal state of every
// run (completed, stopped or error). Used for operator notifications.
func (r *Refresher) OnFinish(fn func(SyncState)) {
	r.onFinish = fn
}

// Running reports whether a run is active in this process.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Trigger starts a run in the background. Returns ErrAlreadyRunning without
// touching any state when a run is active.
func (r *Refresher) Trigger(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	go r.run(ctx)
	return nil
}

// Run executes a refresh synchronously. Returns ErrAlreadyRunning when a
// run is active, ErrStopped when the operator stopped it, or the fatal
// error that ended the run.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	return r.run(ctx)
}

// begin claims the single active slot and marks the run in progress.
// The check is advisory across processes: the status record is read before
// it is overwritten, which is enough for idempotent refreshes.
func (r *Refresher) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}
	if r.states.Load().Status == StatusInProgress {
		return ErrAlreadyRunning
	}

	if err := r.states.Save(SyncState{
		Status: StatusInProgress,
		Phase:  phaseItems,
	}); err != nil {
		return fmt.Errorf("mark run in progress: %w", err)
	}

	r.running = true
	return nil
}

func (r *Refresher) run(ctx context.Context) error {
	start := time.Now()
	runID := start.UTC().Format("20060102T150405Z")
	r.logger.RunStart(runID)

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	final, err := r.crawl(ctx, runID)

	switch {
	case err == nil:
		r.logger.RunComplete(runID, time.Since(start).Seconds(), final.ItemCount)
	case errors.Is(err, ErrStopped):
		r.logger.WithRun(runID).WithField("offset", final.Offset).Info("catalog refresh stopped by operator")
	default:
		r.logger.RunError(runID, err, time.Since(start).Seconds())
	}

	if saveErr := r.states.Save(final); saveErr != nil {
		r.logger.WithRun(runID).WithError(saveErr).Error("failed to persist final sync state")
	}

	if r.onFinish != nil {
		r.onFinish(final)
	}
	return err
}

// crawl performs the two-phase download and, on success, the atomic publish.
// It returns the terminal SyncState for the run alongside the run outcome.
func (r *Refresher) crawl(ctx context.Context, runID string) (SyncState, error) {
	pageSize := r.config.PageSize
	total := r.fetchTotal(ctx, runID)

	// Phase 1: page through the item catalog.
	var games []igdb.Game
	var ids []int64
	offset := 0
	for {
		page, err := r.api.Games(ctx, offset, pageSize)
		if err != nil {
			return r.errorState(offset, total, err), err
		}
		if len(page) == 0 {
			break
		}

		games = append(games, page...)
		for _, game := range page {
			ids = append(ids, game.ID)
		}

		r.tick(runID, phaseItems, offset+len(page), total, len(games))

		if r.states.StopRequested() {
			return r.stopState(offset, total, len(games))
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	// Phase 2: join in popularity, batched over the collected ids.
	popularity := make(map[int64]float64)
	for batchStart := 0; batchStart < len(ids); batchStart += pageSize {
		end := batchStart + pageSize
		if end > len(ids) {
			end = len(ids)
		}

		primitives, err := r.api.PopularityPrimitives(ctx, ids[batchStart:end], r.config.PopularityType)
		if err != nil {
			return r.errorState(batchStart, total, err), err
		}
		for _, p := range primitives {
			popularity[p.GameID] = p.Value
		}

		r.tick(runID, phasePopularity, batchStart+len(ids[batchStart:end]), total, len(games))

		if r.states.StopRequested() {
			return r.stopState(batchStart, total, len(games))
		}
	}

	// Merge, normalize and rank.
	items := make([]Item, 0, len(games))
	for _, game := range games {
		item := FromGame(game)
		if value, ok := popularity[game.ID]; ok {
			v := value
			item.Popularity = &v
		}
		items = append(items, item)
	}
	SortByPopularity(items, false)

	// Publish atomically; a serialization failure leaves the previous
	// snapshot authoritative.
	if err := r.snapshots.Publish(items); err != nil {
		return r.errorState(offset, total, err), err
	}

	if r.sink != nil {
		if _, err := r.sink.UpsertItems(ctx, items); err != nil {
			// The snapshot is already live; the relational tier catches up
			// on the next run.
			r.logger.WithRun(runID).WithError(err).Warn("relational fallback upsert failed")
		}
	}

	now := time.Now().UTC()
	return SyncState{
		Status:     StatusCompleted,
		Phase:      phaseCompleted,
		Offset:     offset,
		Total:      total,
		ItemCount:  len(items),
		LastUpdate: &now,
	}, nil
}

// fetchTotal asks the remote count endpoint for the expected catalog size.
// Failure degrades the total to unknown and never aborts the crawl.
func (r *Refresher) fetchTotal(ctx context.Context, runID string) *int {
	count, err := r.api.CountGames(ctx)
	if err != nil {
		r.logger.WithRun(runID).WithError(err).Warn("count endpoint unavailable, total unknown")
		return nil
	}
	return &count
}

// tick records per-page progress for observers. A failed write only costs
// telemetry, so it is logged and ignored.
func (r *Refresher) tick(runID, phase string, offset int, total *int, itemCount int) {
	err := r.states.Save(SyncState{
		Status:    StatusInProgress,
		Phase:     phase,
		Offset:    offset,
		Total:     total,
		ItemCount: itemCount,
	})
	if err != nil {
		r.logger.WithRun(runID).WithError(err).Warn("failed to record progress")
	}
}

func (r *Refresher) stopState(offset int, total *int, itemCount int) (SyncState, error) {
	if err := r.states.ClearStop(); err != nil {
		r.logger.WithSync().WithError(err).Warn("failed to clear stop flag")
	}
	return SyncState{
		Status:    StatusStopped,
		Phase:     "stopped by operator",
		Offset:    offset,
		Total:     total,
		ItemCount: itemCount,
	}, ErrStopped
}

func (r *Refresher) errorState(offset int, total *int, err error) SyncState {
	return SyncState{
		Status:    StatusError,
		Phase:     "error",
		Offset:    offset,
		Total:     total,
		LastError: err.Error(),
	}
}

// SortByPopularity orders items by popularity, present values first.
// Descending by default; asc flips the comparison of present values but
// absent popularity always sorts last.
func SortByPopularity(items []Item, asc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := items[i].Popularity, items[j].Popularity
		if (pi == nil) != (pj == nil) {
			return pj == nil
		}
		if pi == nil {
			return false
		}
		if asc {
			return *pi < *pj
		}
		return *pi > *pj
	})
}
