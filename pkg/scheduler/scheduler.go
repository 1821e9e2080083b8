package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"gametrack/pkg/catalog"
	"gametrack/pkg/logging"
)

// Scheduler keeps the catalog snapshot fresh: one refresh at process start
// when no snapshot is cached, and one per day at a fixed wall-clock hour.
// It also carries the administrative start/stop/status surface that
// delegates to the engine and the stop flag.
type Scheduler struct {
	cron      *cron.Cron
	refresher *catalog.Refresher
	snapshots *catalog.Snapshots
	states    *catalog.StateStore
	logger    *logging.Logger
	hour      int

	mu      sync.Mutex
	started bool
}

// New creates a scheduler that refreshes daily at the given hour (0-23).
func New(refresher *catalog.Refresher, snapshots *catalog.Snapshots, states *catalog.StateStore, hour int, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewLogger("error", "json")
	}

	// Cron with second precision and panic recovery, logging through logrus
	cronLogger := cron.VerbosePrintfLogger(logger.WithComponent("scheduler").Logger)
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	return &Scheduler{
		cron:      c,
		refresher: refresher,
		snapshots: snapshots,
		states:    states,
		logger:    logger,
		hour:      hour,
	}
}

// cronSpec returns the daily schedule expression for the configured hour.
func cronSpec(hour int) string {
	return fmt.Sprintf("0 0 %d * * *", hour)
}

// Start registers the daily job and begins scheduling. Only one scheduling
// loop runs per process; subsequent calls are no-ops.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	spec := cronSpec(s.hour)
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return fmt.Errorf("failed to add daily refresh job: %w", err)
	}

	s.cron.Start()
	s.started = true

	s.logger.WithComponent("scheduler").WithFields(logrus.Fields{
		"cron": spec,
		"hour": s.hour,
	}).Info("daily refresh scheduled")

	// Cold start: produce the first snapshot without waiting a day
	if !s.snapshots.Exists() {
		s.logger.WithComponent("scheduler").Info("no snapshot cached, triggering initial refresh")
		go s.runScheduled()
	}

	return nil
}

// Stop halts the scheduling loop and waits for a running cron invocation
// to return. An in-flight refresh keeps running; use RequestStop to end it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.WithComponent("scheduler").Info("stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
}

// TriggerNow starts a refresh in the background (administrative action).
// Returns catalog.ErrAlreadyRunning when a run is active.
func (s *Scheduler) TriggerNow() error {
	return s.refresher.Trigger(context.Background())
}

// RequestStop asks the active run to stop at its next page boundary.
func (s *Scheduler) RequestStop() error {
	return s.states.RequestStop()
}

// Status returns the current sync state verbatim.
func (s *Scheduler) Status() catalog.SyncState {
	return s.states.Load()
}

func (s *Scheduler) runScheduled() {
	err := s.refresher.Run(context.Background())
	switch {
	case err == nil:
		return
	case errors.Is(err, catalog.ErrAlreadyRunning):
		s.logger.WithComponent("scheduler").Info("scheduled refresh skipped, run already in progress")
	case errors.Is(err, catalog.ErrStopped):
		s.logger.WithComponent("scheduler").Info("scheduled refresh stopped by operator")
	default:
		s.logger.WithComponent("scheduler").WithError(err).Error("scheduled refresh failed")
	}
}
