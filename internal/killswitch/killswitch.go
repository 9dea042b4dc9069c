// Package killswitch watches the operator kill-switch marker file named
// in spec §4.4/§6. Its presence trips the shared circuit breaker; its
// removal is the only thing that ever closes the breaker again. The
// watch loop is event-driven (fsnotify) with a periodic poll fallback,
// the same belt-and-suspenders shape as the teacher's ticker-based
// cleanupLoop in ratelimit.go, generalized from bucket eviction to
// marker-file presence.
package killswitch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/internal/ledger"
)

const defaultPollInterval = 5 * time.Second

// Watcher ties a marker file path to the shared breaker.
type Watcher struct {
	path         string
	breaker      *ledger.Breaker
	log          *zap.Logger
	pollInterval time.Duration
}

// New constructs a watcher for path, using the spec default poll interval.
func New(path string, breaker *ledger.Breaker, log *zap.Logger) *Watcher {
	return &Watcher{path: path, breaker: breaker, log: log, pollInterval: defaultPollInterval}
}

// Run blocks until ctx is cancelled, keeping the breaker's open/closed
// state in sync with the marker file's presence.
func (w *Watcher) Run(ctx context.Context) error {
	w.sync()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("killswitch: fsnotify unavailable, falling back to poll-only", zap.Error(err))
		return w.pollOnly(ctx)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.log.Warn("killswitch: cannot watch marker directory, falling back to poll-only", zap.String("dir", dir), zap.Error(err))
		return w.pollOnly(ctx)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == filepath.Clean(w.path) {
				w.sync()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("killswitch: fsnotify error", zap.Error(err))
		case <-ticker.C:
			w.sync()
		}
	}
}

// pollOnly is used when fsnotify can't be set up at all (missing
// directory, platform restrictions inside a container).
func (w *Watcher) pollOnly(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sync()
		}
	}
}

// sync reconciles breaker state with the marker file's presence. Marker
// removal starts the rearm sequence for an open breaker regardless of why
// it tripped — an operator who wants to resume after a daily loss trip
// acknowledges it the same way as clearing a manual kill — but full
// closure waits for the detector to confirm one clean tick (spec §6).
func (w *Watcher) sync() {
	_, err := os.Stat(w.path)
	present := err == nil

	switch {
	case present && w.breaker.State() != ledger.BreakerOpen:
		w.breaker.Trip("kill switch engaged", time.Now())
		w.log.Warn("kill switch engaged", zap.String("marker", w.path))
	case !present && w.breaker.State() == ledger.BreakerOpen:
		w.breaker.BeginRearm()
		w.log.Info("kill switch marker removed, awaiting clean tick to rearm", zap.String("marker", w.path))
	}
}
