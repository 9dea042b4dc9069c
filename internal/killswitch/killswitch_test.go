package killswitch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/internal/ledger"
)

func TestWatcher_SyncTripsOnMarkerPresence(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "killswitch")

	breaker := ledger.NewBreaker()
	w := New(marker, breaker, zap.NewNop())

	w.sync()
	if breaker.IsOpen() {
		t.Fatalf("expected breaker closed before marker exists")
	}

	if err := os.WriteFile(marker, []byte("stop"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	w.sync()
	if !breaker.IsOpen() {
		t.Fatalf("expected breaker open after marker created")
	}

	if err := os.Remove(marker); err != nil {
		t.Fatalf("remove marker: %v", err)
	}
	w.sync()
	if breaker.State() != ledger.BreakerPendingRearm {
		t.Fatalf("expected breaker pending rearm after marker removed, got %v", breaker.State())
	}
	if !breaker.IsOpen() {
		t.Fatalf("expected pending-rearm breaker to still veto submission")
	}

	breaker.ConfirmRearm()
	if breaker.IsOpen() {
		t.Fatalf("expected breaker fully closed after a confirmed rearm")
	}
}

func TestWatcher_SyncBeginsRearmForBreakerTrippedForOtherReasons(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "killswitch")

	breaker := ledger.NewBreaker()
	breaker.Trip("daily loss limit", time.Now())
	w := New(marker, breaker, zap.NewNop())

	w.sync()
	if breaker.State() != ledger.BreakerPendingRearm {
		t.Fatalf("expected marker-absent sync to begin rearm for a breaker opened for any reason, got %v", breaker.State())
	}
}

func TestWatcher_RunRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "killswitch")
	breaker := ledger.NewBreaker()
	w := New(marker, breaker, zap.NewNop())
	w.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
