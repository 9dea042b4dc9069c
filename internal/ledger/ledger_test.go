package ledger

import (
	"testing"
	"time"
)

func TestLedger_ReserveAndRelease(t *testing.T) {
	now := time.Now()
	l := New(10, 0.5, now)

	if err := l.Reserve(2, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := l.Snapshot(now)
	if snap.Reserved != 2 {
		t.Fatalf("expected reserved 2, got %v", snap.Reserved)
	}
	if snap.DailyTradeCount != 1 {
		t.Fatalf("expected trade count 1, got %d", snap.DailyTradeCount)
	}

	l.Release(2)
	if got := l.Snapshot(now).Reserved; got != 0 {
		t.Fatalf("expected reserved 0 after release, got %v", got)
	}
}

func TestLedger_ReserveRejectsOverFreeCapital(t *testing.T) {
	now := time.Now()
	l := New(10, 0.5, now)

	if err := l.Reserve(9.6, now); err == nil {
		t.Fatalf("expected insufficient-capital error, free capital is 9.5")
	}
}

func TestLedger_ReleaseUnsubmittedRollsBackTradeCount(t *testing.T) {
	now := time.Now()
	l := New(10, 0, now)
	_ = l.Reserve(1, now)

	l.ReleaseUnsubmitted(1)
	snap := l.Snapshot(now)
	if snap.Reserved != 0 {
		t.Fatalf("expected reserved 0, got %v", snap.Reserved)
	}
	if snap.DailyTradeCount != 0 {
		t.Fatalf("expected trade count rolled back to 0, got %d", snap.DailyTradeCount)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("expected ReleaseUnsubmitted to leave failure streak untouched, got %d", snap.ConsecutiveFailures)
	}
}

func TestLedger_RecordOutcomeAccepted(t *testing.T) {
	now := time.Now()
	l := New(10, 0, now)
	_ = l.Reserve(1, now)

	l.RecordOutcome(true, 0.01, 0.05)
	snap := l.Snapshot(now)
	if snap.DailyPnL != 0.04 {
		t.Fatalf("expected daily pnl 0.04, got %v", snap.DailyPnL)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("expected consecutive failures reset to 0")
	}
}

func TestLedger_RecordOutcomeFailureIncrementsStreak(t *testing.T) {
	now := time.Now()
	l := New(10, 0, now)
	l.RecordOutcome(false, 0, 0)
	l.RecordOutcome(false, 0, 0)

	snap := l.Snapshot(now)
	if snap.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", snap.ConsecutiveFailures)
	}
	if snap.DailyPnL != 0 {
		t.Fatalf("expected non-accept outcomes to leave PnL untouched, got %v", snap.DailyPnL)
	}
}

func TestLedger_DayRolloverResetsCounters(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 1, 2, 0, 0, 1, 0, time.Local)

	l := New(10, 0, day1)
	_ = l.Reserve(1, day1)
	l.RecordOutcome(false, 0, 0)

	snap := l.Snapshot(day2)
	if snap.DailyTradeCount != 0 || snap.ConsecutiveFailures != 0 || snap.DailyPnL != 0 {
		t.Fatalf("expected daily counters reset after rollover, got %+v", snap)
	}
}

func TestBreaker_TripAndClose(t *testing.T) {
	b := NewBreaker()
	if b.IsOpen() {
		t.Fatalf("expected breaker to start closed")
	}

	now := time.Now()
	b.Trip("daily loss limit", now)
	if !b.IsOpen() {
		t.Fatalf("expected breaker open after trip")
	}
	if b.Reason() != "daily loss limit" {
		t.Fatalf("expected reason to be recorded, got %q", b.Reason())
	}

	b.BeginRearm()
	if !b.IsOpen() {
		t.Fatalf("expected pending-rearm breaker to still veto submission")
	}
	if b.State() != BreakerPendingRearm {
		t.Fatalf("expected pending_rearm state, got %v", b.State())
	}

	b.ConfirmRearm()
	if b.IsOpen() {
		t.Fatalf("expected breaker closed after ConfirmRearm")
	}
	if b.Reason() != "" {
		t.Fatalf("expected reason cleared after close")
	}
}

func TestBreaker_ConfirmRearmNoopWhenNotPending(t *testing.T) {
	b := NewBreaker()
	b.ConfirmRearm()
	if b.State() != BreakerClosed {
		t.Fatalf("expected ConfirmRearm on a closed breaker to be a no-op")
	}
}

func TestBreaker_BeginRearmNoopWhenNotOpen(t *testing.T) {
	b := NewBreaker()
	b.BeginRearm()
	if b.State() != BreakerClosed {
		t.Fatalf("expected BeginRearm on a closed breaker to be a no-op")
	}
}

func TestBreaker_RetripPreservesOriginalOpenedAt(t *testing.T) {
	b := NewBreaker()
	first := time.Now()
	b.Trip("a", first)
	second := first.Add(time.Minute)
	b.Trip("b", second)

	if !b.OpenedAt().Equal(first) {
		t.Fatalf("expected openedAt to stay at first trip time, got %v", b.OpenedAt())
	}
	if b.Reason() != "b" {
		t.Fatalf("expected latest reason recorded, got %q", b.Reason())
	}
}
