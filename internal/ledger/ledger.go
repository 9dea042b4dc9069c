// Package ledger owns the single process-wide PositionLedger account
// (spec §3) and the CircuitBreakerState next to it. Every mutation goes
// through one mutex, matching spec §5's single-serialization-point
// requirement for shared state.
package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is a read-only copy of the ledger state at a point in time, safe
// to pass around and log without holding the ledger's lock.
type Snapshot struct {
	TotalCapital        float64
	Reserved            float64
	FreeCapital         float64
	DailyPnL            float64
	DailyTradeCount     int
	ConsecutiveFailures int
}

// Ledger is the PositionLedger of spec §3.
type Ledger struct {
	mu sync.Mutex

	totalCapital float64
	feeReserve   float64

	reserved            float64
	dailyPnL            float64
	dailyTradeCount     int
	consecutiveFailures int
	lastResetDay        string
}

// New constructs a ledger with totalCapital and the fee reserve carved out
// of free capital, stamped with now's local day for rollover tracking.
func New(totalCapital, feeReserve float64, now time.Time) *Ledger {
	return &Ledger{
		totalCapital: totalCapital,
		feeReserve:   feeReserve,
		lastResetDay: dayKey(now),
	}
}

func dayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// DayKey exposes the same local-day key the ledger uses internally, so
// callers persisting/restoring rollover rows key them identically.
func DayKey(t time.Time) string {
	return dayKey(t)
}

// rolloverIfNeeded resets the daily counters at a local-day boundary, per
// spec §3's invariant. Must be called with mu held.
func (l *Ledger) rolloverIfNeeded(now time.Time) {
	today := dayKey(now)
	if today == l.lastResetDay {
		return
	}
	l.lastResetDay = today
	l.dailyPnL = 0
	l.dailyTradeCount = 0
	l.consecutiveFailures = 0
}

// Snapshot returns the current state after applying any pending day
// rollover.
func (l *Ledger) Snapshot(now time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded(now)
	return Snapshot{
		TotalCapital:        l.totalCapital,
		Reserved:            l.reserved,
		FreeCapital:         l.totalCapital - l.feeReserve - l.reserved,
		DailyPnL:            l.dailyPnL,
		DailyTradeCount:     l.dailyTradeCount,
		ConsecutiveFailures: l.consecutiveFailures,
	}
}

// RestoreDaily seeds the day's counters from a persisted rollover row, for
// recovering mid-day state across a restart (spec §6's optional rollover
// persistence). A no-op if day doesn't match the ledger's current day, so
// a stale row from a prior day can never leak into today's counters.
func (l *Ledger) RestoreDaily(day string, dailyPnL float64, dailyTradeCount, consecutiveFailures int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day != l.lastResetDay {
		return
	}
	l.dailyPnL = dailyPnL
	l.dailyTradeCount = dailyTradeCount
	l.consecutiveFailures = consecutiveFailures
}

// ErrInsufficientCapital is returned by Reserve when amount would push
// reserved capital past the free-capital ceiling.
var ErrInsufficientCapital = fmt.Errorf("ledger: insufficient free capital")

// Reserve atomically carves amount out of free capital and increments the
// daily trade count, per spec §4.4's acceptance path. Returns
// ErrInsufficientCapital without mutating state if amount doesn't fit.
func (l *Ledger) Reserve(amount float64, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded(now)

	free := l.totalCapital - l.feeReserve - l.reserved
	if amount > free {
		return ErrInsufficientCapital
	}
	l.reserved += amount
	l.dailyTradeCount++
	return nil
}

// Release returns amount to free capital. Always called exactly once per
// reservation, win or lose (spec §4.5's "always release the reservation").
func (l *Ledger) Release(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= amount
	if l.reserved < 0 {
		l.reserved = 0
	}
}

// ReleaseUnsubmitted releases amount and rolls back the daily trade count
// Reserve incremented at governor acceptance, for a job that never reached
// a transport (queue-full at enqueue, or stale at dequeue). Per spec §4.5
// ("reservation released; daily trade count for second decremented to
// restore parity"), this is not a transport failure, so it never touches
// consecutiveFailures — only RecordOutcome does that.
func (l *Ledger) ReleaseUnsubmitted(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= amount
	if l.reserved < 0 {
		l.reserved = 0
	}
	l.dailyTradeCount--
	if l.dailyTradeCount < 0 {
		l.dailyTradeCount = 0
	}
}

// RecordOutcome applies a landed submission's realized PnL and updates the
// consecutive-failure streak. accepted means the bundle was accepted by a
// transport; only then is PnL credited provisionally with
// gross_profit - total_cost. A non-accepted outcome leaves PnL unchanged.
func (l *Ledger) RecordOutcome(accepted bool, totalCost, grossProfit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if accepted {
		l.dailyPnL += grossProfit - totalCost
		l.consecutiveFailures = 0
		return
	}
	l.consecutiveFailures++
}
