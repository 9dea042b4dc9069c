package ledger

import (
	"sync"
	"time"
)

// BreakerState is open|closed per spec §3, plus an internal pendingRearm
// step the marker-removal path passes through before fully closing (spec
// §6: "Removal ⇒ breaker may be rearmed (still requires a no-error tick to
// re-enable submission)").
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerPendingRearm
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerPendingRearm:
		return "pending_rearm"
	default:
		return "closed"
	}
}

// Breaker is the CircuitBreakerState of spec §3. A closed breaker permits
// submission; an open or pending-rearm breaker vetoes every candidate. It
// never auto-closes from inside the process on its own: marker removal
// only starts the rearm sequence, and ConfirmRearm needs one clean
// detection tick to complete it (spec §4.4/§6).
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	reason   string
	openedAt time.Time
	onTrip   func(reason string, openedAt time.Time)
}

// NewBreaker starts closed.
func NewBreaker() *Breaker {
	return &Breaker{state: BreakerClosed}
}

// OnTrip registers a callback fired every time Trip actually opens the
// breaker (not on a reason-only overwrite of an already-open breaker).
// Used to push a dashboard alert; optional.
func (b *Breaker) OnTrip(f func(reason string, openedAt time.Time)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = f
}

// Trip opens the breaker with reason from any state, recording the trip
// time. Tripping an already-open breaker overwrites the reason but not
// the original openedAt, so operators see when the outage actually
// started.
func (b *Breaker) Trip(reason string, now time.Time) {
	b.mu.Lock()
	wasClosed := b.state == BreakerClosed
	if wasClosed {
		b.openedAt = now
	}
	b.state = BreakerOpen
	b.reason = reason
	cb := b.onTrip
	openedAt := b.openedAt
	b.mu.Unlock()

	if wasClosed && cb != nil {
		cb(reason, openedAt)
	}
}

// BeginRearm moves an open breaker into pending-rearm after the operator
// removes the kill-switch marker. Submission stays vetoed until
// ConfirmRearm. A no-op if the breaker isn't currently open.
func (b *Breaker) BeginRearm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		b.state = BreakerPendingRearm
	}
}

// ConfirmRearm closes the breaker after one clean detection tick
// completed with the marker still absent. A no-op if not pending.
func (b *Breaker) ConfirmRearm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerPendingRearm {
		b.state = BreakerClosed
		b.reason = ""
		b.openedAt = time.Time{}
	}
}

// IsOpen reports whether the breaker currently vetoes submission — true
// for both the open and pending-rearm states.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != BreakerClosed
}

// State returns the precise state, for diagnostics and the kill-switch
// watcher's own decisions.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reason returns the trip reason, empty if closed.
func (b *Breaker) Reason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// OpenedAt returns when the breaker last tripped, zero value if closed.
func (b *Breaker) OpenedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openedAt
}
