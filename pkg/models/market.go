// Package models holds the data shapes shared across the detection
// pipeline: price observations ingested from the Price Store, the
// candidates and cost breakdowns derived from them, and the job record
// the submission queue owns end to end.
package models

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
)

// PriceObservation is one reading for one (token, venue, pool). Immutable;
// a fresh ingest replaces the prior reading for the same key rather than
// mutating it in place.
type PriceObservation struct {
	Token        string    `json:"token"`
	Venue        string    `json:"venue"`
	PoolID       string    `json:"poolId"`
	PriceBase    float64   `json:"priceBase"`
	Volume24h    float64   `json:"volume24h"`
	SwapCount24h int64     `json:"swapCount24h"`
	ObservedAt   time.Time `json:"observedAt"`
}

// Key returns the (token, venue, pool) cache key. Two pools on the same
// venue can quote the same token at different prices, so pool must be
// part of the key.
func (p PriceObservation) Key() string {
	return p.Token + "|" + p.Venue + "|" + p.PoolID
}

// Valid reports whether the observation carries the minimum identifiers
// and finite numeric fields required before it can even be considered by
// the filter. This is the malformed-record guard from spec §4.1 / §6 —
// it runs before L1-L4, and the filter drops a record that fails it and
// counts it under ReasonMalformed.
func (p PriceObservation) Valid() bool {
	if p.Token == "" || p.Venue == "" || p.PoolID == "" {
		return false
	}
	if p.ObservedAt.IsZero() {
		return false
	}
	return isFinite(p.PriceBase) && isFinite(p.Volume24h)
}

func isFinite(f float64) bool {
	return f == f && f < maxFinite && f > -maxFinite
}

const maxFinite = 1e308

// Leg is one quoted hop of a triangle: swap Input -> Output at a specific
// venue/pool.
type Leg struct {
	Venue      string
	PoolID     string
	InputToken string
	Output     string
	InputAmt   float64
	OutputAmt  float64
	FeeRate    float64 // venue-published fee rate for this leg, 0 if unknown
	ObservedAt time.Time
}

// TriangleCandidate is base -> X -> Y -> base, never mutated after the
// search constructs it.
type TriangleCandidate struct {
	Leg1                Leg
	Leg2                Leg
	Leg3                Leg
	InputBase           float64
	SimulatedOutputBase float64
	ObservedAt          time.Time // min of the three legs' ObservedAt
}

// TokenX is the first intermediate token of the cycle.
func (c TriangleCandidate) TokenX() string { return c.Leg1.Output }

// TokenY is the second intermediate token of the cycle.
func (c TriangleCandidate) TokenY() string { return c.Leg2.Output }

// SortKey is the deterministic ordering tuple from spec §4.2, used to make
// replays reproducible.
func (c TriangleCandidate) SortKey() [8]string {
	return [8]string{
		c.TokenX(), c.TokenY(),
		c.Leg1.Venue, c.Leg1.PoolID,
		c.Leg2.Venue, c.Leg2.PoolID,
		c.Leg3.Venue, c.Leg3.PoolID,
	}
}

// Fingerprint is a content hash of the candidate's sort key — two searches
// over the same price set produce the same fingerprint for the same cycle.
// NewSubmissionJob stamps it on the job, and the queue logs it.
func (c TriangleCandidate) Fingerprint() chainhash.Hash {
	key := c.SortKey()
	var buf []byte
	for _, s := range key {
		buf = append(buf, s...)
		buf = append(buf, 0)
	}
	return chainhash.HashH(buf)
}

// CostBreakdown is derived from a TriangleCandidate plus the current tip
// market snapshot. Stateless: same inputs always produce the same output.
type CostBreakdown struct {
	VenueFees    float64
	Tip          float64
	Gas          float64
	TotalCost    float64
	GrossProfit  float64
	NetProfit    float64
	MarginRatio  float64
	MeetsMargin  bool
	GasBaseFee   float64 // 70% split, see spec §4.3
	GasComputeFee float64 // 30% split
}

// RejectReason is a stable, loggable reason string. Kept as a defined type
// so callers can't typo a reason into a counter that nothing ever reads.
type RejectReason string

const (
	ReasonStaleness        RejectReason = "freshness"
	ReasonVolume           RejectReason = "volume"
	ReasonSwapCount        RejectReason = "swaps"
	ReasonZeroPrice        RejectReason = "zero"
	ReasonDeviation        RejectReason = "deviation"
	ReasonMalformed        RejectReason = "malformed"
	ReasonTooFewObs        RejectReason = "insufficient_observations"
	ReasonSkew             RejectReason = "skew"
	ReasonSanityCap        RejectReason = "sanity_cap"
	ReasonNoGrossProfit    RejectReason = "no_gross_profit"
	ReasonVenueRefused     RejectReason = "venue_builder_refused"
	ReasonBelowMargin      RejectReason = "below_margin"
	ReasonPaperMode        RejectReason = "paper_mode"
	ReasonKillSwitch       RejectReason = "kill_switch_engaged"
	ReasonBreakerOpen      RejectReason = "breaker_open"
	ReasonDailyLoss        RejectReason = "daily_loss_limit"
	ReasonDailyTradeCap    RejectReason = "daily_trade_cap"
	ReasonConsecutiveFails RejectReason = "consecutive_failures"
	ReasonInsufficientCap  RejectReason = "insufficient_free_capital"
	ReasonQueueFull        RejectReason = "queue_full"
	ReasonStaleJob         RejectReason = "stale"
	ReasonRateLimited      RejectReason = "rate_limited"
	ReasonTransportError   RejectReason = "transport_error"
)

// SubmissionJob is owned by the queue from enqueue to outcome recording,
// at which point its reservation is released and it is discarded.
type SubmissionJob struct {
	ID                string
	Fingerprint       chainhash.Hash
	Candidate         TriangleCandidate
	Cost              CostBreakdown
	BuiltTransactions [][]byte // opaque signed-instruction blobs from the venue builders
	ReservedBase      float64
	EnqueuedAt        time.Time
	Deadline          time.Time
}

// NewSubmissionJob stamps a fresh job with a random ID and a deadline
// jobDeadline past now.
func NewSubmissionJob(cand TriangleCandidate, cost CostBreakdown, reserved float64, now time.Time, jobDeadline time.Duration) SubmissionJob {
	return SubmissionJob{
		ID:           uuid.NewString(),
		Fingerprint:  cand.Fingerprint(),
		Candidate:    cand,
		Cost:         cost,
		ReservedBase: reserved,
		EnqueuedAt:   now,
		Deadline:     now.Add(jobDeadline),
	}
}

// TipSnapshot is a recent distribution of accepted-bundle tips, refreshed
// periodically and read lock-free by the cost model (spec §5).
type TipSnapshot struct {
	Percentiles map[int]float64 // e.g. 50 -> p50 tip, 99 -> p99 tip, in base units
	CapturedAt  time.Time
}

// Percentile returns the snapshot value at p, falling back to the nearest
// lower percentile present if an exact match is missing, and 0 if the
// snapshot is empty (the cost model then falls through to TipMin).
func (s TipSnapshot) Percentile(p int) float64 {
	if v, ok := s.Percentiles[p]; ok {
		return v
	}
	best := -1
	var bestVal float64
	for k, v := range s.Percentiles {
		if k <= p && k > best {
			best = k
			bestVal = v
		}
	}
	return bestVal
}

// SubmitOutcome is the result of one transport attempt, per spec §4.5.
type SubmitOutcome struct {
	Kind   OutcomeKind
	ID     string // accepted bundle id, if any
	Reason string
	Err    error
}

type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeRateLimited
	OutcomeRejected
	OutcomeTransportError
)

// AlertKind labels the three event types pushed to the dashboard feed.
type AlertKind string

const (
	AlertCandidateQueued AlertKind = "candidate_queued"
	AlertOutcome         AlertKind = "submission_outcome"
	AlertBreakerTrip     AlertKind = "breaker_trip"
)

// Alert is one push notification to the dashboard websocket feed. Data
// carries the kind-specific payload (a SubmissionJob, a SubmitOutcome, or
// a breaker state/reason pair), marshaled as-is.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewAlert stamps a fresh alert with a random ID and the current time.
func NewAlert(kind AlertKind, data any, now time.Time) Alert {
	return Alert{ID: uuid.NewString(), Kind: kind, Timestamp: now, Data: data}
}
