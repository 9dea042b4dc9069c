// Package governor implements the ordered veto chain of spec §4.4, the
// last gate between a costed candidate and a SubmissionJob. Every check
// below runs in the order the spec lists them; the first failure wins.
package governor

import (
	"fmt"
	"os"
	"time"

	"github.com/rawblock/triarb-engine/internal/ledger"
	"github.com/rawblock/triarb-engine/internal/venue"
	"github.com/rawblock/triarb-engine/pkg/models"
)

// Config holds the governor's own tunables; margin and cost tunables live
// in the cost package and reach the governor pre-applied on CostBreakdown.
type Config struct {
	TradingEnabled bool
	KillSwitchPath string
	DailyLossLimit float64
	DailyTradeCap  int
	FailCap        int
	JobDeadline    time.Duration
	Wallet         string
}

// Decide runs the veto chain and, on acceptance, reserves capital and
// builds the venue instructions for job. reason is set (and job the zero
// value) on any rejection, including a venue builder failing to build an
// instruction (ReasonVenueRefused); err is always nil.
func Decide(cand models.TriangleCandidate, cb models.CostBreakdown, led *ledger.Ledger, breaker *ledger.Breaker, reg *venue.Registry, cfg Config, now time.Time) (models.SubmissionJob, models.RejectReason, error) {
	if !cfg.TradingEnabled {
		return models.SubmissionJob{}, models.ReasonPaperMode, nil
	}

	if _, err := os.Stat(cfg.KillSwitchPath); err == nil {
		breaker.Trip("kill switch engaged", now)
		return models.SubmissionJob{}, models.ReasonKillSwitch, nil
	}

	if breaker.IsOpen() {
		return models.SubmissionJob{}, models.ReasonBreakerOpen, nil
	}

	snap := led.Snapshot(now)

	if snap.DailyPnL <= -cfg.DailyLossLimit {
		breaker.Trip("daily loss limit", now)
		return models.SubmissionJob{}, models.ReasonDailyLoss, nil
	}

	if snap.DailyTradeCount >= cfg.DailyTradeCap {
		return models.SubmissionJob{}, models.ReasonDailyTradeCap, nil
	}

	if snap.ConsecutiveFailures >= cfg.FailCap {
		breaker.Trip("consecutive failures", now)
		return models.SubmissionJob{}, models.ReasonConsecutiveFails, nil
	}

	if cand.InputBase > snap.FreeCapital {
		return models.SubmissionJob{}, models.ReasonInsufficientCap, nil
	}

	if !cb.MeetsMargin {
		return models.SubmissionJob{}, models.ReasonBelowMargin, nil
	}

	if err := led.Reserve(cand.InputBase, now); err != nil {
		return models.SubmissionJob{}, models.ReasonInsufficientCap, nil
	}

	txns, err := buildInstructions(cand, reg, cfg.Wallet)
	if err != nil {
		led.ReleaseUnsubmitted(cand.InputBase)
		return models.SubmissionJob{}, models.ReasonVenueRefused, nil
	}

	job := models.NewSubmissionJob(cand, cb, cand.InputBase, now, cfg.JobDeadline)
	job.BuiltTransactions = txns
	return job, "", nil
}

func buildInstructions(cand models.TriangleCandidate, reg *venue.Registry, wallet string) ([][]byte, error) {
	legs := []models.Leg{cand.Leg1, cand.Leg2, cand.Leg3}
	out := make([][]byte, 0, len(legs))
	for _, leg := range legs {
		builder, err := reg.Get(leg.Venue)
		if err != nil {
			return nil, fmt.Errorf("governor: %w", err)
		}
		instrs, err := builder.BuildSwap(leg.PoolID, leg.InputToken, leg.InputAmt, leg.OutputAmt, wallet)
		if err != nil {
			return nil, fmt.Errorf("governor: %w", err)
		}
		for _, ins := range instrs {
			out = append(out, []byte(ins))
		}
	}
	return out, nil
}
