// Package cost turns a TriangleCandidate into a CostBreakdown and a
// go/no-go margin decision (spec §4.3). It is pure and stateless: the same
// candidate and tip snapshot always produce the same breakdown.
package cost

import "github.com/rawblock/triarb-engine/pkg/models"

// Config holds the tunables named in spec §4.3.
type Config struct {
	DefaultFeeRate   float64 // applied per leg when the venue publishes none, default 0.25%
	TipPercentile    int     // default 99
	TipTargetFrac    float64 // default 0.10, target fraction of gross profit
	TipCapGrossFrac  float64 // default 0.17
	TipCapNetFrac    float64 // default 0.30, applied to (gross_profit - venue_fees)
	TipAbsCap        float64 // T_abs
	TipMin           float64 // T_min
	GasMult          float64 // default 1.5
	MarginMultiplier float64 // M, default 1.05
}

// DefaultConfig returns the spec-named defaults. MarginMultiplier is left
// at the conservative default (1.05); operators set 2.0 in production via
// config when they want a wider margin floor.
func DefaultConfig() Config {
	return Config{
		DefaultFeeRate:   0.0025,
		TipPercentile:    99,
		TipTargetFrac:    0.10,
		TipCapGrossFrac:  0.17,
		TipCapNetFrac:    0.30,
		TipAbsCap:        0.01,
		TipMin:           0.0001,
		GasMult:          1.5,
		MarginMultiplier: 1.05,
	}
}

// Compute derives the full cost breakdown for cand given the current tip
// market snapshot.
func Compute(cand models.TriangleCandidate, tip models.TipSnapshot, cfg Config) models.CostBreakdown {
	venueFees := legFee(cand.Leg1, cfg.DefaultFeeRate) + legFee(cand.Leg2, cfg.DefaultFeeRate) + legFee(cand.Leg3, cfg.DefaultFeeRate)
	grossProfit := cand.SimulatedOutputBase - cand.InputBase

	baseTip := tip.Percentile(cfg.TipPercentile)
	t := scaleTip(baseTip, venueFees, grossProfit, cfg.TipTargetFrac)

	capGross := cfg.TipCapGrossFrac * grossProfit
	capNet := cfg.TipCapNetFrac * (grossProfit - venueFees)
	t = min3(t, capGross, capNet, cfg.TipAbsCap)
	if t < cfg.TipMin {
		t = cfg.TipMin
	}

	gas := t * cfg.GasMult
	gasBase := gas * 0.7
	gasCompute := gas * 0.3

	totalCost := venueFees + t + gas
	netProfit := grossProfit - totalCost
	marginRatio := 0.0
	if totalCost > 0 {
		marginRatio = netProfit / totalCost
	}

	meetsMargin := netProfit > 0 && netProfit >= cfg.MarginMultiplier*totalCost

	return models.CostBreakdown{
		VenueFees:     venueFees,
		Tip:           t,
		Gas:           gas,
		TotalCost:     totalCost,
		GrossProfit:   grossProfit,
		NetProfit:     netProfit,
		MarginRatio:   marginRatio,
		MeetsMargin:   meetsMargin,
		GasBaseFee:    gasBase,
		GasComputeFee: gasCompute,
	}
}

func legFee(leg models.Leg, fallback float64) float64 {
	rate := leg.FeeRate
	if rate <= 0 {
		rate = fallback
	}
	return leg.InputAmt * rate
}

// scaleTip implements the profit-scaled boost: the smaller venue_fees is
// relative to gross_profit, the more headroom there is to push tip toward
// targetFrac*gross_profit to maximize landing probability.
func scaleTip(baseTip, venueFees, grossProfit, targetFrac float64) float64 {
	if grossProfit <= 0 {
		return baseTip
	}
	target := targetFrac * grossProfit
	if target <= baseTip {
		return baseTip
	}
	ratio := venueFees / grossProfit
	headroom := 1 - ratio
	if headroom < 0 {
		headroom = 0
	}
	if headroom > 1 {
		headroom = 1
	}
	return baseTip + headroom*(target-baseTip)
}

func min3(a, b, c, d float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	if d < m {
		m = d
	}
	return m
}
