package cost

import (
	"testing"
	"time"

	"github.com/rawblock/triarb-engine/pkg/models"
)

func candidate(input, output float64, feeRate float64) models.TriangleCandidate {
	leg := models.Leg{InputAmt: input, FeeRate: feeRate}
	return models.TriangleCandidate{
		Leg1:                leg,
		Leg2:                leg,
		Leg3:                leg,
		InputBase:           input,
		SimulatedOutputBase: output,
		ObservedAt:          time.Now(),
	}
}

func TestCompute_UnpublishedFeeRateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 1.02, 0) // FeeRate 0 -> falls back to cfg.DefaultFeeRate
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 0.00005}}

	cb := Compute(cand, snap, cfg)
	wantFees := 3 * 1 * cfg.DefaultFeeRate
	if cb.VenueFees != wantFees {
		t.Fatalf("expected venue fees %v, got %v", wantFees, cb.VenueFees)
	}
}

func TestCompute_TripleTipCapEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TipAbsCap = 100 // disable the absolute cap so the percentage caps bind
	cand := candidate(1, 1.10, 0.001)
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 1.0}} // deliberately huge base tip

	cb := Compute(cand, snap, cfg)
	capGross := cfg.TipCapGrossFrac * cb.GrossProfit
	capNet := cfg.TipCapNetFrac * (cb.GrossProfit - cb.VenueFees)
	if cb.Tip > capGross+1e-12 {
		t.Fatalf("tip %v exceeds gross cap %v", cb.Tip, capGross)
	}
	if cb.Tip > capNet+1e-12 {
		t.Fatalf("tip %v exceeds net cap %v", cb.Tip, capNet)
	}
}

func TestCompute_TipFloorEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 1.001, 0.0001)
	snap := models.TipSnapshot{} // empty snapshot -> base tip 0

	cb := Compute(cand, snap, cfg)
	if cb.Tip < cfg.TipMin {
		t.Fatalf("expected tip floor %v enforced, got %v", cfg.TipMin, cb.Tip)
	}
}

func TestCompute_MeetsMarginTrueForFatOpportunity(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 1.50, 0.001)
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 0.0001}}

	cb := Compute(cand, snap, cfg)
	if !cb.MeetsMargin {
		t.Fatalf("expected a large margin opportunity to meet margin, got %+v", cb)
	}
	if cb.NetProfit <= 0 {
		t.Fatalf("expected positive net profit, got %v", cb.NetProfit)
	}
}

func TestCompute_MeetsMarginFalseForThinOpportunity(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 1.0005, 0.0004)
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 0.0003}}

	cb := Compute(cand, snap, cfg)
	if cb.MeetsMargin {
		t.Fatalf("expected a thin opportunity to miss margin, got %+v", cb)
	}
}

func TestCompute_GasSplitIs70_30(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 1.50, 0.001)
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 0.0001}}

	cb := Compute(cand, snap, cfg)
	if cb.GasBaseFee+cb.GasComputeFee != cb.Gas {
		t.Fatalf("expected gas split to sum to gas, got %v+%v != %v", cb.GasBaseFee, cb.GasComputeFee, cb.Gas)
	}
	wantBase := cb.Gas * 0.7
	if cb.GasBaseFee != wantBase {
		t.Fatalf("expected base fee %v, got %v", wantBase, cb.GasBaseFee)
	}
}

func TestCompute_NoGrossProfitDoesNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	cand := candidate(1, 0.99, 0.001)
	snap := models.TipSnapshot{Percentiles: map[int]float64{99: 0.0001}}

	cb := Compute(cand, snap, cfg)
	if cb.MeetsMargin {
		t.Fatalf("expected no-profit candidate to never meet margin")
	}
}
