// Package triangle enumerates base->X->Y->base cycles over the clean
// price set and the venue registry's pool catalog (spec §4.2). The search
// never does pool arithmetic itself — every quote is delegated to the
// venue builder that owns the pool. Grounded on the teacher's
// mempool.Poller shape only for the surrounding tick loop (wired in
// internal/detector); this package is the pure, synchronous core the
// detector calls once per tick.
package triangle

import (
	"sort"
	"time"

	"github.com/rawblock/triarb-engine/internal/venue"
	"github.com/rawblock/triarb-engine/pkg/models"
)

// Config holds the cheap-reject thresholds from spec §4.2.
type Config struct {
	MaxSkew      time.Duration // default 1s
	RMax         float64       // default 0.20 (20%)
	MinSpreadPct float64       // early-reject floor on gross return, before the cost model; 0 disables it
}

// DefaultConfig returns the spec-named defaults.
func DefaultConfig() Config {
	return Config{MaxSkew: time.Second, RMax: 0.20}
}

// feeRater is implemented by venue builders that publish a per-pool fee
// rate. Builders that don't implement it fall through to the cost model's
// own unpublished-fee default (spec §4.3).
type feeRater interface {
	FeeRateOf(pool string) (float64, bool)
}

// Search enumerates every base->X->Y->base cycle reachable from the clean
// set via reg, applies the cheap rejects, and returns candidates in
// deterministic sort order.
func Search(clean []models.PriceObservation, reg *venue.Registry, base string, inputSize float64, cfg Config, now time.Time) []models.TriangleCandidate {
	byToken := make(map[string][]models.PriceObservation)
	for _, o := range clean {
		if o.Token == base {
			continue
		}
		byToken[o.Token] = append(byToken[o.Token], o)
	}

	tokens := make([]string, 0, len(byToken))
	for t := range byToken {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	var out []models.TriangleCandidate

	for _, x := range tokens {
		baseToXPools := byToken[x]
		if len(baseToXPools) == 0 {
			continue
		}
		for _, y := range tokens {
			if y == x {
				continue
			}
			xToYRefs := reg.PoolsForPair(x, y)
			if len(xToYRefs) == 0 {
				continue
			}
			yToBasePools := byToken[y]
			if len(yToBasePools) == 0 {
				continue
			}

			for _, legAObs := range baseToXPools {
				leg1Builder, err := reg.Get(legAObs.Venue)
				if err != nil {
					continue
				}
				xOut, err := leg1Builder.Quote(legAObs.PoolID, base, inputSize)
				if err != nil || xOut <= 0 {
					continue
				}

				for _, refB := range xToYRefs {
					leg2Builder, err := reg.Get(refB.Venue)
					if err != nil {
						continue
					}
					yOut, err := leg2Builder.Quote(refB.PoolID, x, xOut)
					if err != nil || yOut <= 0 {
						continue
					}

					for _, legCObs := range yToBasePools {
						leg3Builder, err := reg.Get(legCObs.Venue)
						if err != nil {
							continue
						}
						baseOut, err := leg3Builder.Quote(legCObs.PoolID, y, yOut)
						if err != nil || baseOut <= 0 {
							continue
						}

						cand := buildCandidate(base, x, y, legAObs, refB, legCObs, inputSize, xOut, yOut, baseOut, leg1Builder, leg2Builder, leg3Builder, now)

						if skew(cand) > cfg.MaxSkew {
							continue
						}
						grossReturn := (cand.SimulatedOutputBase - inputSize) / inputSize
						if grossReturn < cfg.MinSpreadPct {
							continue
						}
						if grossReturn > cfg.RMax {
							continue
						}
						if cand.SimulatedOutputBase <= inputSize {
							continue
						}
						out = append(out, cand)
					}
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return less(out[i].SortKey(), out[j].SortKey())
	})
	return out
}

func buildCandidate(base, x, y string, legA models.PriceObservation, refB venue.PoolRef, legC models.PriceObservation, inputSize, xOut, yOut, baseOut float64, leg1Builder, leg2Builder, leg3Builder venue.Builder, now time.Time) models.TriangleCandidate {
	leg1FeeRate := feeRateOf(leg1Builder, legA.PoolID)
	leg2FeeRate := feeRateOf(leg2Builder, refB.PoolID)
	leg3FeeRate := feeRateOf(leg3Builder, legC.PoolID)

	leg1 := models.Leg{Venue: legA.Venue, PoolID: legA.PoolID, InputToken: base, Output: x, InputAmt: inputSize, OutputAmt: xOut, FeeRate: leg1FeeRate, ObservedAt: legA.ObservedAt}
	leg2 := models.Leg{Venue: refB.Venue, PoolID: refB.PoolID, InputToken: x, Output: y, InputAmt: xOut, OutputAmt: yOut, FeeRate: leg2FeeRate, ObservedAt: now}
	leg3 := models.Leg{Venue: legC.Venue, PoolID: legC.PoolID, InputToken: y, Output: base, InputAmt: yOut, OutputAmt: baseOut, FeeRate: leg3FeeRate, ObservedAt: legC.ObservedAt}

	observedAt := leg1.ObservedAt
	if leg2.ObservedAt.Before(observedAt) {
		observedAt = leg2.ObservedAt
	}
	if leg3.ObservedAt.Before(observedAt) {
		observedAt = leg3.ObservedAt
	}

	return models.TriangleCandidate{
		Leg1:                leg1,
		Leg2:                leg2,
		Leg3:                leg3,
		InputBase:           inputSize,
		SimulatedOutputBase: baseOut,
		ObservedAt:          observedAt,
	}
}

// feeRateOf returns b's published fee rate for pool, or 0 if b doesn't
// implement feeRater or has no published rate for it — the cost model
// then applies its own unpublished-fee default (spec §4.3).
func feeRateOf(b venue.Builder, pool string) float64 {
	fr, ok := b.(feeRater)
	if !ok {
		return 0
	}
	v, ok := fr.FeeRateOf(pool)
	if !ok {
		return 0
	}
	return v
}

func skew(c models.TriangleCandidate) time.Duration {
	times := []time.Time{c.Leg1.ObservedAt, c.Leg2.ObservedAt, c.Leg3.ObservedAt}
	min, max := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return max.Sub(min)
}

func less(a, b [8]string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
