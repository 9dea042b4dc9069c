// Package filter implements the layered price filter of spec §4.1: L1
// freshness, L2 volume/activity, L3 non-zero, L4 per-token median
// deviation. It turns a raw observation list into the clean set that is
// safe for the triangle search to do arithmetic over.
package filter

import (
	"sort"
	"time"

	"github.com/rawblock/triarb-engine/pkg/models"
)

// Thresholds holds the tunable defaults from spec §4.1.
type Thresholds struct {
	Freshness     time.Duration // F, default 30m
	MinVolume24h  float64       // V_min, default 10_000
	MinSwapCount  int64         // S_min, default 5
	MaxDeviation  float64       // D, default 0.50
	MinObsPerToken int          // K, default 2
}

// DefaultThresholds returns the defaults named in spec §4.1.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Freshness:      30 * time.Minute,
		MinVolume24h:   10_000,
		MinSwapCount:   5,
		MaxDeviation:   0.50,
		MinObsPerToken: 2,
	}
}

// Counts tallies how many records were dropped per reason, for the
// per-reason counters spec §7 requires ("Filter rejection: normal, counted
// per reason").
type Counts map[models.RejectReason]int

// Result is the output of one filter pass.
type Result struct {
	Clean  []models.PriceObservation
	Counts Counts
}

// Filter runs L1-L4 in order and returns the clean set plus rejection
// counts. It never returns an error — malformed records are dropped and
// counted, per spec §4.1's "Errors: none" contract.
func Filter(observations []models.PriceObservation, now time.Time, th Thresholds) Result {
	counts := Counts{}
	survivors := make([]models.PriceObservation, 0, len(observations))

	for _, o := range observations {
		if !o.Valid() {
			counts[models.ReasonMalformed]++
			continue
		}
		if now.Sub(o.ObservedAt) > th.Freshness {
			counts[models.ReasonStaleness]++
			continue
		}
		if o.Volume24h < th.MinVolume24h {
			counts[models.ReasonVolume]++
			continue
		}
		if o.SwapCount24h < th.MinSwapCount {
			counts[models.ReasonSwapCount]++
			continue
		}
		if o.PriceBase <= 0 {
			counts[models.ReasonZeroPrice]++
			continue
		}
		survivors = append(survivors, o)
	}

	// L4: group by token, compute median, reject outliers. Applied after
	// L1-L3 so the median reflects only already-sane prices (spec §4.1).
	byToken := make(map[string][]models.PriceObservation)
	for _, o := range survivors {
		byToken[o.Token] = append(byToken[o.Token], o)
	}

	clean := make([]models.PriceObservation, 0, len(survivors))
	for token, obs := range byToken {
		med := median(obs)
		var keep []models.PriceObservation
		for _, o := range obs {
			dev := abs(o.PriceBase-med) / med
			if dev > th.MaxDeviation {
				counts[models.ReasonDeviation]++
				continue
			}
			keep = append(keep, o)
		}
		if len(keep) < th.MinObsPerToken {
			// Token dropped entirely: fewer than K survivors, per spec §3/§4.1.
			for range keep {
				counts[models.ReasonTooFewObs]++
			}
			_ = token
			continue
		}
		clean = append(clean, keep...)
	}

	return Result{Clean: clean, Counts: counts}
}

// median computes the arithmetic-mean-of-two-central-elements median for
// an even count, per spec §4.1's tie-break rule.
func median(obs []models.PriceObservation) float64 {
	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.PriceBase
	}
	sort.Float64s(prices)
	n := len(prices)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Index is the TokenMedianIndex of spec §3: the per-token median of all
// post-L1-L2 (i.e. post-filter) prices across pools, rebuilt every tick
// and never persisted.
type Index map[string]float64

// BuildIndex computes the median price per token over the clean set.
func BuildIndex(clean []models.PriceObservation) Index {
	byToken := make(map[string][]models.PriceObservation)
	for _, o := range clean {
		byToken[o.Token] = append(byToken[o.Token], o)
	}
	idx := make(Index, len(byToken))
	for token, obs := range byToken {
		idx[token] = median(obs)
	}
	return idx
}
