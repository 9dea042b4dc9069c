// Package detector runs the once-per-tick detection pipeline: fetch
// prices, filter, search triangles, cost them, and hand survivors to the
// safety governor. The ticker/select loop shape is adapted directly from
// the teacher's mempool.Poller.Run — a time.NewTicker driving a single
// synchronous pass per tick, replacing mempool polling with price-feed
// polling.
package detector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/internal/cost"
	"github.com/rawblock/triarb-engine/internal/filter"
	"github.com/rawblock/triarb-engine/internal/governor"
	"github.com/rawblock/triarb-engine/internal/ledger"
	"github.com/rawblock/triarb-engine/internal/metrics"
	"github.com/rawblock/triarb-engine/internal/queue"
	"github.com/rawblock/triarb-engine/internal/telemetry"
	"github.com/rawblock/triarb-engine/internal/triangle"
	"github.com/rawblock/triarb-engine/internal/venue"
	"github.com/rawblock/triarb-engine/pkg/models"
)

// TipSource supplies the current tip-market snapshot; refreshed
// independently of the detection tick (spec §4.3's "current tip-market
// snapshot").
type TipSource interface {
	Snapshot() models.TipSnapshot
}

// StaticTipSource is the simplest TipSource: a fixed snapshot, useful for
// paper-mode runs and tests where no live tip feed is wired in.
type StaticTipSource struct{ Snap models.TipSnapshot }

func (s StaticTipSource) Snapshot() models.TipSnapshot { return s.Snap }

// PriceFetcher is the subset of priceclient.Client the detector depends
// on, narrowed to an interface so tests can substitute a fake feed.
type PriceFetcher interface {
	Fetch(ctx context.Context) ([]models.PriceObservation, error)
}

// Config bundles every tunable the tick loop needs.
type Config struct {
	Base          string
	InputSize     float64
	TickInterval  time.Duration
	FilterTh      filter.Thresholds
	TriangleCfg   triangle.Config
	CostCfg       cost.Config
	GovernorCfg   governor.Config
}

// Detector owns the tick loop and every collaborator it drives.
type Detector struct {
	cfg       Config
	prices    PriceFetcher
	reg       *venue.Registry
	led       *ledger.Ledger
	breaker   *ledger.Breaker
	q         *queue.Queue
	tips      TipSource
	metrics   *metrics.Metrics
	log       *zap.Logger
	broadcast func(models.Alert)
}

// New wires a detector from its collaborators.
func New(cfg Config, prices PriceFetcher, reg *venue.Registry, led *ledger.Ledger, breaker *ledger.Breaker, q *queue.Queue, tips TipSource, m *metrics.Metrics, log *zap.Logger) *Detector {
	return &Detector{cfg: cfg, prices: prices, reg: reg, led: led, breaker: breaker, q: q, tips: tips, metrics: m, log: log}
}

// OnCandidateQueued registers a callback fired every time a candidate
// clears the governor and is handed to the queue, for the dashboard feed.
// Optional.
func (d *Detector) OnCandidateQueued(f func(models.Alert)) {
	d.broadcast = f
}

// Run blocks on a tick loop until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs exactly one pass of fetch -> filter -> search -> cost ->
// governor -> enqueue, and confirms a pending breaker rearm if the pass
// completed with no transport-level error.
func (d *Detector) tick(ctx context.Context) {
	now := time.Now()
	d.metrics.Ticks.Inc()

	clean := d.runPipeline(ctx, now)

	d.metrics.SetBreakerOpen(d.breaker.IsOpen())
	d.metrics.QueueDepth.Set(float64(d.q.Len()))

	if clean && d.breaker.State() == ledger.BreakerPendingRearm {
		d.breaker.ConfirmRearm()
		d.log.Info("circuit breaker rearm confirmed after a clean tick")
	}
}

// runPipeline returns false if the price fetch itself failed — that
// failure is what withholds rearm confirmation, not ordinary governor
// vetoes, which are expected steady-state traffic.
func (d *Detector) runPipeline(ctx context.Context, now time.Time) bool {
	observations, err := d.prices.Fetch(ctx)
	if err != nil {
		d.log.Error("price feed fetch failed", zap.Error(err))
		return false
	}

	result := filter.Filter(observations, now, d.cfg.FilterTh)
	d.metrics.RecordFilterCounts(result.Counts)

	candidates := triangle.Search(result.Clean, d.reg, d.cfg.Base, d.cfg.InputSize, d.cfg.TriangleCfg, now)
	d.metrics.CandidatesFound.Add(float64(len(candidates)))

	tip := d.tips.Snapshot()
	for _, cand := range candidates {
		cb := cost.Compute(cand, tip, d.cfg.CostCfg)

		job, reason, err := governor.Decide(cand, cb, d.led, d.breaker, d.reg, d.cfg.GovernorCfg, now)
		if err != nil {
			d.log.Error("governor decision error", zap.Error(err))
			continue
		}
		if reason != "" {
			d.metrics.RecordGovernorRejection(reason)
			d.log.Debug("candidate rejected",
				zap.String("reason", string(reason)),
				zap.String("tokenX", telemetry.Short(cand.TokenX())),
				zap.String("tokenY", telemetry.Short(cand.TokenY())),
			)
			continue
		}

		if err := d.q.Enqueue(job); err != nil {
			d.led.ReleaseUnsubmitted(job.ReservedBase)
			d.metrics.RecordGovernorRejection(models.ReasonQueueFull)
			d.log.Warn("submission queue full, dropping job", zap.String("jobId", job.ID))
			continue
		}
		d.log.Info("candidate accepted and queued",
			zap.String("jobId", job.ID),
			zap.Float64("netProfit", cb.NetProfit),
			zap.Float64("marginRatio", cb.MarginRatio),
		)
		if d.broadcast != nil {
			d.broadcast(models.NewAlert(models.AlertCandidateQueued, job, now))
		}
	}

	return true
}
