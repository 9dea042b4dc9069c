// Package queue implements the bounded submission queue and its single
// consumer from spec §4.5: external-rate-limited, deadline-aware,
// Primary-then-Secondary, with no retry of a failed bundle against the
// same opportunity. The select-based consumer shape follows the
// teacher's mempool.Poller loop, generalized from block-height polling to
// draining a job channel.
package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rawblock/triarb-engine/internal/ledger"
	"github.com/rawblock/triarb-engine/internal/transport"
	"github.com/rawblock/triarb-engine/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue: full")

// Queue is the bounded FIFO plus its single consumer.
type Queue struct {
	jobs    chan models.SubmissionJob
	primary transport.Transport
	secondary transport.Transport
	limiter *rate.Limiter
	led     *ledger.Ledger
	log     *zap.Logger

	onOutcome func(models.SubmitOutcome, models.SubmissionJob)
}

// New builds a queue with the given capacity and minimum submit interval.
func New(capacity int, minInterval time.Duration, primary, secondary transport.Transport, led *ledger.Ledger, log *zap.Logger) *Queue {
	return &Queue{
		jobs:      make(chan models.SubmissionJob, capacity),
		primary:   primary,
		secondary: secondary,
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		led:       led,
		log:       log,
	}
}

// OnOutcome registers a callback invoked after every processed job, for
// metrics and the dashboard feed. Optional.
func (q *Queue) OnOutcome(f func(models.SubmitOutcome, models.SubmissionJob)) {
	q.onOutcome = f
}

// Enqueue fails fast when the queue is full, per spec §4.5; the caller
// releases the reservation on error.
func (q *Queue) Enqueue(job models.SubmissionJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the current queue depth, for health/stats reporting.
func (q *Queue) Len() int { return len(q.jobs) }

// Run is the single consumer loop. On ctx cancellation it drains any
// queued jobs, releasing their reservations, and returns.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job models.SubmissionJob) {
	if err := q.limiter.Wait(ctx); err != nil {
		q.led.ReleaseUnsubmitted(job.ReservedBase)
		return
	}

	if time.Now().After(job.Deadline) {
		q.led.ReleaseUnsubmitted(job.ReservedBase)
		q.log.Warn("submission dropped: stale", zap.String("jobId", job.ID), zap.Stringer("fingerprint", job.Fingerprint))
		if q.onOutcome != nil {
			q.onOutcome(models.SubmitOutcome{Kind: models.OutcomeRejected, Reason: string(models.ReasonStaleJob)}, job)
		}
		return
	}

	// An attempt that has started runs to completion (bounded by the
	// transport's own deadline) even if ctx is cancelled meanwhile.
	submitCtx := context.WithoutCancel(ctx)
	outcome := q.primary.Submit(submitCtx, job)
	if outcome.Kind == models.OutcomeTransportError {
		q.log.Warn("primary transport error, attempting secondary", zap.String("jobId", job.ID), zap.Error(outcome.Err))
		outcome = q.secondary.Submit(submitCtx, job)
	}

	accepted := outcome.Kind == models.OutcomeAccepted
	q.led.RecordOutcome(accepted, job.Cost.TotalCost, job.Cost.GrossProfit)
	q.led.Release(job.ReservedBase)

	switch outcome.Kind {
	case models.OutcomeAccepted:
		q.log.Info("bundle accepted", zap.String("jobId", job.ID), zap.String("bundleId", outcome.ID))
	case models.OutcomeRateLimited:
		q.log.Warn("bundle rate limited, dropping without retry", zap.String("jobId", job.ID))
	case models.OutcomeRejected:
		q.log.Warn("bundle rejected", zap.String("jobId", job.ID), zap.String("reason", outcome.Reason))
	case models.OutcomeTransportError:
		q.log.Error("bundle transport error on both channels", zap.String("jobId", job.ID), zap.Error(outcome.Err))
	}

	if q.onOutcome != nil {
		q.onOutcome(outcome, job)
	}
}

// drain empties the queue without submitting, releasing every reservation.
// Called on shutdown: in-flight attempts are never aborted (spec §4.5),
// only queued-but-not-yet-attempted jobs are discarded.
func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.led.ReleaseUnsubmitted(job.ReservedBase)
		default:
			return
		}
	}
}
