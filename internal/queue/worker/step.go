package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/domain/activity"
)

// ProcessOne moves at most one queued record into the store. It reports
// false when the queue stayed empty for the whole block timeout.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	l, raw, err := w.queue.Dequeue(ctx, w.cfg.BlockTimeout)
	if err != nil {
		if errors.Is(err, audit.ErrQueueEmpty) {
			return false, nil
		}

		if raw == nil {
			return false, err
		}

		// undecodable payloads never become storable
		w.metrics.IncDequeued()
		w.deadLetter(ctx, raw, err)
		return true, nil
	}

	w.metrics.IncDequeued()
	start := time.Now()

	err = w.storeWithRetry(ctx, l)
	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	switch {
	case err == nil:
		w.metrics.IncStored()
		w.prom.ObserveAuditDrain("stored", elapsed)
		return true, nil

	case ctx.Err() != nil:
		// shutting down: hand the item back instead of dropping it
		w.requeue(raw)
		w.prom.ObserveAuditDrain("retry", elapsed)
		return true, nil

	default:
		w.metrics.IncFailed()
		w.deadLetter(ctx, raw, err)
		w.prom.ObserveAuditDrain("dead", elapsed)
		return true, nil
	}
}

func (w *Worker) storeWithRetry(ctx context.Context, l activity.Log) error {
	var err error

	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		err = w.store.Create(ctx, l)
		if err == nil {
			return nil
		}

		// invalid records will not get better
		if errors.Is(err, activity.ErrInvalidLog) {
			return err
		}

		if attempt == w.cfg.MaxAttempts-1 {
			break
		}

		w.metrics.IncRetried()
		w.log.WarnContext(ctx, "activity log store failed, retrying",
			"log_id", l.ID,
			"attempt", attempt+1,
			"err", err,
		)

		if serr := w.sleep(ctx, ExponentialBackoff(w.cfg.RetryBase, w.cfg.RetryCap, attempt)); serr != nil {
			return serr
		}
	}

	return err
}

func (w *Worker) deadLetter(ctx context.Context, raw []byte, cause error) {
	w.metrics.IncDeadLettered()
	w.log.ErrorContext(ctx, "activity log dead-lettered", "err", cause)

	// ctx may already be cancelled
	pushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.queue.DeadLetter(pushCtx, raw); err != nil {
		w.log.ErrorContext(ctx, "dead-letter push failed", "err", err)
	}
}

func (w *Worker) requeue(raw []byte) {
	pushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.queue.Requeue(pushCtx, raw); err != nil {
		w.log.Error("requeue on shutdown failed", "err", err)
	}
}
