// Package worker drains the queued activity log into the durable store.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/observability"
)

type Queue interface {
	Dequeue(ctx context.Context, wait time.Duration) (activity.Log, []byte, error)
	Requeue(ctx context.Context, raw []byte) error
	DeadLetter(ctx context.Context, raw []byte) error
	Len(ctx context.Context) (int64, error)
}

type LogStore interface {
	Create(ctx context.Context, l activity.Log) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	WorkerID      string
	Concurrency   int
	BlockTimeout  time.Duration // BRPOP wait per dequeue
	MaxAttempts   int           // store attempts before dead-lettering
	RetryBase     time.Duration
	RetryCap      time.Duration
	DepthInterval time.Duration // queue depth sampling
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg     Config
	queue   Queue
	store   LogStore
	prom    *observability.Prom
	metrics *observability.DrainMetrics
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, queue Queue, store LogStore, prom *observability.Prom, metrics *observability.DrainMetrics, log *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 100 * time.Millisecond
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 5 * time.Second
	}
	if cfg.DepthInterval <= 0 {
		cfg.DepthInterval = 15 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewDrainMetrics()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:     cfg,
		queue:   queue,
		store:   store,
		prom:    prom,
		metrics: metrics,
		log:     log.With("worker_id", cfg.WorkerID),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run drains until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight items.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.InfoContext(ctx, "audit worker started", "concurrency", w.cfg.Concurrency)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.drainLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.sampleDepth(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("audit worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("audit worker shutdown grace exceeded")
	}

	return nil
}

func (w *Worker) drainLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			w.log.ErrorContext(ctx, "audit drain error", "err", err)
			// back off on queue errors (redis down)
			_ = w.sleep(ctx, w.cfg.RetryCap)
		}
	}
}

func (w *Worker) sampleDepth(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.Len(ctx)
			if err != nil {
				continue
			}
			if w.prom != nil {
				w.prom.AuditQueueDepth.Set(float64(n))
			}
		}
	}
}
