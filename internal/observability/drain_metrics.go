package observability

import (
	"sync/atomic"
	"time"
)

// DrainMetrics are the in-process counters behind the worker's /metrics/drain
// snapshot. Prometheus gets the same events through Prom.ObserveAuditDrain.
type DrainMetrics struct {
	dequeued     atomic.Uint64
	stored       atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64
	failed       atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewDrainMetrics() *DrainMetrics {
	return &DrainMetrics{}
}

func (m *DrainMetrics) IncDequeued()     { m.dequeued.Add(1) }
func (m *DrainMetrics) IncStored()       { m.stored.Add(1) }
func (m *DrainMetrics) IncRetried()      { m.retried.Add(1) }
func (m *DrainMetrics) IncDeadLettered() { m.deadLettered.Add(1) }
func (m *DrainMetrics) IncFailed()       { m.failed.Add(1) }

func (m *DrainMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type DrainSnapshot struct {
	Dequeued        uint64        `json:"dequeued"`
	Stored          uint64        `json:"stored"`
	Retried         uint64        `json:"retried"`
	DeadLettered    uint64        `json:"deadLettered"`
	Failed          uint64        `json:"failed"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *DrainMetrics) Snapshot() DrainSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return DrainSnapshot{
		Dequeued:        m.dequeued.Load(),
		Stored:          m.stored.Load(),
		Retried:         m.retried.Load(),
		DeadLettered:    m.deadLettered.Load(),
		Failed:          m.failed.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}
