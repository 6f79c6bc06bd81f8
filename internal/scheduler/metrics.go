package scheduler

import (
	"sync"
	"time"
)

// Metrics accumulates the counters the Python original tracked in a plain
// dict (processed/dropped/batches/queue depth/latency), guarded by a mutex
// since both the consumer loop and Submit callers touch it.
type Metrics struct {
	mu sync.Mutex

	Processed       uint64
	Dropped         uint64
	QueueFullEvents uint64
	BatchesRun      uint64

	queueDepthSum   uint64
	queueDepthCount uint64
	procTimeSum     time.Duration
	procTimeCount   uint64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) recordProcessed(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Processed++
	m.procTimeSum += d
	m.procTimeCount++
}

func (m *Metrics) recordDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dropped++
}

func (m *Metrics) recordQueueFull() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueFullEvents++
}

func (m *Metrics) recordBatch(queueDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesRun++
	m.queueDepthSum += uint64(queueDepth)
	m.queueDepthCount++
}

// Snapshot is a point-in-time copy safe to expose over the admin HTTP
// surface or to a metrics endpoint.
type Snapshot struct {
	Processed           uint64
	Dropped             uint64
	QueueFullEvents     uint64
	BatchesRun          uint64
	AvgQueueDepth       float64
	AvgProcessingTimeMs float64
	CircuitBreakerState string
	CircuitBreakerFails int
}

func (m *Metrics) Snapshot(cb *CircuitBreaker) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Processed:       m.Processed,
		Dropped:         m.Dropped,
		QueueFullEvents: m.QueueFullEvents,
		BatchesRun:      m.BatchesRun,
	}
	if m.queueDepthCount > 0 {
		s.AvgQueueDepth = float64(m.queueDepthSum) / float64(m.queueDepthCount)
	}
	if m.procTimeCount > 0 {
		s.AvgProcessingTimeMs = float64(m.procTimeSum.Milliseconds()) / float64(m.procTimeCount)
	}
	if cb != nil {
		s.CircuitBreakerState = cb.State()
		s.CircuitBreakerFails = cb.FailureCount()
	}
	return s
}
