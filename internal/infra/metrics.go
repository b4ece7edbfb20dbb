package infra

import (
	"sync/atomic"
	"time"

	"mm_stats/internal/domain"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	makesFetched          atomic.Uint64
	takesFetched          atomic.Uint64
	killsFetched          atomic.Uint64
	snapshotsProduced     atomic.Uint64
	consistencyViolations atomic.Uint64
	retriesTotal          atomic.Uint64
	errorsTotal           atomic.Uint64

	// Latency tracking
	fetchLatencySumNs atomic.Int64
	fetchCount        atomic.Uint64

	// Gauges
	activeFetches atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFetch records one upstream call returning n events of kind.
func (m *Metrics) RecordFetch(kind domain.EventKind, n int, latency time.Duration) {
	switch kind {
	case domain.KindMake:
		m.makesFetched.Add(uint64(n))
	case domain.KindTake:
		m.takesFetched.Add(uint64(n))
	case domain.KindKill:
		m.killsFetched.Add(uint64(n))
	}
	m.fetchLatencySumNs.Add(latency.Nanoseconds())
	m.fetchCount.Add(1)
}

// RecordSnapshots records a finished replay.
func (m *Metrics) RecordSnapshots(n int) {
	m.snapshotsProduced.Add(uint64(n))
}

// RecordConsistencyViolation records an aborted replay.
func (m *Metrics) RecordConsistencyViolation() {
	m.consistencyViolations.Add(1)
}

// RecordRetry records a retried upstream call.
func (m *Metrics) RecordRetry() {
	m.retriesTotal.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// FetchStarted increments in-flight fetches by 1.
func (m *Metrics) FetchStarted() {
	m.activeFetches.Add(1)
}

// FetchDone decrements in-flight fetches by 1.
func (m *Metrics) FetchDone() {
	m.activeFetches.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	MakesFetched          uint64
	TakesFetched          uint64
	KillsFetched          uint64
	SnapshotsProduced     uint64
	ConsistencyViolations uint64
	RetriesTotal          uint64
	ErrorsTotal           uint64
	AvgFetchLatencyNs     int64
	ActiveFetches         int32
	Timestamp             time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.fetchCount.Load()
	if count > 0 {
		avgLatency = m.fetchLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		MakesFetched:          m.makesFetched.Load(),
		TakesFetched:          m.takesFetched.Load(),
		KillsFetched:          m.killsFetched.Load(),
		SnapshotsProduced:     m.snapshotsProduced.Load(),
		ConsistencyViolations: m.consistencyViolations.Load(),
		RetriesTotal:          m.retriesTotal.Load(),
		ErrorsTotal:           m.errorsTotal.Load(),
		AvgFetchLatencyNs:     avgLatency,
		ActiveFetches:         m.activeFetches.Load(),
		Timestamp:             time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.makesFetched.Store(0)
	m.takesFetched.Store(0)
	m.killsFetched.Store(0)
	m.snapshotsProduced.Store(0)
	m.consistencyViolations.Store(0)
	m.retriesTotal.Store(0)
	m.errorsTotal.Store(0)
	m.fetchLatencySumNs.Store(0)
	m.fetchCount.Store(0)
	m.activeFetches.Store(0)
}
