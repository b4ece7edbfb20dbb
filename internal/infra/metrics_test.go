package infra

import (
	"testing"
	"time"

	"mm_stats/internal/domain"
)

func TestMetrics_RecordFetch(t *testing.T) {
	m := &Metrics{}

	m.RecordFetch(domain.KindMake, 10, 1000)
	m.RecordFetch(domain.KindTake, 4, 2000)
	m.RecordFetch(domain.KindKill, 1, 3000*time.Nanosecond)

	snap := m.Snapshot()

	if snap.MakesFetched != 10 || snap.TakesFetched != 4 || snap.KillsFetched != 1 {
		t.Errorf("Expected 10/4/1 events, got %d/%d/%d", snap.MakesFetched, snap.TakesFetched, snap.KillsFetched)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgFetchLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgFetchLatencyNs)
	}
}

func TestMetrics_ActiveFetches(t *testing.T) {
	m := &Metrics{}

	m.FetchStarted()
	m.FetchStarted()
	m.FetchStarted()

	snap := m.Snapshot()
	if snap.ActiveFetches != 3 {
		t.Errorf("Expected 3 fetches, got %d", snap.ActiveFetches)
	}

	m.FetchDone()
	snap = m.Snapshot()
	if snap.ActiveFetches != 2 {
		t.Errorf("Expected 2 fetches, got %d", snap.ActiveFetches)
	}
}

func TestMetrics_Replay(t *testing.T) {
	m := &Metrics{}

	m.RecordSnapshots(5)
	m.RecordSnapshots(3)
	m.RecordConsistencyViolation()

	snap := m.Snapshot()
	if snap.SnapshotsProduced != 8 {
		t.Errorf("Expected 8 snapshots, got %d", snap.SnapshotsProduced)
	}
	if snap.ConsistencyViolations != 1 {
		t.Errorf("Expected 1 violation, got %d", snap.ConsistencyViolations)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordFetch(domain.KindMake, 1, 1000)
	m.RecordError()
	m.RecordRetry()
	m.FetchStarted()

	m.Reset()
	snap := m.Snapshot()

	if snap.MakesFetched != 0 {
		t.Error("Expected 0 events after reset")
	}
	if snap.ErrorsTotal != 0 || snap.RetriesTotal != 0 {
		t.Error("Expected 0 errors and retries after reset")
	}
	if snap.ActiveFetches != 0 {
		t.Error("Expected 0 fetches after reset")
	}
}
