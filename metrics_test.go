package netbuf

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.ReserveOps != 0 {
		t.Errorf("Expected 0 initial reserves, got %d", snap.ReserveOps)
	}

	m.RecordReserve(1024, true)
	m.RecordReserve(2048, true)
	m.RecordReserve(512, false)

	snap = m.Snapshot()

	if snap.ReserveOps != 2 {
		t.Errorf("Expected 2 successful reserves, got %d", snap.ReserveOps)
	}
	if snap.ReserveFailures != 1 {
		t.Errorf("Expected 1 reserve failure, got %d", snap.ReserveFailures)
	}
}

func TestMetricsAllocAndRelease(t *testing.T) {
	m := NewMetrics()

	m.RecordAlloc(32768)
	m.RecordRelease(100)
	m.RecordRelease(200)

	snap := m.Snapshot()
	if snap.TotalAllocs != 1 {
		t.Errorf("Expected 1 alloc, got %d", snap.TotalAllocs)
	}
	// Releases return spans, not backing memory: TotalBytes is unchanged.
	if snap.TotalBytes != 32768 {
		t.Errorf("Expected TotalBytes=%d, got %d", 32768, snap.TotalBytes)
	}
	if snap.ReleaseOps != 2 {
		t.Errorf("Expected 2 releases, got %d", snap.ReleaseOps)
	}
}

func TestMetricsCoalesce(t *testing.T) {
	m := NewMetrics()

	m.RecordEnqueue(false)
	m.RecordEnqueue(true)
	m.RecordEnqueue(true)

	snap := m.Snapshot()
	if snap.EnqueueOps != 3 {
		t.Errorf("Expected 3 enqueues, got %d", snap.EnqueueOps)
	}
	if snap.CoalesceHits != 2 {
		t.Errorf("Expected 2 coalesce hits, got %d", snap.CoalesceHits)
	}
	expectedRate := 2.0 / 3.0
	if snap.CoalesceRate < expectedRate-0.01 || snap.CoalesceRate > expectedRate+0.01 {
		t.Errorf("Expected coalesce rate ~%.2f, got %.2f", expectedRate, snap.CoalesceRate)
	}
}

func TestMetricsFlush(t *testing.T) {
	m := NewMetrics()

	m.RecordFlush()
	m.RecordFlush()
	m.RecordEndFlush(150)

	snap := m.Snapshot()
	if snap.FlushCalls != 2 {
		t.Errorf("Expected 2 flush calls, got %d", snap.FlushCalls)
	}
	if snap.EndFlushCalls != 1 {
		t.Errorf("Expected 1 end-flush call, got %d", snap.EndFlushCalls)
	}
	if snap.BytesFlushed != 150 {
		t.Errorf("Expected 150 bytes flushed, got %d", snap.BytesFlushed)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+20*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordReserve(1024, true)
	m.RecordAlloc(32768)
	m.RecordEnqueue(false)

	snap := m.Snapshot()
	if snap.ReserveOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.ReserveOps != 0 {
		t.Errorf("Expected 0 reserves after reset, got %d", snap.ReserveOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveReserve(1024, true)
	observer.ObserveRelease(1024)
	observer.ObserveEnqueue(true)
	observer.ObserveFlush()
	observer.ObserveEndFlush(1024)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveReserve(1024, true)
	metricsObserver.ObserveEnqueue(false)

	snap := m.Snapshot()
	if snap.ReserveOps != 1 {
		t.Errorf("Expected 1 reserve op from observer, got %d", snap.ReserveOps)
	}
	if snap.EnqueueOps != 1 {
		t.Errorf("Expected 1 enqueue op from observer, got %d", snap.EnqueueOps)
	}
}

func TestMetricsSizeHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordReserve(50, true) // falls in the 64-byte bucket
	}
	for i := 0; i < 10; i++ {
		m.RecordReserve(5000, true) // falls in the 16384-byte bucket
	}

	snap := m.Snapshot()

	totalInBuckets := uint64(0)
	for _, v := range snap.SizeHistogram {
		totalInBuckets += v
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
	// bucket[1] (<=64) should have picked up the 50-byte reservations.
	if snap.SizeHistogram[1] < 50 {
		t.Errorf("Expected SizeHistogram[1] >= 50, got %d", snap.SizeHistogram[1])
	}
}
