package netbuf

import (
	"sync/atomic"
	"time"
)

// SizeBuckets defines the reservation-size histogram buckets in bytes.
// Buckets cover from 16 bytes to 1MiB with logarithmic spacing, matching
// the small-packet-to-bulk-transfer range a memcached-style client spans.
var SizeBuckets = []uint64{
	16,
	64,
	256,
	1024,
	4096,
	16384,
	65536,
	1048576,
}

const numSizeBuckets = 8

// Metrics tracks allocation and queue statistics for a Manager.
type Metrics struct {
	// Reservation counters
	ReserveOps      atomic.Uint64 // Total successful Reserve calls
	ReserveFailures atomic.Uint64 // Reserve calls that returned false (OutOfMemory)
	ReleaseOps      atomic.Uint64 // Total Release calls

	// Allocation counters (spec.md §4.7: total_allocs, total_bytes)
	TotalAllocs atomic.Uint64 // Backing Block allocations since init
	TotalBytes  atomic.Uint64 // Backing bytes currently allocated across the data pool; 0 after Cleanup

	// Send-queue counters
	EnqueueOps    atomic.Uint64 // Total Enqueue calls
	CoalesceHits  atomic.Uint64 // Enqueues that extended the tail item instead of appending
	FlushCalls    atomic.Uint64 // Total StartFlush calls
	EndFlushCalls atomic.Uint64 // Total EndFlush calls
	BytesFlushed  atomic.Uint64 // Bytes retired via EndFlush

	// Reservation-size histogram (cumulative counts, bucket[i] counts
	// reservations <= SizeBuckets[i])
	SizeHistogram [numSizeBuckets]atomic.Uint64

	StartTime atomic.Int64 // Manager construction timestamp (UnixNano)
	StopTime  atomic.Int64 // Manager cleanup timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordReserve records a reservation attempt of the given size.
func (m *Metrics) RecordReserve(size int, ok bool) {
	if ok {
		m.ReserveOps.Add(1)
		m.recordSize(uint64(size))
	} else {
		m.ReserveFailures.Add(1)
	}
}

// RecordAlloc records a new backing Block allocation of n bytes.
func (m *Metrics) RecordAlloc(n int) {
	m.TotalAllocs.Add(1)
	m.TotalBytes.Add(uint64(n))
}

// RecordFree records a backing Block of n bytes being freed, either
// because a standalone block exceeded maxblocks or because Cleanup tore
// down the pool.
func (m *Metrics) RecordFree(n int) {
	m.TotalBytes.Add(^uint64(n - 1)) // atomic subtract
}

// RecordRelease records a Release call. It does not touch TotalBytes,
// which tracks backing allocation, not live reservation, bytes; see
// RecordAlloc/RecordFree.
func (m *Metrics) RecordRelease(n int) {
	m.ReleaseOps.Add(1)
}

// RecordEnqueue records an enqueue, noting whether it coalesced into the
// existing tail descriptor.
func (m *Metrics) RecordEnqueue(coalesced bool) {
	m.EnqueueOps.Add(1)
	if coalesced {
		m.CoalesceHits.Add(1)
	}
}

// RecordFlush records a StartFlush call.
func (m *Metrics) RecordFlush() {
	m.FlushCalls.Add(1)
}

// RecordEndFlush records an EndFlush call retiring n bytes.
func (m *Metrics) RecordEndFlush(n int) {
	m.EndFlushCalls.Add(1)
	m.BytesFlushed.Add(uint64(n))
}

func (m *Metrics) recordSize(size uint64) {
	for i, bucket := range SizeBuckets {
		if size <= bucket {
			m.SizeHistogram[i].Add(1)
		}
	}
}

// Stop marks the manager as torn down.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	ReserveOps      uint64
	ReserveFailures uint64
	ReleaseOps      uint64

	TotalAllocs uint64
	TotalBytes  uint64

	EnqueueOps    uint64
	CoalesceHits  uint64
	FlushCalls    uint64
	EndFlushCalls uint64
	BytesFlushed  uint64

	SizeHistogram [numSizeBuckets]uint64

	UptimeNs uint64

	// CoalesceRate is the fraction of enqueues that coalesced (0.0-1.0).
	CoalesceRate float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReserveOps:      m.ReserveOps.Load(),
		ReserveFailures: m.ReserveFailures.Load(),
		ReleaseOps:      m.ReleaseOps.Load(),
		TotalAllocs:     m.TotalAllocs.Load(),
		TotalBytes:      m.TotalBytes.Load(),
		EnqueueOps:      m.EnqueueOps.Load(),
		CoalesceHits:    m.CoalesceHits.Load(),
		FlushCalls:      m.FlushCalls.Load(),
		EndFlushCalls:   m.EndFlushCalls.Load(),
		BytesFlushed:    m.BytesFlushed.Load(),
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.EnqueueOps > 0 {
		snap.CoalesceRate = float64(snap.CoalesceHits) / float64(snap.EnqueueOps)
	}

	for i := 0; i < numSizeBuckets; i++ {
		snap.SizeHistogram[i] = m.SizeHistogram[i].Load()
	}

	return snap
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.ReserveOps.Store(0)
	m.ReserveFailures.Store(0)
	m.ReleaseOps.Store(0)
	m.TotalAllocs.Store(0)
	m.TotalBytes.Store(0)
	m.EnqueueOps.Store(0)
	m.CoalesceHits.Store(0)
	m.FlushCalls.Store(0)
	m.EndFlushCalls.Store(0)
	m.BytesFlushed.Store(0)
	for i := 0; i < numSizeBuckets; i++ {
		m.SizeHistogram[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection for a Manager.
type Observer interface {
	ObserveReserve(size int, ok bool)
	ObserveRelease(size int)
	ObserveEnqueue(coalesced bool)
	ObserveFlush()
	ObserveEndFlush(bytes int)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveReserve(int, bool)  {}
func (NoOpObserver) ObserveRelease(int)        {}
func (NoOpObserver) ObserveEnqueue(bool)       {}
func (NoOpObserver) ObserveFlush()             {}
func (NoOpObserver) ObserveEndFlush(int)       {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveReserve(size int, ok bool) { o.metrics.RecordReserve(size, ok) }
func (o *MetricsObserver) ObserveRelease(size int)          { o.metrics.RecordRelease(size) }
func (o *MetricsObserver) ObserveEnqueue(coalesced bool)    { o.metrics.RecordEnqueue(coalesced) }
func (o *MetricsObserver) ObserveFlush()                    { o.metrics.RecordFlush() }
func (o *MetricsObserver) ObserveEndFlush(bytes int)        { o.metrics.RecordEndFlush(bytes) }

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
