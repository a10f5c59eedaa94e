// Package netbuf implements a write-buffer manager for a network client
// that constructs and transmits many small, logically contiguous
// packets with minimal copying and allocation: a ring-based slab
// allocator hands out packed spans, and a send queue coalesces them into
// a minimal set of vectored-I/O descriptors, resumable across partial
// flushes.
package netbuf

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/mnunberg/netbuf/internal/block"
	"github.com/mnunberg/netbuf/internal/constants"
	"github.com/mnunberg/netbuf/internal/interfaces"
	"github.com/mnunberg/netbuf/internal/logging"
	"github.com/mnunberg/netbuf/internal/sendqueue"
)

// Settings configures a Manager's two backing pools. Fields mirror
// spec.md §6's default_settings() contract exactly: basealloc is in
// elements for the sendq/dealloc pools and bytes for the data pool;
// cacheblocks is the number of block headers preallocated inside the
// pool.
type Settings struct {
	SendQueueBaseAlloc   int
	SendQueueCacheBlocks int

	DeallocBaseAlloc   int
	DeallocCacheBlocks int

	DataBaseAlloc   int
	DataCacheBlocks int
}

// DefaultSettings returns the recognized configuration with its defaults:
// {128, 4, 24, 0, 32768, 16}.
func DefaultSettings() Settings {
	return Settings{
		SendQueueBaseAlloc:   constants.SendQueueBaseAlloc,
		SendQueueCacheBlocks: constants.SendQueueCacheBlocks,
		DeallocBaseAlloc:     constants.DeallocBaseAlloc,
		DeallocCacheBlocks:   constants.DeallocCacheBlocks,
		DataBaseAlloc:        constants.DataBaseAlloc,
		DataCacheBlocks:      constants.DataCacheBlocks,
	}
}

// FlushStatus reports how much of a span's buffer has been handed to
// EndFlush already, reintroduced from the original library's
// netbuf_get_flush_status (dropped from the distilled spec).
type FlushStatus int

const (
	// FlushNone means no byte of the span has been advertised yet, or
	// every advertised byte is still sitting in the pending queue.
	FlushNone FlushStatus = iota
	// FlushPartial means some, but not all, of the span's bytes remain
	// in the pending queue.
	FlushPartial
	// FlushFull means none of the span's bytes remain in the pending
	// queue: either every one was already consumed by EndFlush, or the
	// span was never enqueued.
	FlushFull
)

func (s FlushStatus) String() string {
	switch s {
	case FlushNone:
		return "none"
	case FlushPartial:
		return "partial"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// IOV is a vectored-I/O descriptor, {base, len} in that order, matching
// the layout spec.md §6 names for Unix-like hosts.
type IOV struct {
	Base []byte
	Len  int
}

// Manager is the top-level aggregation of one data pool and one send
// queue, plus configuration and statistics. It is single-owner: no
// operation is safe to call concurrently from more than one goroutine
// (spec.md §5's Non-goal on thread safety).
type Manager struct {
	settings Settings

	datapool *block.Pool
	sendq    *sendqueue.Queue

	metrics  *Metrics
	observer interfaces.Observer
	logger   interfaces.Logger
}

// New constructs a Manager. A nil settings pointer uses DefaultSettings.
func New(settings *Settings) *Manager {
	m := &Manager{}
	m.init(settings)
	return m
}

// init performs the construction spec.md §6 calls init(settings?): it is
// idempotent and resets all state, so it also backs Reset.
func (m *Manager) init(settings *Settings) {
	s := DefaultSettings()
	if settings != nil {
		s = *settings
	}
	m.settings = s
	m.datapool = block.NewPool(s.DataBaseAlloc, s.DataCacheBlocks, constants.DefaultMaxBlocks(s.DataCacheBlocks), s.DeallocBaseAlloc, s.DeallocCacheBlocks)
	m.sendq = sendqueue.New(s.SendQueueBaseAlloc, s.SendQueueCacheBlocks)
	m.metrics = NewMetrics()
	m.observer = NoOpObserver{}
	m.logger = logging.Default()

	m.datapool.OnGrow = func(nalloc int) { m.metrics.RecordAlloc(nalloc) }
	m.datapool.OnFree = func(nalloc int) { m.metrics.RecordFree(nalloc) }
}

// Reset reinitializes the Manager to a fresh state with its current
// Settings, discarding every reservation and pending descriptor.
func (m *Manager) Reset() {
	s := m.settings
	m.init(&s)
}

// SetObserver installs a metrics observer; pass NoOpObserver{} to
// disable. NewMetricsObserver(m.Metrics()) wires the built-in Metrics.
func (m *Manager) SetObserver(o interfaces.Observer) {
	if o == nil {
		o = NoOpObserver{}
	}
	m.observer = o
}

// SetLogger installs a diagnostic logger; pass nil to use
// logging.Default().
func (m *Manager) SetLogger(l interfaces.Logger) {
	if l == nil {
		l = logging.Default()
	}
	m.logger = l
}

// Metrics returns the Manager's built-in atomic-counter metrics.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Cleanup releases every pending SendItem, frees every Block (active and
// available), and zeroes the allocation statistics, per spec.md §6:
// TotalBytes drops to zero through the frees the pool reports, and
// TotalAllocs is reset. The operation counters keep their values.
func (m *Manager) Cleanup() {
	m.sendq.Drain()
	m.datapool.Cleanup()
	m.metrics.TotalAllocs.Store(0)
	m.metrics.Stop()
	m.logger.Infof("manager cleanup complete")
}

// Reserve allocates a size-byte span from the data pool. It returns
// false, leaving the returned Span unpopulated, only when a new Block
// would be required and allocation fails.
func (m *Manager) Reserve(size int) (Span, bool) {
	if size <= 0 {
		panic(NewError("Reserve", ErrCodeProtocolMisuse, "size must be > 0"))
	}
	var raw block.Span
	raw.Size = size
	ok := m.datapool.Reserve(&raw)
	m.observer.ObserveReserve(size, ok)
	m.metrics.RecordReserve(size, ok)
	if !ok {
		m.logger.Warnf("reserve failed", "size", size)
		return Span{}, false
	}
	return Span{raw: raw}, true
}

// Release returns span's region to the data pool, or — for a user-owned
// span — invokes its released callback, per spec.md §4.2.
func (m *Manager) Release(span Span) {
	if !span.valid() {
		panic(NewError("Release", ErrCodeProtocolMisuse, "release of zero-value span"))
	}
	if span.user != nil {
		if span.released != nil {
			span.released()
		}
		return
	}
	size := span.raw.Size
	m.datapool.Release(span.raw)
	m.observer.ObserveRelease(size)
	m.metrics.RecordRelease(size)
}

// ReleaseBuffer releases a raw buffer by locating its owning Block via
// linear scan, per spec.md §6's "release accepts a raw (ptr, len)".
// It panics with ErrCodeProtocolMisuse if buf is not owned by any active
// Block.
func (m *Manager) ReleaseBuffer(buf []byte) {
	b, offset, ok := m.datapool.BlockFor(buf)
	if !ok {
		panic(NewError("ReleaseBuffer", ErrCodeProtocolMisuse, "buffer not owned by any active block"))
	}
	m.Release(Span{raw: block.Span{Block: b, Offset: offset, Size: len(buf)}})
}

// EnqueueSpan forms an IOV from span's buffer and enqueues it, per
// spec.md §4.4 ("enqueue(span)").
func (m *Manager) EnqueueSpan(span Span) {
	m.enqueue(span.Bytes())
}

// EnqueueBuffer enqueues a raw (base, len) descriptor directly, per
// spec.md §4.4 ("enqueue(iov)") — for buffers not wrapped in a Span.
func (m *Manager) EnqueueBuffer(buf []byte) {
	m.enqueue(buf)
}

func (m *Manager) enqueue(buf []byte) {
	if len(buf) == 0 {
		panic(NewError("Enqueue", ErrCodeProtocolMisuse, "zero-length iov"))
	}
	before := m.sendq.Len()
	m.sendq.Enqueue(buf)
	coalesced := m.sendq.Len() == before
	m.observer.ObserveEnqueue(coalesced)
	m.metrics.RecordEnqueue(coalesced)
}

// IOVCount returns the current pending-list length: an exact count of
// SendItems after coalescing.
func (m *Manager) IOVCount() int {
	return m.sendq.Len()
}

// StartFlush fills iovs (up to its capacity) with the next unadvertised
// bytes and returns the total bytes described, per spec.md §4.5.
func (m *Manager) StartFlush(iovs []IOV) int {
	raw := make([]sendqueue.IOV, len(iovs))
	n := m.sendq.StartFlush(raw)
	for i, r := range raw {
		if r.Base == nil {
			break
		}
		iovs[i] = IOV{Base: r.Base, Len: len(r.Base)}
	}
	m.observer.ObserveFlush()
	m.metrics.RecordFlush()
	return n
}

// EndFlush advances the flush cursor by nflushed bytes actually consumed
// downstream, per spec.md §4.6. It panics with ErrCodeProtocolMisuse if
// nflushed exceeds the bytes currently pending (spec.md §9's first Open
// Question: this implementation treats overflow as fatal, rather than
// saturating silently).
func (m *Manager) EndFlush(nflushed int) {
	if nflushed < 0 {
		panic(NewError("EndFlush", ErrCodeProtocolMisuse, "nflushed must be >= 0"))
	}
	defer func() {
		if r := recover(); r != nil {
			panic(NewError("EndFlush", ErrCodeProtocolMisuse, fmt.Sprintf("%v", r)))
		}
	}()
	m.sendq.EndFlush(nflushed)
	m.observer.ObserveEndFlush(nflushed)
	m.metrics.RecordEndFlush(nflushed)
}

// MaxSpanSize returns the largest single-span reservation that can be
// satisfied from the current active tail block without allocating a new
// block, per spec.md §4.3.
func (m *Manager) MaxSpanSize(allowWrap bool) int {
	return m.datapool.GetNextSize(allowWrap)
}

// Size returns the sum of live bytes across the data pool.
func (m *Manager) Size() int {
	return m.datapool.Size()
}

// FlushStatus reports whether span has been fully flushed, partially
// flushed, or not flushed at all, by comparing its buffer range against
// the send queue's currently pending bytes. Reintroduced from
// netbuf_get_flush_status (present in the original library, dropped from
// the distilled spec); see DESIGN.md.
func (m *Manager) FlushStatus(span Span) FlushStatus {
	buf := span.Bytes()
	if len(buf) == 0 {
		return FlushFull
	}
	start := uintptr(unsafe.Pointer(&buf[0]))
	end := start + uintptr(len(buf))

	overlap := 0
	for _, pending := range m.sendq.Pending() {
		if len(pending) == 0 {
			continue
		}
		pstart := uintptr(unsafe.Pointer(&pending[0]))
		pend := pstart + uintptr(len(pending))
		os, oe := start, end
		if pstart > os {
			os = pstart
		}
		if pend < oe {
			oe = pend
		}
		if oe > os {
			overlap += int(oe - os)
		}
	}

	switch {
	case overlap == 0:
		return FlushFull
	case overlap >= len(buf):
		return FlushNone
	default:
		return FlushPartial
	}
}

// DumpStatus writes a diagnostic rendering of the data pool's blocks and
// the send queue's pending descriptors to w, adapted from the original
// library's netbuf_dump_status.
func (m *Manager) DumpStatus(w io.Writer) {
	fmt.Fprintf(w, "netbuf manager: size=%d iovcount=%d\n", m.Size(), m.IOVCount())
	m.datapool.DumpStatus(w)
	i := 0
	for _, pending := range m.sendq.Pending() {
		fmt.Fprintf(w, "sendq[%d] len=%d\n", i, len(pending))
		i++
	}
}
