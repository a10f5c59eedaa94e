// Package sendqueue implements the ordered list of vectored-I/O
// descriptors that sit between span reservation and transport: enqueued
// buffers coalesce when physically adjacent, and a resumable two-phase
// startFlush/endFlush protocol lets a transport build up a large IOV
// across several calls before consuming it in one.
package sendqueue

import "unsafe"

// Item is a single (base, len) descriptor.
type Item struct {
	Base []byte
	prev, next *Item
}

func (it *Item) Len() int { return len(it.Base) }

// itemPool preallocates Items in cacheblocks slabs of basealloc elements
// each and recycles them through a freelist as EndFlush retires them, the
// Go-idiomatic stand-in for the original library's dedicated SendItem
// MBlockPool (spec.md §6's sendq_basealloc/sendq_cacheblocks settings):
// a fixed-size struct doesn't need a byte-arena to avoid malloc churn,
// just a freelist of already-allocated nodes.
type itemPool struct {
	basealloc int
	free      *Item
}

func newItemPool(basealloc, cacheblocks int) *itemPool {
	p := &itemPool{basealloc: basealloc}
	if basealloc <= 0 || cacheblocks <= 0 {
		return p
	}
	for i := 0; i < cacheblocks; i++ {
		slab := make([]Item, basealloc)
		for j := range slab {
			slab[j].next = p.free
			p.free = &slab[j]
		}
	}
	return p
}

// get returns a preallocated Item if one is free, else heap-allocates one.
func (p *itemPool) get(buf []byte) *Item {
	if p.free != nil {
		it := p.free
		p.free = it.next
		it.next, it.prev = nil, nil
		it.Base = buf
		return it
	}
	return &Item{Base: buf}
}

// put returns it to the freelist for reuse by a future get.
func (p *itemPool) put(it *Item) {
	it.Base = nil
	it.prev = nil
	it.next = p.free
	p.free = it
}

// Queue is the ordered pending list plus the startFlush/endFlush resume
// cursor.
type Queue struct {
	head, tail *Item

	// lastRequested is the last item included in a startFlush call; it is
	// cleared once endFlush consumes any of that item's bytes. lastOffset
	// is how many of its bytes have already been advertised.
	lastRequested *Item
	lastOffset    int

	items *itemPool
}

// New constructs an empty send queue whose Item nodes are drawn from a
// pool of cacheblocks slabs of basealloc preallocated elements each,
// falling back to the heap once that arena is exhausted, per spec.md §6.
func New(basealloc, cacheblocks int) *Queue {
	return &Queue{items: newItemPool(basealloc, cacheblocks)}
}

// Len returns the number of pending items after coalescing.
func (q *Queue) Len() int {
	n := 0
	for it := q.head; it != nil; it = it.next {
		n++
	}
	return n
}

// Enqueue appends buf to the pending list, per §4.4: coalescing it into
// the tail item when buf begins exactly where the tail item's buffer
// ends, and allocating a new item otherwise. buf must be non-empty.
func (q *Queue) Enqueue(buf []byte) {
	if len(buf) == 0 {
		panic("sendqueue: enqueue of zero-length buffer")
	}
	if q.tail != nil && adjacent(q.tail.Base, buf) {
		q.tail.Base = extend(q.tail.Base, len(buf))
		return
	}
	it := q.items.get(buf)
	if q.tail == nil {
		q.head, q.tail = it, it
	} else {
		it.prev = q.tail
		q.tail.next = it
		q.tail = it
	}
}

// adjacent reports whether next begins at the byte immediately following
// prev's last byte and lies within prev's capacity — i.e. whether the two
// buffers are contiguous parts of the same backing array and can be
// coalesced into one descriptor. Separately allocated buffers never
// coalesce, even when the allocator happens to place them side by side.
func adjacent(prev, next []byte) bool {
	if len(prev) == 0 || len(next) == 0 {
		return false
	}
	if cap(prev)-len(prev) < len(next) {
		return false
	}
	prevEnd := uintptr(unsafe.Pointer(&prev[0])) + uintptr(len(prev))
	nextStart := uintptr(unsafe.Pointer(&next[0]))
	return prevEnd == nextStart
}

// extend grows prev's slice to additionally cover the n bytes physically
// following it. Safe because adjacent() has already confirmed those bytes
// are the ones backing the buffer being coalesced in and lie within prev's
// capacity, as they do for spans sliced from their owning block's Root
// without a capacity cap (see block.Span).
func extend(prev []byte, n int) []byte {
	return prev[:len(prev)+n]
}

// IOV is one descriptor handed to a transport's vectored write call.
type IOV struct {
	Base []byte
}

// StartFlush fills iovs (up to its capacity) with the next unadvertised
// bytes, resuming from the cursor left by any previous StartFlush call
// that was not yet consumed by EndFlush, per §4.5. It returns the total
// number of bytes described.
func (q *Queue) StartFlush(iovs []IOV) (n int) {
	if len(iovs) == 0 {
		return 0
	}
	count := 0
	var cur *Item
	advertise := func(it *Item, off int) bool {
		if count >= len(iovs) {
			return false
		}
		iovs[count] = IOV{Base: it.Base[off:]}
		n += len(it.Base) - off
		count++
		q.lastRequested = it
		q.lastOffset = len(it.Base)
		return true
	}

	if q.lastRequested != nil && q.lastOffset < q.lastRequested.Len() {
		if !advertise(q.lastRequested, q.lastOffset) {
			return n
		}
		cur = q.lastRequested.next
	} else if q.lastRequested != nil {
		cur = q.lastRequested.next
	} else {
		cur = q.head
	}

	for cur != nil {
		if !advertise(cur, 0) {
			break
		}
		cur = cur.next
	}
	return n
}

// EndFlush advances the cursor by nflushed bytes actually consumed
// downstream, retiring fully-consumed items, per §4.6.
func (q *Queue) EndFlush(nflushed int) {
	for nflushed > 0 {
		it := q.head
		if it == nil {
			panic("sendqueue: endFlush with nothing pending")
		}
		chop := it.Len()
		if chop > nflushed {
			chop = nflushed
		}
		it.Base = it.Base[chop:]
		nflushed -= chop
		if it == q.lastRequested {
			q.lastRequested = nil
			q.lastOffset = 0
		}
		if it.Len() == 0 {
			q.unlink(it)
		}
	}
}

// unlink removes it from the pending list and returns it to the item
// pool for reuse by a future Enqueue.
func (q *Queue) unlink(it *Item) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		q.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		q.tail = it.prev
	}
	it.prev, it.next = nil, nil
	q.items.put(it)
}

// Drain discards every pending item without flushing, returning each to
// the item pool, for cleanup.
func (q *Queue) Drain() {
	for it := q.head; it != nil; {
		next := it.next
		it.prev, it.next = nil, nil
		q.items.put(it)
		it = next
	}
	q.head, q.tail = nil, nil
	q.lastRequested = nil
	q.lastOffset = 0
}

// Empty reports whether the pending list has no items.
func (q *Queue) Empty() bool { return q.head == nil }

// Pending returns the current buffer of each pending item, in order.
func (q *Queue) Pending() [][]byte {
	var out [][]byte
	for it := q.head; it != nil; it = it.next {
		out = append(out, it.Base)
	}
	return out
}
