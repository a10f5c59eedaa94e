package block

import (
	"fmt"
	"io"
	"unsafe"
)

// Span is an internal reservation record: a back-reference to the owning
// Block, a byte offset within it, and the reserved size. The exported
// netbuf.Span wraps this (or, for user-owned buffers, nothing at all —
// see netbuf.NewUserSpan) to give callers a type-safe tagged variant in
// place of the original's INVALID-offset sentinel.
type Span struct {
	Block  *Block
	Offset int
	Size   int
}

// Bytes returns the span's buffer. The slice is not capacity-limited;
// callers that hand this to untrusted code should re-slice defensively.
func (s Span) Bytes() []byte {
	return s.Block.Root[s.Offset : s.Offset+s.Size]
}

// Pool owns a set of Blocks and serves span reservations from them,
// growing by allocation and recycling empty Blocks, exactly as the
// ring-based slab allocator described for MBlockPool.
type Pool struct {
	activeHead, activeTail *Block
	availHead              *Block

	basealloc   int
	cacheblocks int
	curblocks   int
	maxblocks   int

	headers []Block

	// deallocArena sizes every Block's DeallocQueue this pool creates,
	// per spec.md §6's dealloc_basealloc/dealloc_cacheblocks settings.
	deallocArena *infoArena

	// OnGrow and OnFree, if set, are called whenever the pool allocates
	// or releases backing memory for a Block, so a Manager can keep
	// spec.md §4.7's total_allocs/total_bytes statistics current.
	OnGrow func(nalloc int)
	OnFree func(nalloc int)
}

// NewPool constructs a Pool whose blocks default to basealloc bytes,
// with cacheblocks header slots preallocated to avoid heap allocation for
// the first cacheblocks blocks, and standalone-block retention bounded by
// maxblocks. deallocBasealloc/deallocCacheBlocks size the arena backing
// every Block's deferred-dealloc queue (spec.md §6).
func NewPool(basealloc, cacheblocks, maxblocks, deallocBasealloc, deallocCacheBlocks int) *Pool {
	if basealloc <= 0 {
		basealloc = 1
	}
	return &Pool{
		basealloc:    basealloc,
		cacheblocks:  cacheblocks,
		maxblocks:    maxblocks,
		headers:      make([]Block, cacheblocks),
		deallocArena: newInfoArena(deallocBasealloc, deallocCacheBlocks),
	}
}

// Reserve attempts to satisfy span.Size from the most-recently active
// block, falling back to an available or freshly allocated block. It
// reports false (leaving span untouched) when span.Size is not positive,
// or when a new block is needed and allocation fails — which cannot happen
// with Go's allocator short of an out-of-memory panic, but the boolean
// contract is kept so callers can treat exhaustion as a recoverable
// condition rather than a panic.
func (p *Pool) Reserve(span *Span) bool {
	size := span.Size
	if size <= 0 {
		return false
	}

	if b := p.activeTail; b != nil && !b.HasDeallocs() {
		if offset, ok := reserveActive(b, size); ok {
			span.Block = b
			span.Offset = offset
			return true
		}
	}

	b := p.reserveEmptyBlock(size)
	if b == nil {
		return false
	}
	b.Start = 0
	b.Wrap = size
	b.Cursor = size
	b.Deallocs = nil
	p.pushActive(b)
	span.Block = b
	span.Offset = 0
	return true
}

// reserveActive implements §4.1 step 1: try to pack size more bytes into
// an already-active block without touching the available list.
func reserveActive(b *Block, size int) (offset int, ok bool) {
	if b.Cursor > b.Start {
		if len(b.Root)-b.Cursor >= size {
			offset = b.Cursor
			b.Cursor += size
			b.Wrap = b.Cursor
			return offset, true
		}
		if b.Start >= size {
			b.Cursor = size
			return 0, true
		}
		return 0, false
	}
	if b.Start-b.Cursor >= size {
		offset = b.Cursor
		b.Cursor += size
		return offset, true
	}
	return 0, false
}

// reserveEmptyBlock implements §4.1 step 2: find or create a block with
// at least size bytes of capacity.
func (p *Pool) reserveEmptyBlock(size int) *Block {
	if b := p.takeAvailable(size); b != nil {
		if b.standalone {
			p.curblocks--
		}
		return b
	}
	return p.allocateBlock(size)
}

// allocateBlock grows a preallocated header slot, or heap-allocates a
// standalone one if every slot is already in use.
func (p *Pool) allocateBlock(size int) *Block {
	nalloc := growSize(p.basealloc, size)
	var b *Block
	for i := range p.headers {
		if p.headers[i].Root == nil {
			b = &p.headers[i]
			b.Root = make([]byte, nalloc)
			break
		}
	}
	if b == nil {
		b = &Block{Root: make([]byte, nalloc), standalone: true}
	}
	if p.OnGrow != nil {
		p.OnGrow(nalloc)
	}
	return b
}

// growSize returns basealloc, or the smallest power-of-two multiple of
// basealloc that is at least size.
func growSize(basealloc, size int) int {
	n := basealloc
	if n <= 0 {
		n = 1
	}
	for n < size {
		n *= 2
	}
	return n
}

// Release returns span's region to its parent pool, per §4.2's three
// cases (head, tail, middle), relocating the block to available or
// destroying it once it empties.
func (p *Pool) Release(span Span) {
	b := span.Block
	offset, size := span.Offset, span.Size

	switch {
	case offset == b.Start:
		b.Start += size
		if b.Deallocs != nil && b.Deallocs.hasMin && b.Deallocs.minOffset == b.Start {
			b.Start = b.Deallocs.applyAt(b.Start)
		}
		if !b.Empty() && b.Start == b.Wrap {
			b.Wrap = b.Cursor
			b.Start = 0
		}
	case offset+size == b.Cursor:
		if b.Cursor == b.Wrap {
			b.Cursor -= size
			b.Wrap = b.Cursor
		} else {
			b.Cursor -= size
			if b.Cursor == 0 {
				b.Cursor = b.Wrap
			}
		}
	default:
		if b.Deallocs == nil {
			b.Deallocs = newDeallocQueue(p.deallocArena)
		}
		b.Deallocs.push(offset, size)
	}

	if b.Empty() {
		p.relocate(b)
	}
}

// relocate moves an emptied block out of active, per §4.2's retire rule.
func (p *Pool) relocate(b *Block) {
	p.unlinkActive(b)
	if !b.standalone {
		p.pushAvailable(b)
		return
	}
	if p.curblocks < p.maxblocks {
		p.curblocks++
		p.pushAvailable(b)
		return
	}
	// Destroyed: unlinked from every list, unreferenced, collected by the
	// Go runtime like any other abandoned allocation.
	if p.OnFree != nil {
		p.OnFree(len(b.Root))
	}
}

// GetNextSize returns the largest single reservation the current active
// tail block can satisfy without allocating a new block, per §4.3.
func (p *Pool) GetNextSize(allowWrap bool) int {
	b := p.activeTail
	if b == nil || b.HasDeallocs() {
		return 0
	}
	if b.Start == 0 {
		return len(b.Root) - b.Cursor
	}
	if b.Cursor != b.Wrap {
		return b.Start - b.Cursor
	}
	if allowWrap {
		tail := len(b.Root) - b.Wrap
		head := b.Start
		if head > tail {
			return head
		}
		return tail
	}
	return len(b.Root) - b.Wrap
}

// Size returns the sum of live bytes across every active block.
func (p *Pool) Size() int {
	total := 0
	for b := p.activeHead; b != nil; b = b.next {
		total += b.LiveBytes()
	}
	return total
}

// BlockFor locates the active block owning buf by address range, for
// release paths that only have a raw byte slice rather than a Span.
func (p *Pool) BlockFor(buf []byte) (block *Block, offset int, ok bool) {
	if len(buf) == 0 {
		return nil, 0, false
	}
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	for b := p.activeHead; b != nil; b = b.next {
		if len(b.Root) == 0 {
			continue
		}
		start := uintptr(unsafe.Pointer(&b.Root[0]))
		end := start + uintptr(len(b.Root))
		if ptr >= start && ptr < end {
			return b, int(ptr - start), true
		}
	}
	return nil, 0, false
}

// Cleanup frees every block, active and available, and resets the pool
// to its freshly-constructed state (preallocated headers included). Every
// remaining block is reported through OnFree first, so a Manager's
// total_bytes statistic returns to exactly zero.
func (p *Pool) Cleanup() {
	if p.OnFree != nil {
		for b := p.activeHead; b != nil; b = b.next {
			p.OnFree(len(b.Root))
		}
		for b := p.availHead; b != nil; b = b.next {
			p.OnFree(len(b.Root))
		}
	}
	p.activeHead, p.activeTail = nil, nil
	p.availHead = nil
	p.curblocks = 0
	for i := range p.headers {
		p.headers[i] = Block{}
	}
}

// DumpStatus renders an ASCII diagram of every active block's segment
// layout and the available-list sizes, in the spirit of the original
// library's dump_managed_block.
func (p *Pool) DumpStatus(w io.Writer) {
	i := 0
	for b := p.activeHead; b != nil; b = b.next {
		fmt.Fprintf(w, "block[%d] nalloc=%d start=%d wrap=%d cursor=%d",
			i, len(b.Root), b.Start, b.Wrap, b.Cursor)
		if b.HasDeallocs() {
			fmt.Fprintf(w, " deallocs(min=%d)", b.Deallocs.minOffset)
		}
		if b.Cursor > b.Start {
			fmt.Fprintf(w, " [S:%d]xxx[C:%d]\n", b.Start, b.Cursor)
		} else {
			fmt.Fprintf(w, " [S:%d]xxx[W:%d]ooo[C:%d]\n", b.Start, b.Wrap, b.Cursor)
		}
		i++
	}
	n := 0
	for b := p.availHead; b != nil; b = b.next {
		n++
	}
	fmt.Fprintf(w, "available=%d curblocks=%d maxblocks=%d\n", n, p.curblocks, p.maxblocks)
}

func (p *Pool) pushActive(b *Block) {
	b.prev, b.next = p.activeTail, nil
	if p.activeTail != nil {
		p.activeTail.next = b
	} else {
		p.activeHead = b
	}
	p.activeTail = b
}

func (p *Pool) unlinkActive(b *Block) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		p.activeHead = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		p.activeTail = b.prev
	}
	b.prev, b.next = nil, nil
}

func (p *Pool) pushAvailable(b *Block) {
	b.prev = nil
	b.next = p.availHead
	if p.availHead != nil {
		p.availHead.prev = b
	}
	p.availHead = b
}

func (p *Pool) unlinkAvailable(b *Block) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		p.availHead = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	b.prev, b.next = nil, nil
}

// takeAvailable returns the first available block with enough capacity,
// unlinking it from the available list.
func (p *Pool) takeAvailable(size int) *Block {
	for b := p.availHead; b != nil; b = b.next {
		if len(b.Root) >= size {
			p.unlinkAvailable(b)
			return b
		}
	}
	return nil
}
