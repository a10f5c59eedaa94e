package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockEmpty(t *testing.T) {
	b := &Block{Root: make([]byte, 16)}
	assert.True(t, b.Empty())

	b.Cursor = 4
	assert.False(t, b.Empty())
}

func TestBlockLiveBytesSingleSegment(t *testing.T) {
	b := &Block{Root: make([]byte, 16), Start: 2, Wrap: 10, Cursor: 10}
	assert.Equal(t, 8, b.LiveBytes())
}

func TestBlockLiveBytesTwoSegments(t *testing.T) {
	// Wrapped: live bytes are [Start,Wrap) and [0,Cursor).
	b := &Block{Root: make([]byte, 16), Start: 10, Wrap: 16, Cursor: 4}
	assert.Equal(t, 10, b.LiveBytes())
}

func TestBlockCapAndContains(t *testing.T) {
	b := &Block{Root: make([]byte, 32)}
	require.Equal(t, 32, b.Cap())
	assert.True(t, b.Contains(0))
	assert.True(t, b.Contains(31))
	assert.False(t, b.Contains(32))
	assert.False(t, b.Contains(-1))
}

func TestDeallocQueuePushAndApplyAt(t *testing.T) {
	q := newDeallocQueue(nil)
	assert.True(t, q.empty())

	q.push(10, 5)
	q.push(4, 6)
	assert.False(t, q.empty())

	// Starting at 4, both records are consecutive: 4..10, 10..15.
	next := q.applyAt(4)
	assert.Equal(t, 15, next)
	assert.True(t, q.empty())
}

func TestDeallocQueueApplyAtNonMatching(t *testing.T) {
	q := newDeallocQueue(nil)
	q.push(20, 5)

	next := q.applyAt(4)
	assert.Equal(t, 4, next, "no record starts at 4, start is unchanged")
	assert.False(t, q.empty())
	assert.Equal(t, 20, q.minOffset)
}

func TestDeallocQueueRecomputeMinAfterUnlink(t *testing.T) {
	q := newDeallocQueue(nil)
	q.push(8, 2)
	q.push(2, 2)
	q.push(5, 1)
	require.Equal(t, 2, q.minOffset)

	// applyAt(2) only consumes the record starting at 2, not the others.
	next := q.applyAt(2)
	assert.Equal(t, 4, next)
	assert.Equal(t, 5, q.minOffset)
}

// TestInfoArenaReusesRetiredNodes exercises the dealloc_basealloc/
// dealloc_cacheblocks-sized arena: with a one-slab, one-element arena, a
// record consumed by applyAt must be handed back out by the next push
// rather than heap-allocated fresh.
func TestInfoArenaReusesRetiredNodes(t *testing.T) {
	a := newInfoArena(1, 1)
	first := a.get(10, 5)
	a.put(first)

	second := a.get(20, 3)
	assert.Same(t, first, second, "the sole preallocated node should be recycled")

	// The arena is now exhausted: a further get falls back to the heap
	// rather than reusing the still-checked-out node.
	third := a.get(30, 1)
	assert.NotSame(t, second, third)
}

// TestInfoArenaZeroSizedFallsBackToHeap confirms a zero-sized arena (the
// default_settings() dealloc_cacheblocks=0 case) still works correctly,
// just via plain heap allocation for every record.
func TestInfoArenaZeroSizedFallsBackToHeap(t *testing.T) {
	a := newInfoArena(0, 0)
	rec := a.get(1, 1)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Offset)
}
