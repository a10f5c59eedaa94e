package netbuf

import "github.com/mnunberg/netbuf/internal/block"

// Span is a caller-visible reservation handle: either a packed region
// inside the Manager's data pool, or a tagged wrapper around a
// caller-owned buffer (see NewUserSpan). This is the type-safe
// tagged-variant representation spec.md §9 recommends in place of the
// original's offset==INVALID sentinel.
type Span struct {
	raw      block.Span
	user     []byte
	released func()
}

// Size returns the span's length in bytes.
func (s Span) Size() int {
	if s.user != nil {
		return len(s.user)
	}
	return s.raw.Size
}

// Bytes returns the span's buffer. Like internal/block.Span.Bytes, the
// slice is not capacity-limited: two spans reserved consecutively from
// the same Block are physically adjacent in Root, and EnqueueSpan's
// coalescing relies on growing the first span's slice into the second's
// bytes via append-style capacity, the same way spec.md §4.4 describes
// enqueue coalescing as a pointer-arithmetic check. Callers that hand
// this buffer to untrusted code should re-slice defensively.
func (s Span) Bytes() []byte {
	if s.user != nil {
		return s.user
	}
	off, size := s.raw.Offset, s.raw.Size
	return s.raw.Block.Root[off : off+size]
}

// IsUserOwned reports whether the span wraps a caller-supplied buffer
// rather than data-pool memory.
func (s Span) IsUserOwned() bool {
	return s.user != nil
}

// valid reports whether the span was ever populated by Reserve or
// NewUserSpan (as opposed to a zero-value Span).
func (s Span) valid() bool {
	return s.user != nil || s.raw.Block != nil
}

// NewUserSpan wraps an already-allocated buffer not owned by any pool so
// it can be enqueued through the same send-queue path as pool-backed
// spans, per the original library's NETBUF_BLOCK_USER. Releasing a user
// span never touches pool state; released, if non-nil, is invoked once
// by Release so the caller can learn when the manager is done with buf.
func NewUserSpan(buf []byte, released func()) Span {
	return Span{user: buf, released: released}
}
