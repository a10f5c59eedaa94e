//go:build !giouring

// Package transport's pure-Go Sink, used when the giouring build tag is
// not set: backed by internal/uring's hand-rolled minimal ring (plain
// io_uring_setup/io_uring_enter syscalls, no third-party binding)
// instead of github.com/pawelgaczynski/giouring.
package transport

import (
	"fmt"
	"sync"

	"github.com/mnunberg/netbuf/internal/uring"
)

// UringSink submits writev operations through internal/uring's minimal
// ring rather than issuing a blocking syscall per WriteV call.
type UringSink struct {
	mu     sync.Mutex
	ring   uring.Ring
	fd     int
	seq    uint64
	closed bool
}

// NewUringSink creates a ring of the given submission-queue depth bound
// to fd. Build with -tags giouring to get the
// github.com/pawelgaczynski/giouring-backed implementation instead.
func NewUringSink(fd int, entries uint32) (*UringSink, error) {
	ring, err := uring.NewRing(uring.Config{Entries: entries, FD: fd})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return &UringSink{ring: ring, fd: fd}, nil
}

// WriteV implements Sink.
func (s *UringSink) WriteV(bufs [][]byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("transport: writev on closed sink")
	}

	nonEmpty := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return 0, nil
	}

	s.seq++
	if err := s.ring.PrepareWritev(s.fd, nonEmpty, s.seq); err != nil {
		return 0, fmt.Errorf("transport: prepare writev: %w", err)
	}
	if _, err := s.ring.Submit(); err != nil {
		return 0, fmt.Errorf("transport: submit: %w", err)
	}
	res, err := s.ring.WaitCompletion()
	if err != nil {
		return 0, fmt.Errorf("transport: wait completion: %w", err)
	}
	if res.Error() != nil {
		return 0, fmt.Errorf("transport: writev completed with error: %w", res.Error())
	}
	return int(res.Value()), nil
}

// Close implements Sink.
func (s *UringSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ring.Close()
}

var _ Sink = (*UringSink)(nil)
