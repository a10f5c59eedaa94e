//go:build giouring

// Package transport's giouring-backed Sink: submits the flushed IOVs as a
// single IORING_OP_WRITEV SQE via github.com/pawelgaczynski/giouring and
// waits for its CQE, exactly like the teacher's iouring.go/iouring_stub.go
// pair but targeting a plain vectored write instead of ublk's URING_CMD.
package transport

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/pawelgaczynski/giouring"
)

// UringSink submits writev operations through an io_uring instance
// instead of issuing a blocking syscall per WriteV call.
type UringSink struct {
	mu     sync.Mutex
	ring   *giouring.Ring
	fd     int
	seq    uint64
	closed bool
}

// NewUringSink creates a ring of the given submission-queue depth bound
// to fd.
func NewUringSink(fd int, entries uint32) (*UringSink, error) {
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("transport: giouring.CreateRing: %w", err)
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
	if len(bufs) == 0 {
		return 0, nil
	}

	iovecs := make([]syscall.Iovec, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		iovecs = append(iovecs, syscall.Iovec{Base: &b[0]})
		iovecs[len(iovecs)-1].SetLen(len(b))
	}
	if len(iovecs) == 0 {
		return 0, nil
	}

	sqe := s.ring.GetSQE()
	if sqe == nil {
		return 0, fmt.Errorf("transport: io_uring submission queue full")
	}
	s.seq++
	sqe.PrepareWritev(int32(s.fd), iovecs, 0)
	sqe.UserData = s.seq

	if _, err := s.ring.SubmitAndWait(1); err != nil {
		return 0, fmt.Errorf("transport: io_uring submit: %w", err)
	}

	cqe, err := s.ring.WaitCQE()
	if err != nil {
		return 0, fmt.Errorf("transport: io_uring wait cqe: %w", err)
	}
	defer s.ring.CQESeen(cqe)

	if cqe.Res < 0 {
		return 0, fmt.Errorf("transport: writev completed with %d", cqe.Res)
	}
	return int(cqe.Res), nil
}

// Close implements Sink.
func (s *UringSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ring.QueueExit()
	return syscall.Close(s.fd)
}

var _ Sink = (*UringSink)(nil)
