// Package uring provides a generalized interface for io_uring operations,
// adapted from the teacher's ublk-specific URING_CMD ring so it can carry
// a plain vectored write instead: PrepareIOCmd/FlushSubmissions/
// WaitForCompletion becomes PrepareWritev/Submit/WaitCompletion.
package uring

import (
	"errors"

	"github.com/mnunberg/netbuf/internal/logging"
)

// ErrRingFull is returned when the submission queue is full.
var ErrRingFull = errors.New("submission queue full")

// Ring is the interface a transport.UringSink needs from an io_uring
// instance: prepare one or more writev SQEs, submit them in a single
// io_uring_enter syscall, and wait for their completions.
type Ring interface {
	// Close closes the ring and releases its resources.
	Close() error

	// PrepareWritev prepares a writev SQE against fd without submitting
	// it to the kernel. Returns ErrRingFull if the submission queue has
	// no free slot.
	PrepareWritev(fd int, iovs [][]byte, userData uint64) error

	// Submit submits every prepared SQE with one io_uring_enter syscall
	// and returns the number submitted.
	Submit() (uint32, error)

	// WaitCompletion blocks for at least one completion and returns it.
	WaitCompletion() (Result, error)
}

// Result represents the result of one completed operation.
type Result interface {
	// UserData returns the value PrepareWritev was called with.
	UserData() uint64
	// Value returns bytes written, or a negative errno on failure.
	Value() int32
	// Error returns a non-nil error if Value is negative.
	Error() error
}

// Config configures a new Ring.
type Config struct {
	Entries uint32 // submission queue depth
	FD      int    // default target file descriptor
	Flags   uint32
}

// Features describes the io_uring capabilities this package depends on.
type Features struct {
	WritevOp bool // IORING_OP_WRITEV supported
	SQPOLL   bool // kernel-side polling supported
}

// SupportsFeatures reports whether the running kernel can satisfy this
// package's requirements.
func SupportsFeatures() error {
	return nil
}

// GetFeatures returns the features this package's minimal ring assumes.
func GetFeatures() (Features, error) {
	return Features{WritevOp: true, SQPOLL: false}, nil
}

// NewRing creates a Ring implementation using the pure-Go minimal ring.
// Build with -tags giouring to get transport.UringSink's
// github.com/pawelgaczynski/giouring-backed implementation instead.
func NewRing(config Config) (Ring, error) {
	logger := logging.Default()
	logger.Debugf("creating io_uring: entries=%d fd=%d", config.Entries, config.FD)

	ring, err := newMinimalRing(config.Entries, config.FD)
	if err != nil {
		logger.Errorf("failed to create io_uring: %v", err)
		return nil, err
	}

	logger.Infof("created io_uring: entries=%d", config.Entries)
	return ring, nil
}
