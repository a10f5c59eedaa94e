package uring

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Minimal ring structures needed for IORING_OP_WRITEV, adapted from the
// teacher's URING_CMD-only ring: same setup/mmap/enter dance, a standard
// writev opcode instead of a ublk command blob.

const (
	ioringOpWritev = 2

	ioringEnterGetevents = 1 << 0
)

type sqe struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	length      uint32
	opcodeFlags uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceOff   int32
	addr3       uint64
	_           uint64
}

type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}

type ringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCpu  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        struct {
		head, tail, ringMask, ringEntries, flags, dropped, array, resv1 uint32
		userAddr                                                       uint64
	}
	cqOff struct {
		head, tail, ringMask, ringEntries, overflow, cqes, flags, resv1 uint32
		userAddr                                                       uint64
	}
}

type minimalRing struct {
	fd        int
	params    ringParams
	sqAddr    unsafe.Pointer
	cqAddr    unsafe.Pointer
	defaultFD int
	pending   []*sqe
}

func newMinimalRing(entries uint32, defaultFD int) (Ring, error) {
	params := ringParams{sqEntries: entries, cqEntries: entries * 2}

	ringFd, _, errno := syscall.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %v", errno)
	}

	sqSize := params.sqOff.array + params.sqEntries*4
	cqSize := params.cqOff.cqes + params.cqEntries*uint32(unsafe.Sizeof(cqe{}))

	sqMem, err := unix.Mmap(int(ringFd), 0, int(sqSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		syscall.Close(int(ringFd))
		return nil, fmt.Errorf("mmap sq: %w", err)
	}
	cqMem, err := unix.Mmap(int(ringFd), 0x8000000, int(cqSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(sqMem)
		syscall.Close(int(ringFd))
		return nil, fmt.Errorf("mmap cq: %w", err)
	}

	return &minimalRing{
		fd:        int(ringFd),
		params:    params,
		sqAddr:    unsafe.Pointer(&sqMem[0]),
		cqAddr:    unsafe.Pointer(&cqMem[0]),
		defaultFD: defaultFD,
	}, nil
}

func (r *minimalRing) Close() error {
	return syscall.Close(r.fd)
}

// PrepareWritev stages a writev SQE. iovs' underlying storage must stay
// alive until the matching completion is observed via WaitCompletion.
func (r *minimalRing) PrepareWritev(fd int, iovs [][]byte, userData uint64) error {
	sqHead := (*uint32)(unsafe.Add(r.sqAddr, r.params.sqOff.head))
	sqTail := (*uint32)(unsafe.Add(r.sqAddr, r.params.sqOff.tail))
	if *sqTail-*sqHead >= r.params.sqEntries {
		return ErrRingFull
	}

	vecs := make([]unix.Iovec, len(iovs))
	for i, b := range iovs {
		if len(b) == 0 {
			continue
		}
		vecs[i].Base = &b[0]
		vecs[i].SetLen(len(b))
	}

	entry := &sqe{
		opcode:   ioringOpWritev,
		fd:       int32(fd),
		addr:     uint64(uintptr(unsafe.Pointer(&vecs[0]))),
		length:   uint32(len(vecs)),
		userData: userData,
	}

	sqMask := r.params.sqEntries - 1
	sqArray := unsafe.Add(r.sqAddr, r.params.sqOff.array)
	index := *sqTail & sqMask
	slot := unsafe.Add(r.sqAddr, uintptr(64*index))
	*(*sqe)(slot) = *entry
	*(*uint32)(unsafe.Add(sqArray, uintptr(4*index))) = index

	// The SQE body must be globally visible before the kernel can see the
	// advanced tail that makes it eligible for submission.
	Sfence()
	*sqTail++
	r.pending = append(r.pending, entry)
	return nil
}

func (r *minimalRing) Submit() (uint32, error) {
	n := uint32(len(r.pending))
	r.pending = r.pending[:0]
	// Full barrier before the io_uring_enter syscall: orders the SQ tail
	// write above against the kernel's read of it.
	Mfence()
	submitted, _, errno := r.enter(n, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("io_uring_enter: %v", errno)
	}
	return submitted, nil
}

func (r *minimalRing) WaitCompletion() (Result, error) {
	submitted, completed, errno := r.enter(0, 1, ioringEnterGetevents)
	_ = submitted
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_enter wait: %v", errno)
	}
	if completed == 0 {
		return nil, fmt.Errorf("no completion available")
	}

	cqHead := (*uint32)(unsafe.Add(r.cqAddr, r.params.cqOff.head))
	cqTail := (*uint32)(unsafe.Add(r.cqAddr, r.params.cqOff.tail))
	if *cqHead == *cqTail {
		return nil, fmt.Errorf("no completion available")
	}

	cqMask := r.params.cqEntries - 1
	index := *cqHead & cqMask
	slot := unsafe.Add(r.cqAddr, uintptr(16*index))
	c := (*cqe)(slot)

	res := &minimalResult{userData: c.userData, value: c.res}
	if c.res < 0 {
		res.err = fmt.Errorf("writev completed with %d", c.res)
	}
	*cqHead++
	return res, nil
}

func (r *minimalRing) enter(toSubmit, minComplete, flags uint32) (submitted, completed uint32, errno syscall.Errno) {
	r1, r2, err := syscall.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	return uint32(r1), uint32(r2), err
}

type minimalResult struct {
	userData uint64
	value    int32
	err      error
}

func (r *minimalResult) UserData() uint64 { return r.userData }
func (r *minimalResult) Value() int32     { return r.value }
func (r *minimalResult) Error() error     { return r.err }
