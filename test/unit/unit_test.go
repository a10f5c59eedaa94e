//go:build !integration

package unit

import (
	"bytes"
	"testing"

	"github.com/mnunberg/netbuf"
)

// These tests run without requiring a live transport.

func TestDefaultSettings(t *testing.T) {
	s := netbuf.DefaultSettings()
	if s.SendQueueBaseAlloc != 128 {
		t.Errorf("SendQueueBaseAlloc = %d, want 128", s.SendQueueBaseAlloc)
	}
	if s.SendQueueCacheBlocks != 4 {
		t.Errorf("SendQueueCacheBlocks = %d, want 4", s.SendQueueCacheBlocks)
	}
	if s.DeallocBaseAlloc != 24 {
		t.Errorf("DeallocBaseAlloc = %d, want 24", s.DeallocBaseAlloc)
	}
	if s.DeallocCacheBlocks != 0 {
		t.Errorf("DeallocCacheBlocks = %d, want 0", s.DeallocCacheBlocks)
	}
	if s.DataBaseAlloc != 32768 {
		t.Errorf("DataBaseAlloc = %d, want 32768", s.DataBaseAlloc)
	}
	if s.DataCacheBlocks != 16 {
		t.Errorf("DataCacheBlocks = %d, want 16", s.DataCacheBlocks)
	}
}

func TestReserveAndRelease(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	span, ok := m.Reserve(64)
	if !ok {
		t.Fatal("Reserve failed")
	}
	if span.Size() != 64 {
		t.Errorf("span.Size() = %d, want 64", span.Size())
	}
	if m.Size() != 64 {
		t.Errorf("m.Size() = %d, want 64", m.Size())
	}
	m.Release(span)
	if m.Size() != 0 {
		t.Errorf("m.Size() after release = %d, want 0", m.Size())
	}
}

func TestReserveZeroSizePanics(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero-size Reserve")
		}
	}()
	m.Reserve(0)
}

func TestEnqueueAndFlush(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	span, ok := m.Reserve(5)
	if !ok {
		t.Fatal("Reserve failed")
	}
	copy(span.Bytes(), []byte("hello"))
	m.EnqueueSpan(span)

	if m.IOVCount() != 1 {
		t.Fatalf("IOVCount() = %d, want 1", m.IOVCount())
	}

	iovs := make([]netbuf.IOV, 4)
	n := m.StartFlush(iovs)
	if n != 5 {
		t.Fatalf("StartFlush returned %d, want 5", n)
	}
	if !bytes.Equal(iovs[0].Base, []byte("hello")) {
		t.Errorf("iovs[0].Base = %q, want %q", iovs[0].Base, "hello")
	}

	m.EndFlush(5)
	if m.IOVCount() != 0 {
		t.Errorf("IOVCount() after EndFlush = %d, want 0", m.IOVCount())
	}
}

func TestEnqueueZeroLengthPanics(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero-length EnqueueBuffer")
		}
	}()
	m.EnqueueBuffer(nil)
}

func TestUserSpan(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	var released bool
	buf := []byte("user owned")
	span := netbuf.NewUserSpan(buf, func() { released = true })
	if !span.IsUserOwned() {
		t.Error("expected IsUserOwned true")
	}
	if span.Size() != len(buf) {
		t.Errorf("Size() = %d, want %d", span.Size(), len(buf))
	}
	m.EnqueueSpan(span)
	m.Release(span)
	if !released {
		t.Error("released callback was not invoked")
	}
}

func TestMetricsAfterReserve(t *testing.T) {
	m := netbuf.New(nil)
	defer m.Cleanup()

	m.Reserve(128)
	snap := m.Metrics().Snapshot()
	if snap.ReserveOps != 1 {
		t.Errorf("ReserveOps = %d, want 1", snap.ReserveOps)
	}
	if snap.TotalAllocs != 1 {
		t.Errorf("TotalAllocs = %d, want 1", snap.TotalAllocs)
	}
}

func TestMockSink(t *testing.T) {
	sink := netbuf.NewMockSink()
	n, err := sink.WriteV([][]byte{[]byte("abc"), []byte("def")})
	if err != nil {
		t.Fatalf("WriteV error: %v", err)
	}
	if n != 6 {
		t.Errorf("WriteV returned %d, want 6", n)
	}
	if !bytes.Equal(sink.Captured, []byte("abcdef")) {
		t.Errorf("Captured = %q, want %q", sink.Captured, "abcdef")
	}
	sink.Close()
	if !sink.IsClosed() {
		t.Error("expected sink to be closed")
	}
}
