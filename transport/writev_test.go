package transport

import (
	"io"
	"os"
	"testing"
)

func TestWritevSinkWriteV(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer r.Close()

	sink := NewWritevSink(int(w.Fd()))

	done := make(chan []byte, 1)
	go func() {
		buf, _ := io.ReadAll(r)
		done <- buf
	}()

	n, err := sink.WriteV([][]byte{[]byte("foo"), []byte("bar")})
	if err != nil {
		t.Fatalf("WriteV failed: %v", err)
	}
	if n != 6 {
		t.Errorf("WriteV returned %d, want 6", n)
	}

	sink.Close()
	got := <-done
	if string(got) != "foobar" {
		t.Errorf("got %q, want %q", got, "foobar")
	}
}

func TestWritevSinkCloseRejectsWrites(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer r.Close()

	sink := NewWritevSink(int(w.Fd()))
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := sink.WriteV([][]byte{[]byte("x")}); err == nil {
		t.Error("expected WriteV on closed sink to fail")
	}
}
