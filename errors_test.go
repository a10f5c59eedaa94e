package netbuf

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Reserve", ErrCodeOutOfMemory, "block allocation failed")

	if err.Op != "Reserve" {
		t.Errorf("Expected Op=Reserve, got %s", err.Op)
	}
	if err.Code != ErrCodeOutOfMemory {
		t.Errorf("Expected Code=ErrCodeOutOfMemory, got %s", err.Code)
	}

	expected := "netbuf: Reserve: block allocation failed"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapError("EndFlush", inner)

	if err.Code != ErrCodeProtocolMisuse {
		t.Errorf("Expected Code=ErrCodeProtocolMisuse, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to satisfy errors.Is for the inner error")
	}

	// Re-wrapping a structured error keeps its code and only updates Op.
	again := WrapError("Cleanup", err)
	if again.Code != ErrCodeProtocolMisuse {
		t.Errorf("Expected re-wrapped Code=ErrCodeProtocolMisuse, got %s", again.Code)
	}
	if again.Op != "Cleanup" {
		t.Errorf("Expected re-wrapped Op=Cleanup, got %s", again.Op)
	}

	if WrapError("Noop", nil) != nil {
		t.Error("Expected WrapError(op, nil) to return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("Enqueue", ErrCodeProtocolMisuse, "zero-length iov")

	if !IsCode(err, ErrCodeProtocolMisuse) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeOutOfMemory) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeProtocolMisuse) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIs(t *testing.T) {
	a := &Error{Code: ErrCodeOutOfMemory}
	b := NewError("Reserve", ErrCodeOutOfMemory, "different message")

	if !errors.Is(b, a) {
		t.Error("errors with the same Code should satisfy errors.Is")
	}
}
