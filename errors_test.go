package cachesim

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("LOAD_TRACE", ErrCodeBadTrace, "unrecognized opcode")

	if err.Op != "LOAD_TRACE" {
		t.Errorf("Expected Op=LOAD_TRACE, got %s", err.Op)
	}
	if err.Code != ErrCodeBadTrace {
		t.Errorf("Expected Code=ErrCodeBadTrace, got %s", err.Code)
	}

	expected := "cachesim: unrecognized opcode (op=LOAD_TRACE)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestComponentError(t *testing.T) {
	err := NewComponentError("ACQUIRE_BUS", "bus", 42, ErrCodeBusInvariantViolation, "release by non-owner")

	if err.Component != "bus" {
		t.Errorf("Expected Component=bus, got %s", err.Component)
	}
	if err.Cycle != 42 {
		t.Errorf("Expected Cycle=42, got %d", err.Cycle)
	}

	expected := "cachesim: release by non-owner (op=ACQUIRE_BUS)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("file not found")
	err := WrapError("LOAD_TRACE", inner)

	if err.Code != ErrCodeBadTrace {
		t.Errorf("Expected Code=ErrCodeBadTrace, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("PARSE", ErrCodeUnknownProtocol, "expected MESI or Dragon")
	if !IsCode(err, ErrCodeUnknownProtocol) {
		t.Error("expected IsCode to match ErrCodeUnknownProtocol")
	}
	if IsCode(err, ErrCodeBadTrace) {
		t.Error("expected IsCode not to match a different code")
	}
	if IsCode(nil, ErrCodeUnknownProtocol) {
		t.Error("expected IsCode to return false for a nil error")
	}
}

func TestErrorCodeIsInvariantViolation(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeBadTrace, false},
		{ErrCodeUnknownProtocol, false},
		{ErrCodeQueueOrderViolation, true},
		{ErrCodeProtocolStateViolation, true},
		{ErrCodeBusInvariantViolation, true},
		{ErrCodeCapacityViolation, true},
	}
	for _, c := range cases {
		if got := c.code.IsInvariantViolation(); got != c.want {
			t.Errorf("%s.IsInvariantViolation() = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestPanicAndRecover(t *testing.T) {
	var retErr error
	func() {
		defer Recover(&retErr)
		Panic("SET_NOW", "deq", 3, ErrCodeQueueOrderViolation, "message targets a past cycle")
	}()

	if retErr == nil {
		t.Fatal("expected Recover to populate an error")
	}
	if !IsCode(retErr, ErrCodeQueueOrderViolation) {
		t.Errorf("expected ErrCodeQueueOrderViolation, got %v", retErr)
	}
}

func TestRecoverRePanicsOnUnrelatedValue(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected re-panic for a non-*Error value")
		}
	}()

	var retErr error
	func() {
		defer Recover(&retErr)
		panic("not a cachesim error")
	}()
}
