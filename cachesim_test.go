package cachesim

import (
	"context"
	"testing"
)

func TestParseProtocolIsCaseSensitive(t *testing.T) {
	if _, err := ParseProtocol("mesi"); err == nil {
		t.Fatal("expected lowercase protocol names to be rejected")
	}
	p, err := ParseProtocol("Dragon")
	if err != nil || p != Dragon {
		t.Fatalf("ParseProtocol(\"Dragon\") = (%v, %v), want (Dragon, nil)", p, err)
	}
}

func TestNewSystemSpecRejectsBadGeometry(t *testing.T) {
	if _, err := NewSystemSpec(MESI, 4, 4, 32, 100, 2, 100, 2); err == nil {
		t.Fatal("expected a cache_size not a multiple of block_size*cache_assoc to be rejected")
	}
}

func TestDefaultSystemSpecIsValid(t *testing.T) {
	spec := DefaultSystemSpec(MESI)
	if spec.CacheSize != DefaultCacheSize {
		t.Errorf("CacheSize = %d, want %d", spec.CacheSize, DefaultCacheSize)
	}
}

func TestRunRejectsNoTraces(t *testing.T) {
	spec := DefaultSystemSpec(MESI)
	if _, err := Run(context.Background(), spec, nil, nil); err == nil {
		t.Fatal("expected Run to reject an empty trace set")
	}
}

func TestRunEndToEndColdRead(t *testing.T) {
	spec := DefaultSystemSpec(MESI)
	traces := [][]Instr{{Read(0)}}

	rep, err := Run(context.Background(), spec, traces, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Caches) != 1 || rep.Caches[0].MissRate != 1.0 {
		t.Fatalf("expected a single cold miss, got %+v", rep.Caches)
	}
	if len(rep.Cores) != 1 || rep.Cores[0].Loads != 1 {
		t.Fatalf("expected one load recorded, got %+v", rep.Cores)
	}
}

func TestRunWithNilObserverDoesNotPanic(t *testing.T) {
	spec := DefaultSystemSpec(Dragon)
	traces := [][]Instr{{Write(0)}, {Read(4)}}

	if _, err := Run(context.Background(), spec, traces, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
