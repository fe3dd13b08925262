package model

import (
	"errors"
	"testing"
)

func TestNewSystemSpecDerivedLatencies(t *testing.T) {
	spec, err := NewSystemSpec(MESI, 4, 4, 32, 4096, 2, 100, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.NumSets != 64 {
		t.Errorf("NumSets = %d, want 64", spec.NumSets)
	}
	if spec.TC2CMsg != 2 {
		t.Errorf("TC2CMsg = %d, want 2", spec.TC2CMsg)
	}
	if spec.TC2CTransfer != 16 {
		t.Errorf("TC2CTransfer = %d, want 16", spec.TC2CTransfer)
	}
	if spec.TFlush != 100 || spec.TMemFetch != 100 {
		t.Errorf("TFlush/TMemFetch = %d/%d, want 100/100", spec.TFlush, spec.TMemFetch)
	}
}

func TestNewSystemSpecRejectsBadGeometry(t *testing.T) {
	if _, err := NewSystemSpec(MESI, 4, 4, 32, 100, 2, 100, 2); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for non-dividing cache_size, got %v", err)
	}
	if _, err := NewSystemSpec(MESI, 0, 4, 32, 4096, 2, 100, 2); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for zero word_size, got %v", err)
	}
}

func TestAddrSetIndexAndTag(t *testing.T) {
	spec, _ := NewSystemSpec(MESI, 4, 4, 32, 4096, 2, 100, 2)
	a := Addr(65) // num_sets = 64
	if got := a.SetIndex(spec); got != 1 {
		t.Errorf("SetIndex = %d, want 1", got)
	}
	if got := a.Tag(spec); got != 1 {
		t.Errorf("Tag = %d, want 1", got)
	}
}

func TestParseProtocol(t *testing.T) {
	if p, err := ParseProtocol("MESI"); err != nil || p != MESI {
		t.Errorf("ParseProtocol(MESI) = %v, %v", p, err)
	}
	if p, err := ParseProtocol("Dragon"); err != nil || p != Dragon {
		t.Errorf("ParseProtocol(Dragon) = %v, %v", p, err)
	}
	if _, err := ParseProtocol("mesi"); !errors.Is(err, ErrUnknownProtocol) {
		t.Errorf("expected case-sensitive rejection, got %v", err)
	}
}

func TestInstrConstructors(t *testing.T) {
	if r := Read(5); r.Kind != InstrRead || r.Addr != 5 {
		t.Errorf("Read(5) = %+v", r)
	}
	if w := Write(7); w.Kind != InstrWrite || w.Addr != 7 {
		t.Errorf("Write(7) = %+v", w)
	}
	if o := Other(3); o.Kind != InstrOther || o.N != 3 {
		t.Errorf("Other(3) = %+v", o)
	}
}
