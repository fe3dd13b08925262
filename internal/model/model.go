// Package model holds the core domain types shared by every internal
// package: SystemSpec, Addr, and Instr. It has no dependency on the public
// cachesim package so that internal/driver (and everything it composes) can
// import it without creating an import cycle back through cachesim.go.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is wrapped by every SystemSpec construction error.
var ErrInvalidParameter = errors.New("invalid configuration parameter")

// ErrUnknownProtocol is wrapped by ParseProtocol on an unrecognised name.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol selects the coherence protocol driving every cache controller in
// a run.
type Protocol int

const (
	MESI Protocol = iota
	Dragon
)

func (p Protocol) String() string {
	switch p {
	case MESI:
		return "MESI"
	case Dragon:
		return "Dragon"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// ParseProtocol parses a protocol name, case-sensitive per spec.
func ParseProtocol(name string) (Protocol, error) {
	switch name {
	case "MESI":
		return MESI, nil
	case "Dragon":
		return Dragon, nil
	default:
		return 0, fmt.Errorf("%w: %q (want MESI or Dragon)", ErrUnknownProtocol, name)
	}
}

// SystemSpec is the immutable machine configuration constructed once at the
// start of a run. Derived latencies are computed once by NewSystemSpec.
type SystemSpec struct {
	Protocol Protocol

	WordSize    uint32 // bytes
	AddressSize uint32 // bytes
	BlockSize   uint32 // bytes
	CacheSize   uint32 // bytes
	CacheAssoc  uint32 // blocks

	MemLat       uint64 // cycles
	BusWordTfLat uint64 // cycles

	NumSets      uint32
	TC2CMsg      uint64 // signal propagation on the bus
	TC2CTransfer uint64 // cache-to-cache block transfer
	TFlush       uint64 // dirty write-back (= MemLat)
	TMemFetch    uint64 // memory read (= MemLat)
}

// NewSystemSpec validates its inputs and builds a SystemSpec with every
// derived latency and geometry field populated.
func NewSystemSpec(protocol Protocol, wordSize, addressSize, blockSize, cacheSize, cacheAssoc uint32, memLat, busWordTfLat uint64) (SystemSpec, error) {
	if wordSize == 0 {
		return SystemSpec{}, fmt.Errorf("%w: word_size must be > 0", ErrInvalidParameter)
	}
	if blockSize == 0 || cacheAssoc == 0 || cacheSize == 0 {
		return SystemSpec{}, fmt.Errorf("%w: block_size, cache_assoc, and cache_size must all be > 0", ErrInvalidParameter)
	}
	setsDenominator := blockSize * cacheAssoc
	if cacheSize%setsDenominator != 0 {
		return SystemSpec{}, fmt.Errorf("%w: cache_size (%d) must be a multiple of block_size*cache_assoc (%d)",
			ErrInvalidParameter, cacheSize, setsDenominator)
	}

	numSets := cacheSize / setsDenominator

	return SystemSpec{
		Protocol:     protocol,
		WordSize:     wordSize,
		AddressSize:  addressSize,
		BlockSize:    blockSize,
		CacheSize:    cacheSize,
		CacheAssoc:   cacheAssoc,
		MemLat:       memLat,
		BusWordTfLat: busWordTfLat,
		NumSets:      numSets,
		TC2CMsg:      busWordTfLat * uint64(addressSize) / uint64(wordSize),
		TC2CTransfer: busWordTfLat * uint64(blockSize) / uint64(wordSize),
		TFlush:       memLat,
		TMemFetch:    memLat,
	}, nil
}

// Addr is an opaque 32-bit memory address; its data payload is never
// modelled.
type Addr uint32

// SetIndex returns the set this address maps to under spec.
func (a Addr) SetIndex(spec SystemSpec) uint32 { return uint32(a) % spec.NumSets }

// Tag returns the tag bits of this address under spec.
func (a Addr) Tag(spec SystemSpec) uint32 { return uint32(a) / spec.NumSets }

// InstrKind tags the variant of an Instr.
type InstrKind int

const (
	InstrRead InstrKind = iota
	InstrWrite
	InstrOther
)

// Instr is a single trace entry: Read(Addr), Write(Addr), or Other(n) (a
// compute burst of n cycles with no memory effect).
type Instr struct {
	Kind InstrKind
	Addr Addr   // valid for InstrRead/InstrWrite
	N    uint32 // valid for InstrOther: compute burst length in cycles
}

func Read(addr Addr) Instr  { return Instr{Kind: InstrRead, Addr: addr} }
func Write(addr Addr) Instr { return Instr{Kind: InstrWrite, Addr: addr} }
func Other(n uint32) Instr  { return Instr{Kind: InstrOther, N: n} }

func (i Instr) String() string {
	switch i.Kind {
	case InstrRead:
		return fmt.Sprintf("Read(0x%x)", uint32(i.Addr))
	case InstrWrite:
		return fmt.Sprintf("Write(0x%x)", uint32(i.Addr))
	case InstrOther:
		return fmt.Sprintf("Other(%d)", i.N)
	default:
		return "Instr(?)"
	}
}
