// Package cachesim is the public API for a cycle-accurate simulator of
// snoop-based cache coherence on a shared-bus multiprocessor. It builds a
// SystemSpec, drives per-core instruction traces through the coherence
// protocol (MESI or Dragon), and reports per-core and per-cache counters.
//
// Example:
//
//	spec, _ := cachesim.NewSystemSpec(cachesim.MESI, 4, 4, 32, 4096, 2, 100, 2)
//	report, err := cachesim.Run(context.Background(), spec, traces, nil)
package cachesim

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehrlich-b/cachesim/internal/driver"
	"github.com/ehrlich-b/cachesim/internal/model"
)

// Protocol, SystemSpec, Addr, and Instr are the domain types shared by every
// internal component; they live in internal/model so that internal/driver
// can depend on them without importing this package.
type (
	Protocol   = model.Protocol
	SystemSpec = model.SystemSpec
	Addr       = model.Addr
	InstrKind  = model.InstrKind
	Instr      = model.Instr
)

const (
	MESI   = model.MESI
	Dragon = model.Dragon

	InstrRead  = model.InstrRead
	InstrWrite = model.InstrWrite
	InstrOther = model.InstrOther
)

var (
	Read  = model.Read
	Write = model.Write
	Other = model.Other
)

// ParseProtocol parses a protocol name, case-sensitive per spec.md §6.
func ParseProtocol(name string) (Protocol, error) {
	p, err := model.ParseProtocol(name)
	if err != nil {
		return 0, NewError("PARSE_PROTOCOL", ErrCodeUnknownProtocol, err.Error())
	}
	return p, nil
}

// NewSystemSpec validates its inputs and builds a SystemSpec with every
// derived latency and geometry field populated.
func NewSystemSpec(protocol Protocol, wordSize, addressSize, blockSize, cacheSize, cacheAssoc uint32, memLat, busWordTfLat uint64) (SystemSpec, error) {
	spec, err := model.NewSystemSpec(protocol, wordSize, addressSize, blockSize, cacheSize, cacheAssoc, memLat, busWordTfLat)
	if err != nil {
		if errors.Is(err, model.ErrInvalidParameter) {
			return SystemSpec{}, NewError("NEW_SYSTEM_SPEC", ErrCodeInvalidParameter, err.Error())
		}
		return SystemSpec{}, WrapError("NEW_SYSTEM_SPEC", err)
	}
	return spec, nil
}

// DefaultSystemSpec returns the built-in configuration used by the CLI when
// invoked with no arguments (spec.md §6), under the given protocol.
func DefaultSystemSpec(protocol Protocol) SystemSpec {
	spec, err := NewSystemSpec(protocol,
		DefaultWordSize, DefaultAddressSize, DefaultBlockSize,
		DefaultCacheSize, DefaultCacheAssoc,
		DefaultMemLat, DefaultBusWordTfLat)
	if err != nil {
		// The built-in defaults are fixed constants known to be valid; a
		// failure here is a programming error in this package.
		panic(err)
	}
	return spec
}

// Run drives a complete simulation: one cache controller and one processor
// per entry in traces, sharing the given SystemSpec and a single bus. It
// returns once every processor has drained its trace and no messages remain
// in flight (spec.md §3 Lifecycle, §4.5). obs may be nil, in which case a
// NoOpObserver is used.
func Run(ctx context.Context, spec SystemSpec, traces [][]Instr, obs Observer) (Report, error) {
	if len(traces) == 0 {
		return Report{}, NewError("RUN", ErrCodeInvalidParameter, "at least one core trace is required")
	}
	if obs == nil {
		obs = NoOpObserver{}
	}

	rep, err := driver.Run(ctx, spec, traces, observerAdapter{obs})
	if err != nil {
		return Report{}, fmt.Errorf("cachesim: %w", err)
	}

	report := Report{TotalCycles: rep.TotalCycles}
	for _, c := range rep.Cores {
		report.Cores = append(report.Cores, CoreReport{
			ID: c.ID, CompletionCycle: c.CompletionCycle,
			Loads: c.Loads, Stores: c.Stores, WaitCycles: c.WaitCycles,
		})
	}
	for _, c := range rep.Caches {
		report.Caches = append(report.Caches, CacheReport{
			ID: c.ID, MissRate: c.MissRate, PrivateAccessRate: c.PrivateAccessRate,
			Invalidations: c.Invalidations, IssuedBusDataBytes: c.IssuedBusDataBytes,
		})
	}
	return report, nil
}

// observerAdapter lets internal/driver depend only on its own minimal
// observer interface while callers of this package implement Observer.
type observerAdapter struct{ obs Observer }

func (a observerAdapter) ObserveCacheAccess(cacheID int, hit, private bool) {
	a.obs.ObserveCacheAccess(cacheID, hit, private)
}
func (a observerAdapter) ObserveInvalidation(cacheID int) { a.obs.ObserveInvalidation(cacheID) }
func (a observerAdapter) ObserveBusBytes(cacheID int, bytes uint64) {
	a.obs.ObserveBusBytes(cacheID, bytes)
}
func (a observerAdapter) ObserveCoreDone(coreID int, completionCycle uint64) {
	a.obs.ObserveCoreDone(coreID, completionCycle)
}
