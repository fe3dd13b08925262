package cachesim

import (
	"fmt"
	"io"
)

// CacheCounters tracks the per-cache statistics named in spec.md §4.3.6.
// The simulation is single-threaded cooperative (spec.md §5), so these are
// plain counters rather than atomics.
type CacheCounters struct {
	Hits               uint64
	Misses             uint64
	Invalidations      uint64
	IssuedBusDataBytes uint64
	PrivateAccesses    uint64
	SharedAccesses     uint64
}

// MissRate returns misses/(misses+hits), or 0 if there have been no accesses.
func (c CacheCounters) MissRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Misses) / float64(total)
}

// PrivateAccessRate returns the fraction of classified accesses that were
// private (Modified/Exclusive), per spec.md §4.3.6.
func (c CacheCounters) PrivateAccessRate() float64 {
	total := c.PrivateAccesses + c.SharedAccesses
	if total == 0 {
		return 0
	}
	return float64(c.PrivateAccesses) / float64(total)
}

// CoreCounters tracks the per-processor statistics named in spec.md §4.4.
type CoreCounters struct {
	Loads           uint64
	Stores          uint64
	WaitCycles      uint64
	CompletionCycle uint64
	Done            bool
}

// Observer allows pluggable collection of simulation events, independent of
// the counters embedded in each cache/processor. Implementations must be
// safe to call synchronously from the driver's single-threaded tick loop;
// no concurrent calls occur, so implementations need not be goroutine-safe
// on their own account, but must not block.
type Observer interface {
	// ObserveCacheAccess is called once per processor reference resolved by
	// a cache, after the access has been classified.
	ObserveCacheAccess(cacheID int, hit bool, private bool)

	// ObserveInvalidation is called each time a cache evicts or invalidates
	// a resident block, whether due to LRU replacement or a snooped signal.
	ObserveInvalidation(cacheID int)

	// ObserveBusBytes is called each time a cache issues bus traffic that
	// carries data (BusRd, BusRdX, BusUpd, or a write-back).
	ObserveBusBytes(cacheID int, bytes uint64)

	// ObserveCoreDone is called when a processor drains its instruction
	// stream and transitions to Done.
	ObserveCoreDone(coreID int, completionCycle uint64)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCacheAccess(int, bool, bool) {}
func (NoOpObserver) ObserveInvalidation(int)            {}
func (NoOpObserver) ObserveBusBytes(int, uint64)        {}
func (NoOpObserver) ObserveCoreDone(int, uint64)        {}

// Compile-time interface check.
var _ Observer = NoOpObserver{}

// Report is the structured end-of-run summary assembled by the simulation
// driver, per spec.md §6 (Outputs). It is kept distinct from the live
// Observer/counters so a caller can consume results without scraping text.
type Report struct {
	TotalCycles uint64
	Cores       []CoreReport
	Caches      []CacheReport
}

// CoreReport is the per-core slice of Report.
type CoreReport struct {
	ID              int
	CompletionCycle uint64
	Loads           uint64
	Stores          uint64
	WaitCycles      uint64
}

// CacheReport is the per-cache slice of Report.
type CacheReport struct {
	ID                 int
	MissRate           float64
	PrivateAccessRate  float64
	Invalidations      uint64
	IssuedBusDataBytes uint64
}

// Print writes a human-readable rendering of the report, in the shape
// described by spec.md §6.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "total cycles: %d\n", r.TotalCycles)
	for _, c := range r.Cores {
		fmt.Fprintf(w, "core %d: completion=%d loads=%d stores=%d wait_cycles=%d\n",
			c.ID, c.CompletionCycle, c.Loads, c.Stores, c.WaitCycles)
	}
	for _, c := range r.Caches {
		fmt.Fprintf(w, "cache %d: miss_rate=%.4f private_access_rate=%.4f invalidations=%d issued_bus_data_bytes=%d\n",
			c.ID, c.MissRate, c.PrivateAccessRate, c.Invalidations, c.IssuedBusDataBytes)
	}
}
