// Package proto defines the message vocabulary exchanged between the bus,
// cache controllers, and the driver through the delayed event queue
// (spec.md §4.2, §4.3, §4.5). Tick/post-tick orchestration is driven by
// direct calls from internal/driver; proto messages carry only the traffic
// whose delivery cycle matters: bus grants, snoops, and self-scheduled
// completions.
package proto

import "github.com/ehrlich-b/cachesim/internal/coherence"

// TargetKind tags which flat collection a Target's ID indexes into,
// per spec.md §9 ("stable integer identifiers").
type TargetKind int

const (
	TargetCache TargetKind = iota
	TargetBus
	TargetDriver
)

// Target addresses one component owned by the driver.
type Target struct {
	Kind TargetKind
	ID   int // meaningless for TargetBus/TargetDriver, which are singletons
}

// Scheduler is implemented by the driver; components hold one to schedule
// delayed, cross-component messages without referencing each other
// directly.
type Scheduler interface {
	Schedule(to Target, body any, delay uint64)
}

// AcquireLock is sent cache -> bus to request the exclusive lock.
type AcquireLock struct {
	CacheID int
}

// EnqueueSignal is sent cache -> bus to request a broadcast signal.
type EnqueueSignal struct {
	CacheID int
	Signal  coherence.BusSignal
}

// ReleaseLock is sent cache -> bus by the current owner to free the bus.
type ReleaseLock struct {
	CacheID int
}

// BusLocked is sent bus -> cache, delay 0, as the lock grant notice.
type BusLocked struct{}

// Snoop is sent bus -> cache (every cache but the issuer), delay
// t_c2c_msg-1, carrying a broadcast signal.
type Snoop struct {
	Signal   coherence.BusSignal
	IssuerID int
}

// SignalPropagated is a bus self-message, delay t_c2c_msg-1, marking the
// end of a broadcast and driving Busy -> FreeNext.
type SignalPropagated struct{}

// AskOtherCaches is sent cache -> driver, delay t_c2c_msg-1, to resolve
// peer presence for address Addr (spec.md §4.5).
type AskOtherCaches struct {
	CacheID int
	Addr    uint32
	ReqID   uint64
}

// CachesChecked is sent driver -> cache, delay 0, in reply to
// AskOtherCaches.
type CachesChecked struct {
	ReqID   uint64
	Present bool
}

// CompleteProcRequest is a cache self-message marking the end of
// ResolvingProc (spec.md §4.3.1).
type CompleteProcRequest struct {
	ReqID uint64
}

// CompleteSnoopFlush is a cache self-message marking the end of
// ResolvingBus (a snoop-driven flush).
type CompleteSnoopFlush struct {
	ReqID uint64
}
