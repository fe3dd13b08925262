// Package bus implements the shared-bus arbiter of spec.md §4.2: a single
// resource serialising broadcast signals and exclusive locks, with signal
// traffic prioritised over lock grants.
package bus

import (
	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/proto"
)

type state int

const (
	stateUnlocked state = iota
	stateBusy
	stateLocked
	stateFreeNext
)

// Violator reports a fatal invariant violation (spec.md §4.2 Failure
// semantics). Set by the driver.
type Violator func(op string, cycle int64, msg string)

// Bus is the shared-bus arbiter. The zero value is not usable; use New.
type Bus struct {
	numCaches int
	tC2CMsg   uint64
	scheduler proto.Scheduler
	onViolate Violator

	state     state
	lockOwner int

	signalQueue []pendingSignalEntry
	lockQueue   []int
}

type pendingSignalEntry struct {
	cacheID int
	signal  proto.EnqueueSignal
}

// New creates an idle bus serving numCaches caches.
func New(numCaches int, tC2CMsg uint64, scheduler proto.Scheduler, onViolate Violator) *Bus {
	return &Bus{numCaches: numCaches, tC2CMsg: tC2CMsg, scheduler: scheduler, onViolate: onViolate}
}

// Receive handles a message addressed to the bus.
func (b *Bus) Receive(body any) {
	switch m := body.(type) {
	case proto.AcquireLock:
		b.lockQueue = append(b.lockQueue, m.CacheID)
	case proto.EnqueueSignal:
		// The current lock owner may initiate further bus traffic without
		// contending for it (spec.md §4.2: "while owned, only the owner may
		// initiate further traffic on it"): its signal broadcasts
		// immediately rather than waiting for Unlocked. A signal from
		// anyone else (the MESI no-lock fast path) queues normally and
		// takes priority over lock grants once the bus frees up.
		if b.state == stateLocked && b.lockOwner == m.CacheID {
			b.broadcast(m.CacheID, m.Signal)
			return
		}
		b.signalQueue = append(b.signalQueue, pendingSignalEntry{cacheID: m.CacheID, signal: m})
	case proto.ReleaseLock:
		if b.state != stateLocked || b.lockOwner != m.CacheID {
			b.violate("bus received a lock release from a non-owner")
			return
		}
		b.state = stateFreeNext
	case proto.SignalPropagated:
		if b.state != stateBusy {
			b.violate("bus received a self signal-propagated notice while not Busy")
			return
		}
		b.state = stateFreeNext
	default:
		b.violate("bus received an unrecognised message type")
	}
}

// ResolveIfUnlocked performs the one-time-per-opportunity transition
// described in spec.md §4.2: while Unlocked, start the oldest queued
// signal, else the oldest queued lock request. It returns whether a
// transition occurred, so the driver can keep draining until the cycle
// settles.
func (b *Bus) ResolveIfUnlocked() bool {
	if b.state != stateUnlocked {
		return false
	}
	if len(b.signalQueue) > 0 {
		next := b.signalQueue[0]
		b.signalQueue = b.signalQueue[1:]
		b.broadcast(next.cacheID, next.signal.Signal)
		b.state = stateBusy
		b.scheduler.Schedule(proto.Target{Kind: proto.TargetBus}, proto.SignalPropagated{}, b.propagationDelay())
		return true
	}
	if len(b.lockQueue) > 0 {
		id := b.lockQueue[0]
		b.lockQueue = b.lockQueue[1:]
		b.scheduler.Schedule(proto.Target{Kind: proto.TargetCache, ID: id}, proto.BusLocked{}, 0)
		b.state = stateLocked
		b.lockOwner = id
		return true
	}
	return false
}

// broadcast schedules a Snoop delivery to every cache but the issuer.
func (b *Bus) broadcast(issuerID int, signal coherence.BusSignal) {
	delay := b.propagationDelay()
	for id := 0; id < b.numCaches; id++ {
		if id == issuerID {
			continue
		}
		b.scheduler.Schedule(proto.Target{Kind: proto.TargetCache, ID: id}, proto.Snoop{Signal: signal, IssuerID: issuerID}, delay)
	}
}

func (b *Bus) propagationDelay() uint64 {
	if b.tC2CMsg > 0 {
		return b.tC2CMsg - 1
	}
	return 0
}

// PostTick applies the FreeNext -> Unlocked transition (spec.md §4.2).
func (b *Bus) PostTick() {
	if b.state == stateFreeNext {
		b.state = stateUnlocked
	}
}

// Idle reports whether the bus is Unlocked with empty queues, used by the
// driver's termination check.
func (b *Bus) Idle() bool {
	return b.state == stateUnlocked && len(b.signalQueue) == 0 && len(b.lockQueue) == 0
}

func (b *Bus) violate(msg string) {
	if b.onViolate != nil {
		b.onViolate("Bus", -1, msg)
		return
	}
	panic(msg)
}
