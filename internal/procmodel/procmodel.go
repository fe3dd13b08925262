// Package procmodel implements the per-core processor model of spec.md
// §4.4: it drains a finite instruction stream, issuing Read/Write requests
// to its paired cache controller and counting wait cycles.
package procmodel

import (
	"github.com/ehrlich-b/cachesim/internal/cachectrl"
	"github.com/ehrlich-b/cachesim/internal/model"
)

type state int

const (
	stIdle state = iota
	stExecutingOther
	stWaitingForCache
	stRequestResolved
	stDone
)

// CacheLink is the minimal surface a Processor needs from its paired cache
// controller (spec.md §9: the driver wires components together through
// stable identifiers; this interface narrows that surface to one method).
type CacheLink interface {
	SubmitRequest(kind cachectrl.ReqKind, addr model.Addr) bool
}

// Counters tracks the per-core statistics of spec.md §4.4.
type Counters struct {
	Loads           uint64
	Stores          uint64
	WaitCycles      uint64
	CompletionCycle uint64
}

// Observer receives processor-level completion events.
type Observer interface {
	ObserveCoreDone(coreID int, completionCycle uint64)
}

// Processor is the processor model for one core. The zero value is not
// usable; use New.
type Processor struct {
	id     int
	cache  CacheLink
	instrs []model.Instr
	pc     int

	state          state
	remainingBurst uint32

	obs Observer

	counters Counters
	done     bool
}

// New creates a processor for core id draining instrs against cache.
func New(id int, instrs []model.Instr, cache CacheLink, obs Observer) *Processor {
	p := &Processor{id: id, cache: cache, instrs: instrs, obs: obs}
	if len(instrs) == 0 {
		p.state = stDone
		p.done = true
	}
	return p
}

// Done reports whether the processor has drained its instruction stream
// and has no in-flight request.
func (p *Processor) Done() bool { return p.done }

// Counters returns a snapshot of this processor's statistics.
func (p *Processor) Counters() Counters { return p.counters }

// Tick advances the processor state machine by one cycle (spec.md §4.4).
func (p *Processor) Tick(now uint64) {
	if p.done {
		return
	}
	switch p.state {
	case stIdle:
		p.issueNext()
	case stExecutingOther:
		if p.remainingBurst == 0 {
			p.state = stRequestResolved
			return
		}
		p.remainingBurst--
		if p.remainingBurst == 0 {
			p.state = stRequestResolved
		}
	case stWaitingForCache:
		p.counters.WaitCycles++
	}
}

// NotifyResolved is called by the driver once per cycle a paired cache
// controller reports a resolved request (spec.md §4.5: the driver mediates
// all cross-component communication).
func (p *Processor) NotifyResolved() {
	if p.state != stWaitingForCache {
		return
	}
	p.state = stRequestResolved
}

// PostTick applies the proceed-to-next-instruction transitions (spec.md
// §4.4). now is the 0-indexed cycle just processed; a completion this cycle
// is recorded as now+1 cycles elapsed, so CompletionCycle/TotalCycles count
// cycles consumed rather than a raw cycle index (spec.md §8 property 7's
// conservation sum must land on the actual number of cycles the core ran).
func (p *Processor) PostTick(now uint64) {
	if p.state != stRequestResolved {
		return
	}
	if p.pc >= len(p.instrs) {
		p.state = stDone
		p.done = true
		p.counters.CompletionCycle = now + 1
		if p.obs != nil {
			p.obs.ObserveCoreDone(p.id, now+1)
		}
		return
	}
	p.state = stIdle
}

func (p *Processor) issueNext() {
	if p.pc >= len(p.instrs) {
		p.state = stRequestResolved
		return
	}
	instr := p.instrs[p.pc]
	p.pc++

	switch instr.Kind {
	case model.InstrRead:
		p.counters.Loads++
		if !p.cache.SubmitRequest(cachectrl.ReqRead, instr.Addr) {
			// The cache's single request slot is occupied; this cannot
			// happen since the processor blocks until resolution, but
			// defend against a future change relaxing that invariant.
			p.pc--
			p.counters.Loads--
			return
		}
		p.state = stWaitingForCache
	case model.InstrWrite:
		p.counters.Stores++
		if !p.cache.SubmitRequest(cachectrl.ReqWrite, instr.Addr) {
			p.pc--
			p.counters.Stores--
			return
		}
		p.state = stWaitingForCache
	case model.InstrOther:
		if instr.N <= 1 {
			p.state = stRequestResolved
			return
		}
		p.remainingBurst = instr.N - 1
		p.state = stExecutingOther
	}
}
