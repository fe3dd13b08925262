package cachectrl

import (
	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/model"
)

// beginProcRequestMESI dispatches an Idle-state processor request under
// MESI (spec.md §4.3.2).
func (c *Controller) beginProcRequestMESI(req *procReq) {
	set, blk, ok := c.lookup(req.addr)
	if !ok {
		req.wasState = coherence.Invalid
		if req.kind == ReqWrite && !set.Full() {
			// Fast path (spec.md §9 Open Questions #3): a write into a free
			// Invalid way completes without first consulting peers. The
			// BusRdX is still broadcast so any stale peer copy is
			// invalidated, but the requester does not wait on it.
			c.installEvicting(req.addr, coherence.Modified)
			c.chargeBusBytes()
			c.sched.Schedule(busTarget(), enqueueSignal(c.id, coherence.BusRdX, req.addr), 0)
			c.classifyAccess(false, true)
			c.resolveProcNow()
			return
		}
		req.needsAsking = true
		c.enterWaitingForBusProc(req)
		return
	}

	tag := req.addr.Tag(c.spec)
	switch blk.State {
	case coherence.Shared:
		if req.kind == ReqRead {
			set.Touch(tag)
			c.classifyAccess(true, false)
			c.resolveProcNow()
			return
		}
		req.wasState = coherence.Shared
		req.needsAsking = true
		c.enterWaitingForBusProc(req)
	case coherence.Exclusive:
		set.Touch(tag)
		if req.kind == ReqWrite {
			set.SetState(tag, coherence.Modified)
		}
		c.classifyAccess(true, true)
		c.resolveProcNow()
	case coherence.Modified:
		set.Touch(tag)
		c.classifyAccess(true, true)
		c.resolveProcNow()
	default:
		c.violate("MESI block in impossible state for a processor request")
	}
}

// mesiOutcome decides the bus traffic, resulting state, and latency for a
// bus-granted MESI processor request (spec.md §4.3.2).
func (c *Controller) mesiOutcome(req *procReq) outcome {
	switch req.wasState {
	case coherence.Invalid:
		if req.kind == ReqRead {
			if req.peersPresent {
				return outcome{
					signals: []coherence.BusSignal{sig(coherence.BusRd, req.addr)},
					state:   coherence.Shared, latency: c.spec.TC2CTransfer, private: false,
				}
			}
			return outcome{
				signals: []coherence.BusSignal{sig(coherence.BusRdX, req.addr)},
				state:   coherence.Exclusive, latency: c.spec.TMemFetch, private: true,
			}
		}
		// Write miss that required eviction (the free-way fast path never
		// reaches here).
		return outcome{
			signals: []coherence.BusSignal{sig(coherence.BusRdX, req.addr)},
			state:   coherence.Modified, latency: c.spec.TFlush, private: true,
		}
	case coherence.Shared:
		// Write upgrade: broadcasts BusRdX to invalidate peers; the data
		// is already resident so only the signal round-trip is charged.
		return outcome{
			signals: []coherence.BusSignal{sig(coherence.BusRdX, req.addr)},
			state:   coherence.Modified, latency: c.spec.TC2CMsg, private: true,
		}
	default:
		c.violate("mesiOutcome reached from an unexpected prior state")
		return outcome{}
	}
}

// beginSnoopMESI dispatches an Idle-state snoop under MESI (spec.md §4.3.4).
func (c *Controller) beginSnoopMESI(signal coherence.BusSignal) {
	addr := model.Addr(signal.Addr)
	set, blk, ok := c.lookup(addr)
	if !ok {
		return // Invalid: ignore
	}
	switch blk.State {
	case coherence.Shared:
		if signal.Kind == coherence.BusRdX {
			set.Remove(addr.Tag(c.spec))
			c.recordInvalidation()
		}
	case coherence.Exclusive:
		switch signal.Kind {
		case coherence.BusRd:
			set.SetState(addr.Tag(c.spec), coherence.Shared)
		case coherence.BusRdX:
			c.enterWaitingForBusSnoop(signal, coherence.Exclusive)
		}
	case coherence.Modified:
		switch signal.Kind {
		case coherence.BusRd, coherence.BusRdX:
			c.enterWaitingForBusSnoop(signal, coherence.Modified)
		}
	}
}

// mesiSnoopFlushOutcome decides the resulting state and latency for a
// MESI snoop-driven flush (spec.md §4.3.4).
func (c *Controller) mesiSnoopFlushOutcome(req snoopReq) outcome {
	switch req.priorState {
	case coherence.Exclusive: // only BusRdX reaches here
		return outcome{state: coherence.Invalid, latency: c.spec.TFlush}
	case coherence.Modified:
		if req.sig.Kind == coherence.BusRd {
			return outcome{state: coherence.Shared, latency: c.spec.TFlush}
		}
		return outcome{state: coherence.Invalid, latency: c.spec.TFlush}
	default:
		c.violate("mesiSnoopFlushOutcome reached from an unexpected prior state")
		return outcome{}
	}
}

func sig(kind coherence.BusSignalKind, addr model.Addr) coherence.BusSignal {
	return coherence.BusSignal{Kind: kind, Addr: uint32(addr)}
}
