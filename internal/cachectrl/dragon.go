package cachectrl

import (
	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/model"
)

// beginProcRequestDragon dispatches an Idle-state processor request under
// Dragon (spec.md §4.3.3). Unlike MESI there is no no-bus fast path: every
// miss and every shared-state write consults peers.
func (c *Controller) beginProcRequestDragon(req *procReq) {
	set, blk, ok := c.lookup(req.addr)
	if !ok {
		req.wasState = coherence.Invalid
		req.needsAsking = true
		c.enterWaitingForBusProc(req)
		return
	}

	tag := req.addr.Tag(c.spec)
	switch blk.State {
	case coherence.SharedClean:
		if req.kind == ReqRead {
			set.Touch(tag)
			c.classifyAccess(true, false)
			c.resolveProcNow()
			return
		}
		req.wasState = coherence.SharedClean
		req.needsAsking = true
		c.enterWaitingForBusProc(req)
	case coherence.SharedModified:
		if req.kind == ReqRead {
			set.Touch(tag)
			c.classifyAccess(true, false)
			c.resolveProcNow()
			return
		}
		req.wasState = coherence.SharedModified
		req.needsAsking = true
		c.enterWaitingForBusProc(req)
	case coherence.Exclusive:
		set.Touch(tag)
		if req.kind == ReqWrite {
			set.SetState(tag, coherence.Modified) // silent, no bus traffic
		}
		c.classifyAccess(true, true)
		c.resolveProcNow()
	case coherence.Modified:
		set.Touch(tag)
		c.classifyAccess(true, true)
		c.resolveProcNow()
	default:
		c.violate("Dragon block in impossible state for a processor request")
	}
}

// dragonOutcome decides the bus traffic, resulting state, and latency for
// a bus-granted Dragon processor request (spec.md §4.3.3).
func (c *Controller) dragonOutcome(req *procReq) outcome {
	switch req.wasState {
	case coherence.Invalid:
		if req.kind == ReqRead {
			if req.peersPresent {
				return outcome{
					signals: []coherence.BusSignal{sig(coherence.BusRd, req.addr)},
					state:   coherence.SharedClean, latency: c.spec.TC2CTransfer, private: false,
				}
			}
			return outcome{
				signals: []coherence.BusSignal{sig(coherence.BusRd, req.addr)},
				state:   coherence.Exclusive, latency: c.spec.TMemFetch, private: true,
			}
		}
		if req.peersPresent {
			return outcome{
				signals: []coherence.BusSignal{sig(coherence.BusRd, req.addr), sig(coherence.BusUpd, req.addr)},
				state:   coherence.SharedModified, latency: c.spec.TC2CTransfer, private: false,
			}
		}
		return outcome{
			signals: []coherence.BusSignal{sig(coherence.BusRd, req.addr)},
			state:   coherence.Modified, latency: c.spec.TMemFetch, private: true,
		}
	case coherence.SharedClean, coherence.SharedModified:
		// Write hit needing an update broadcast; data is already resident
		// so only the signal round-trip is charged.
		if req.peersPresent {
			return outcome{
				signals: []coherence.BusSignal{sig(coherence.BusUpd, req.addr)},
				state:   coherence.SharedModified, latency: c.spec.TC2CMsg, private: false,
			}
		}
		return outcome{
			signals: []coherence.BusSignal{sig(coherence.BusUpd, req.addr)},
			state:   coherence.Modified, latency: c.spec.TC2CMsg, private: true,
		}
	default:
		c.violate("dragonOutcome reached from an unexpected prior state")
		return outcome{}
	}
}

// beginSnoopDragon dispatches an Idle-state snoop under Dragon
// (spec.md §4.3.4, closing the supplier gap per §9 Design Notes).
func (c *Controller) beginSnoopDragon(signal coherence.BusSignal) {
	addr := model.Addr(signal.Addr)
	set, blk, ok := c.lookup(addr)
	if !ok {
		return // Invalid: ignore
	}
	switch blk.State {
	case coherence.Exclusive:
		if signal.Kind == coherence.BusRd {
			set.SetState(addr.Tag(c.spec), coherence.SharedClean)
		}
		// BusUpd on Exclusive should not occur: a peer can only issue
		// BusUpd after this cache was already downgraded by its own BusRd.
	case coherence.SharedClean:
		// Already a clean shared copy; BusRd/BusUpd are no-ops here since
		// the requester/updater pays its own transfer cost.
	case coherence.SharedModified:
		switch signal.Kind {
		case coherence.BusRd:
			c.enterWaitingForBusSnoop(signal, coherence.SharedModified)
		case coherence.BusUpd:
			set.SetState(addr.Tag(c.spec), coherence.SharedClean)
		}
	case coherence.Modified:
		switch signal.Kind {
		case coherence.BusRd:
			c.enterWaitingForBusSnoop(signal, coherence.Modified)
		}
		// BusUpd on Modified should not occur: this cache is the sole
		// dirty owner, so no peer could have reached a write-hit path.
	}
}

// dragonSnoopFlushOutcome decides the resulting state and latency for the
// Dragon supplier transfer: any cache holding Modified or SharedModified
// that observes a BusRd acts as supplier, per spec.md §9's closure of the
// source's incomplete path.
func (c *Controller) dragonSnoopFlushOutcome(req snoopReq) outcome {
	switch req.priorState {
	case coherence.Modified:
		return outcome{state: coherence.SharedModified, latency: c.spec.TC2CTransfer}
	case coherence.SharedModified:
		return outcome{state: coherence.SharedModified, latency: c.spec.TC2CTransfer}
	default:
		c.violate("dragonSnoopFlushOutcome reached from an unexpected prior state")
		return outcome{}
	}
}
