// Package cachectrl implements the per-core cache controller of spec.md
// §4.3: the protocol state machine, LRU replacement, and bus traffic
// issuance, for both MESI and Dragon. This is the most intricate component
// in the simulator (spec.md §2 budgets it ~45% of the source).
package cachectrl

import (
	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/model"
	"github.com/ehrlich-b/cachesim/internal/proto"
)

// ctrlState is the controller's in-flight-request state, distinct from the
// per-block coherence state (spec.md §4.3.1).
type ctrlState int

const (
	stIdle ctrlState = iota
	stWaitingForBusProc
	stAskingCaches
	stResolvingProc
	stProcResolvedNext
	stWaitingForBusSnoop
	stResolvingBus
	stBusResolvedNext
)

// ReqKind tags a pending processor request.
type ReqKind int

const (
	ReqRead ReqKind = iota
	ReqWrite
)

type procReq struct {
	kind     ReqKind
	addr     model.Addr
	wasState coherence.BlockState // state prior to the request; Invalid if a miss

	// needsAsking is set when the request is sent down the bus path;
	// peersPresent is filled in once CachesChecked arrives. The MESI
	// free-way fast path sets neither.
	needsAsking  bool
	peersPresent bool
}

// snoopReq is an in-flight snoop-driven flush: the triggering signal and
// the block's coherence state at the moment the snoop was accepted.
type snoopReq struct {
	sig        coherence.BusSignal
	priorState coherence.BlockState
}

// Counters tracks the per-cache statistics of spec.md §4.3.6.
type Counters struct {
	Hits               uint64
	Misses             uint64
	Invalidations      uint64
	IssuedBusDataBytes uint64
	PrivateAccesses    uint64
	SharedAccesses     uint64
}

// Observer receives cache-level events for external metrics collection.
type Observer interface {
	ObserveCacheAccess(cacheID int, hit bool, private bool)
	ObserveInvalidation(cacheID int)
	ObserveBusBytes(cacheID int, bytes uint64)
}

// Violator reports a fatal protocol-state-machine invariant violation
// (spec.md §7: "protocol reached an impossible (controller_state, message)
// pair").
type Violator func(op string, cycle int64, msg string)

// Controller is the cache controller for one core. The zero value is not
// usable; use New.
type Controller struct {
	id        int
	spec      model.SystemSpec
	sets      []*coherence.CacheSet
	sched     proto.Scheduler
	obs       Observer
	onViolate Violator

	state ctrlState

	pendingProc *procReq
	snoopQueue  []coherence.BusSignal

	active      *procReq
	activeSnoop *snoopReq

	reqSeq uint64

	resolvedThisCycle bool

	counters Counters
}

// New creates a cache controller for core id with the given system spec,
// scheduler, and observer.
func New(id int, spec model.SystemSpec, sched proto.Scheduler, obs Observer, onViolate Violator) *Controller {
	sets := make([]*coherence.CacheSet, spec.NumSets)
	for i := range sets {
		sets[i] = coherence.NewCacheSet(int(spec.CacheAssoc))
	}
	return &Controller{id: id, spec: spec, sets: sets, sched: sched, obs: obs, onViolate: onViolate}
}

// Counters returns a snapshot of this cache's statistics.
func (c *Controller) Counters() Counters { return c.counters }

// StateOf reports the coherence state of addr in this cache (Invalid if
// absent), used by the driver's AskOtherCaches (spec.md §4.5).
func (c *Controller) StateOf(addr model.Addr) coherence.BlockState {
	set := c.sets[addr.SetIndex(c.spec)]
	b, ok := set.Lookup(addr.Tag(c.spec))
	if !ok {
		return coherence.Invalid
	}
	return b.State
}

// Idle reports whether the controller has no in-flight work, used by the
// driver's termination check.
func (c *Controller) Idle() bool {
	return c.state == stIdle && c.pendingProc == nil && len(c.snoopQueue) == 0
}

// SubmitRequest is called by the paired processor model when it issues a
// Read/Write. It returns false if the single request slot is occupied
// (callers must not call again until PollResolution consumes the prior
// request).
func (c *Controller) SubmitRequest(kind ReqKind, addr model.Addr) bool {
	if c.pendingProc != nil {
		return false
	}
	c.pendingProc = &procReq{kind: kind, addr: addr}
	return true
}

// PollResolution reports whether a processor request resolved this cycle,
// consuming the notification exactly once.
func (c *Controller) PollResolution() bool {
	resolved := c.resolvedThisCycle
	c.resolvedThisCycle = false
	return resolved
}

// Tick runs the Idle-state dispatch: snoops take precedence over new
// processor work (spec.md §4.3.1).
func (c *Controller) Tick() {
	if c.state != stIdle {
		return
	}
	if len(c.snoopQueue) > 0 {
		sig := c.snoopQueue[0]
		c.snoopQueue = c.snoopQueue[1:]
		c.beginSnoop(sig)
		return
	}
	if c.pendingProc != nil {
		req := c.pendingProc
		c.pendingProc = nil
		c.beginProcRequest(req)
	}
}

// PostTick applies the ProceedNext -> Idle transitions (spec.md §4.3.1).
func (c *Controller) PostTick() {
	switch c.state {
	case stProcResolvedNext, stBusResolvedNext:
		c.state = stIdle
		c.active = nil
		c.activeSnoop = nil
	}
}

// Receive handles a message addressed to this controller.
func (c *Controller) Receive(body any) {
	switch m := body.(type) {
	case proto.Snoop:
		c.snoopQueue = append(c.snoopQueue, m.Signal)
	case proto.BusLocked:
		c.onBusLocked()
	case proto.CachesChecked:
		c.onCachesChecked(m)
	case proto.CompleteProcRequest:
		c.onCompleteProcRequest(m)
	case proto.CompleteSnoopFlush:
		c.onCompleteSnoopFlush(m)
	default:
		c.violate("controller received an unrecognised message type")
	}
}

func (c *Controller) violate(msg string) {
	if c.onViolate != nil {
		c.onViolate("CacheController", -1, msg)
		return
	}
	panic(msg)
}

// lookup returns the resident block (if any) for addr, along with its set.
func (c *Controller) lookup(addr model.Addr) (*coherence.CacheSet, coherence.Block, bool) {
	set := c.sets[addr.SetIndex(c.spec)]
	b, ok := set.Lookup(addr.Tag(c.spec))
	return set, b, ok
}

// classifyAccess records the hit/miss and private/shared counters for one
// processor access, per spec.md §4.3.6.
func (c *Controller) classifyAccess(hit bool, private bool) {
	if hit {
		c.counters.Hits++
	} else {
		c.counters.Misses++
	}
	if private {
		c.counters.PrivateAccesses++
	} else {
		c.counters.SharedAccesses++
	}
	if c.obs != nil {
		c.obs.ObserveCacheAccess(c.id, hit, private)
	}
}

func (c *Controller) chargeBusBytes() {
	c.counters.IssuedBusDataBytes += uint64(c.spec.BlockSize)
	if c.obs != nil {
		c.obs.ObserveBusBytes(c.id, uint64(c.spec.BlockSize))
	}
}

func (c *Controller) recordInvalidation() {
	c.counters.Invalidations++
	if c.obs != nil {
		c.obs.ObserveInvalidation(c.id)
	}
}

// installEvicting installs block into addr's set, evicting the LRU
// resident if the set is full (spec.md §4.3.5).
func (c *Controller) installEvicting(addr model.Addr, state coherence.BlockState) {
	set := c.sets[addr.SetIndex(c.spec)]
	if set.Full() {
		set.EvictLRU()
		c.recordInvalidation()
	}
	set.Insert(coherence.Block{Tag: addr.Tag(c.spec), State: state})
}

func busTarget() proto.Target { return proto.Target{Kind: proto.TargetBus} }

func enqueueSignal(cacheID int, kind coherence.BusSignalKind, addr model.Addr) proto.EnqueueSignal {
	return proto.EnqueueSignal{CacheID: cacheID, Signal: coherence.BusSignal{Kind: kind, Addr: uint32(addr)}}
}

func (c *Controller) nextReqID() uint64 {
	c.reqSeq++
	return c.reqSeq
}

func (c *Controller) resolveProcNow() {
	c.resolvedThisCycle = true
}

// beginProcRequest dispatches an Idle-state processor request, per
// spec.md §4.3.2 (MESI) / §4.3.3 (Dragon).
func (c *Controller) beginProcRequest(req *procReq) {
	switch c.spec.Protocol {
	case model.MESI:
		c.beginProcRequestMESI(req)
	case model.Dragon:
		c.beginProcRequestDragon(req)
	default:
		c.violate("unknown protocol in beginProcRequest")
	}
}

// beginSnoop dispatches an Idle-state snoop, per spec.md §4.3.4.
func (c *Controller) beginSnoop(sig coherence.BusSignal) {
	switch c.spec.Protocol {
	case model.MESI:
		c.beginSnoopMESI(sig)
	case model.Dragon:
		c.beginSnoopDragon(sig)
	default:
		c.violate("unknown protocol in beginSnoop")
	}
}

// enterWaitingForBusProc requests the bus lock to serve req.
func (c *Controller) enterWaitingForBusProc(req *procReq) {
	c.active = req
	c.state = stWaitingForBusProc
	c.sched.Schedule(proto.Target{Kind: proto.TargetBus}, proto.AcquireLock{CacheID: c.id}, 0)
}

// enterWaitingForBusSnoop requests the bus lock to perform a snoop-driven
// flush.
func (c *Controller) enterWaitingForBusSnoop(sig coherence.BusSignal, priorState coherence.BlockState) {
	c.activeSnoop = &snoopReq{sig: sig, priorState: priorState}
	c.state = stWaitingForBusSnoop
	c.sched.Schedule(proto.Target{Kind: proto.TargetBus}, proto.AcquireLock{CacheID: c.id}, 0)
}

func (c *Controller) onBusLocked() {
	switch c.state {
	case stWaitingForBusProc:
		if c.active.needsAsking {
			c.state = stAskingCaches
			delay := uint64(0)
			if c.spec.TC2CMsg > 0 {
				delay = c.spec.TC2CMsg - 1
			}
			c.sched.Schedule(proto.Target{Kind: proto.TargetDriver},
				proto.AskOtherCaches{CacheID: c.id, Addr: uint32(c.active.addr), ReqID: c.nextReqID()}, delay)
			return
		}
		c.resolveProcOutcome()
	case stWaitingForBusSnoop:
		c.performSnoopFlush(*c.activeSnoop)
	default:
		c.violate("received BusLocked while not awaiting the bus")
	}
}

func (c *Controller) onCachesChecked(m proto.CachesChecked) {
	if c.state != stAskingCaches {
		c.violate("received CachesChecked while not in AskingCaches")
		return
	}
	c.active.peersPresent = m.Present
	c.resolveProcOutcome()
}

func (c *Controller) onCompleteProcRequest(proto.CompleteProcRequest) {
	if c.state != stResolvingProc {
		c.violate("received CompleteProcRequest while not ResolvingProc")
		return
	}
	c.sched.Schedule(proto.Target{Kind: proto.TargetBus}, proto.ReleaseLock{CacheID: c.id}, 0)
	c.state = stProcResolvedNext
	c.resolveProcNow()
}

func (c *Controller) onCompleteSnoopFlush(proto.CompleteSnoopFlush) {
	if c.state != stResolvingBus {
		c.violate("received CompleteSnoopFlush while not ResolvingBus")
		return
	}
	c.sched.Schedule(proto.Target{Kind: proto.TargetBus}, proto.ReleaseLock{CacheID: c.id}, 0)
	c.state = stBusResolvedNext
}

// outcome is the decided result of a bus-granted processor request: the
// signal(s) to broadcast, the resulting block state, the latency until
// completion, and whether the resulting access is classified private.
type outcome struct {
	signals []coherence.BusSignal
	state   coherence.BlockState
	latency uint64
	private bool
}

// resolveProcOutcome is reached once a bus-granted processor request's
// outcome is fully decided (peer presence known, or not needed). It
// installs the block, issues bus traffic, and schedules completion.
func (c *Controller) resolveProcOutcome() {
	var out outcome
	switch c.spec.Protocol {
	case model.MESI:
		out = c.mesiOutcome(c.active)
	case model.Dragon:
		out = c.dragonOutcome(c.active)
	default:
		c.violate("unknown protocol in resolveProcOutcome")
		return
	}

	if c.active.wasState != coherence.Invalid {
		// The block is already resident (a Shared/SharedClean/SharedModified
		// write upgrade): overwrite its state in place. installEvicting would
		// append a second entry for the same tag, leaving a stale duplicate
		// that Lookup/Touch/Remove keep treating as authoritative.
		set := c.sets[c.active.addr.SetIndex(c.spec)]
		tag := c.active.addr.Tag(c.spec)
		set.SetState(tag, out.state)
		set.Touch(tag)
	} else {
		c.installEvicting(c.active.addr, out.state)
	}
	for _, sig := range out.signals {
		c.chargeBusBytes()
		c.sched.Schedule(proto.Target{Kind: proto.TargetBus},
			proto.EnqueueSignal{CacheID: c.id, Signal: sig}, 0)
	}
	c.classifyAccess(false, out.private)

	c.state = stResolvingProc
	c.sched.Schedule(proto.Target{Kind: proto.TargetCache, ID: c.id},
		proto.CompleteProcRequest{ReqID: c.nextReqID()}, out.latency)
}

// performSnoopFlush is reached once the bus grants a snoop-driven flush
// (MESI Modified/Exclusive flush, or the Dragon supplier transfer that
// closes the gap noted in spec.md §9).
func (c *Controller) performSnoopFlush(req snoopReq) {
	var out outcome
	switch c.spec.Protocol {
	case model.MESI:
		out = c.mesiSnoopFlushOutcome(req)
	case model.Dragon:
		out = c.dragonSnoopFlushOutcome(req)
	default:
		c.violate("unknown protocol in performSnoopFlush")
		return
	}

	addr := model.Addr(req.sig.Addr)
	set := c.sets[addr.SetIndex(c.spec)]
	if out.state == coherence.Invalid {
		set.Remove(addr.Tag(c.spec))
		c.recordInvalidation()
	} else {
		set.SetState(addr.Tag(c.spec), out.state)
	}
	c.chargeBusBytes()

	c.state = stResolvingBus
	c.sched.Schedule(proto.Target{Kind: proto.TargetCache, ID: c.id},
		proto.CompleteSnoopFlush{ReqID: c.nextReqID()}, out.latency)
}
