// Package driver implements the simulation driver of spec.md §4.5: the
// per-cycle tick/drain/post-tick loop, the AskOtherCaches cross-cache
// query, termination detection, and counters aggregation. The driver owns
// every flat component collection; no component holds a reference to
// another (spec.md §9 Design Notes).
package driver

import (
	"context"
	"fmt"

	"github.com/ehrlich-b/cachesim/internal/bus"
	"github.com/ehrlich-b/cachesim/internal/cachectrl"
	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/deq"
	"github.com/ehrlich-b/cachesim/internal/logging"
	"github.com/ehrlich-b/cachesim/internal/model"
	"github.com/ehrlich-b/cachesim/internal/procmodel"
	"github.com/ehrlich-b/cachesim/internal/proto"
)

// Observer is the driver's minimal view of the public Observer interface;
// cachesim.Run adapts its caller-supplied Observer to this shape.
type Observer interface {
	ObserveCacheAccess(cacheID int, hit bool, private bool)
	ObserveInvalidation(cacheID int)
	ObserveBusBytes(cacheID int, bytes uint64)
	ObserveCoreDone(coreID int, completionCycle uint64)
}

// Report is the structured end-of-run summary (spec.md §6).
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

// ViolationError wraps an invariant violation raised by any component
// (spec.md §7). It is never returned for ordinary input errors.
type ViolationError struct {
	Component string
	Cycle     int64
	Op        string
	Msg       string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("driver: invariant violation in %s at cycle %d (%s): %s", e.Component, e.Cycle, e.Op, e.Msg)
}

// cacheObserverAdapter narrows Observer to cachectrl's interface.
type cacheObserverAdapter struct{ Observer }

// procObserverAdapter narrows Observer to procmodel's interface.
type procObserverAdapter struct{ Observer }

// noopObserver is used when the caller supplies no Observer.
type noopObserver struct{}

func (noopObserver) ObserveCacheAccess(int, bool, bool) {}
func (noopObserver) ObserveInvalidation(int)            {}
func (noopObserver) ObserveBusBytes(int, uint64)        {}
func (noopObserver) ObserveCoreDone(int, uint64)        {}

// scheduler implements proto.Scheduler atop the DEQ, tagging each envelope
// with its target so the driver can dispatch it during drain.
type scheduler struct {
	q *deq.Queue
}

type envelope struct {
	to   proto.Target
	body any
}

func (s *scheduler) Schedule(to proto.Target, body any, delay uint64) {
	s.q.Enqueue(envelope{to: to, body: body}, delay)
}

// Run drives a complete simulation: one cache controller and one processor
// per entry in traces, sharing spec and a single bus (spec.md §3 Lifecycle,
// §4.5). It panics internally on any invariant violation and recovers that
// panic into a *ViolationError.
func Run(ctx context.Context, spec model.SystemSpec, traces [][]model.Instr, obs Observer) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ve, ok := r.(*ViolationError); ok {
				err = ve
				return
			}
			panic(r)
		}
	}()

	if obs == nil {
		obs = noopObserver{}
	}

	n := len(traces)
	sched := &scheduler{}
	violate := func(component string, cycle int64, msg string) {
		logging.Violation(component, component, cycle, msg)
		panic(&ViolationError{Component: component, Cycle: cycle, Op: component, Msg: msg})
	}
	sched.q = deq.New(func(op string, cycle int64, msg string) { violate("DEQ", cycle, msg) })

	b := bus.New(n, spec.TC2CMsg, sched, func(op string, cycle int64, msg string) { violate("Bus", cycle, msg) })

	caches := make([]*cachectrl.Controller, n)
	for i := 0; i < n; i++ {
		caches[i] = cachectrl.New(i, spec, sched, cacheObserverAdapter{obs}, func(op string, cycle int64, msg string) { violate("CacheController", cycle, msg) })
	}

	procs := make([]*procmodel.Processor, n)
	for i := 0; i < n; i++ {
		procs[i] = procmodel.New(i, traces[i], caches[i], procObserverAdapter{obs})
	}

	logging.Info("simulation starting", "cores", n, "protocol", spec.Protocol)

	var now uint64
	for {
		select {
		case <-ctx.Done():
			return Report{}, ctx.Err()
		default:
		}

		// now counts cycles actually consumed so far (0 means no cycle has
		// run yet). Checking termination here, before running another
		// cycle's work, means an all-empty-trace run reports zero cycles,
		// and a run that still has a snoop-driven flush in flight (queued
		// in a cache's snoopQueue or the bus's lockQueue, outside the DEQ)
		// keeps running until the bus and every cache are also Idle.
		if allProcsDone(procs) && sched.q.Empty() && b.Idle() && allCachesIdle(caches) {
			rep = assembleReport(now, procs, caches)
			logging.Info("simulation complete", "total_cycles", rep.TotalCycles)
			return rep, nil
		}

		for _, p := range procs {
			if !p.Done() {
				p.Tick(now)
			}
		}
		for _, c := range caches {
			c.Tick()
		}

		drainCycle(sched.q, caches, b)

		for i, c := range caches {
			if c.PollResolution() {
				procs[i].NotifyResolved()
			}
		}

		b.PostTick()
		for _, c := range caches {
			c.PostTick()
		}
		for _, p := range procs {
			p.PostTick(now)
		}

		logging.Debug("cycle complete", "cycle", now)
		now++
		sched.q.SetNow(now)
	}
}

func allProcsDone(procs []*procmodel.Processor) bool {
	for _, p := range procs {
		if !p.Done() {
			return false
		}
	}
	return true
}

func allCachesIdle(caches []*cachectrl.Controller) bool {
	for _, c := range caches {
		if !c.Idle() {
			return false
		}
	}
	return true
}

// drainCycle repeatedly dispatches every message targeted at the current
// cycle, interleaved with giving the bus a chance to start a new signal or
// lock grant, until neither makes further progress (spec.md §4.5 step 2).
func drainCycle(q *deq.Queue, caches []*cachectrl.Controller, b *bus.Bus) {
	for {
		delivered := false
		for q.MessagesPendingNow() {
			msg, ok := q.TryPop()
			if !ok {
				break
			}
			dispatch(msg.(envelope), caches, b)
			delivered = true
		}
		if b.ResolveIfUnlocked() {
			continue
		}
		if !delivered {
			return
		}
	}
}

func dispatch(env envelope, caches []*cachectrl.Controller, b *bus.Bus) {
	switch env.to.Kind {
	case proto.TargetBus:
		b.Receive(env.body)
	case proto.TargetCache:
		caches[env.to.ID].Receive(env.body)
	case proto.TargetDriver:
		handleDriverMessage(env.body, caches)
	}
}

// handleDriverMessage answers AskOtherCaches synchronously by inspecting
// every other cache's coherence state directly (spec.md §4.5: "the driver
// is the only place that reaches across cache instances").
func handleDriverMessage(body any, caches []*cachectrl.Controller) {
	m, ok := body.(proto.AskOtherCaches)
	if !ok {
		return
	}
	present := false
	for i, c := range caches {
		if i == m.CacheID {
			continue
		}
		if c.StateOf(model.Addr(m.Addr)) != coherence.Invalid {
			present = true
			break
		}
	}
	caches[m.CacheID].Receive(proto.CachesChecked{ReqID: m.ReqID, Present: present})
}

func assembleReport(now uint64, procs []*procmodel.Processor, caches []*cachectrl.Controller) Report {
	rep := Report{TotalCycles: now}
	for i, p := range procs {
		c := p.Counters()
		if c.CompletionCycle > rep.TotalCycles {
			rep.TotalCycles = c.CompletionCycle
		}
		rep.Cores = append(rep.Cores, CoreReport{
			ID: i, CompletionCycle: c.CompletionCycle, Loads: c.Loads, Stores: c.Stores, WaitCycles: c.WaitCycles,
		})
	}
	for i, ctrl := range caches {
		c := ctrl.Counters()
		total := c.Hits + c.Misses
		missRate := 0.0
		if total > 0 {
			missRate = float64(c.Misses) / float64(total)
		}
		accessed := c.PrivateAccesses + c.SharedAccesses
		privRate := 0.0
		if accessed > 0 {
			privRate = float64(c.PrivateAccesses) / float64(accessed)
		}
		rep.Caches = append(rep.Caches, CacheReport{
			ID: i, MissRate: missRate, PrivateAccessRate: privRate,
			Invalidations: c.Invalidations, IssuedBusDataBytes: c.IssuedBusDataBytes,
		})
	}
	return rep
}
