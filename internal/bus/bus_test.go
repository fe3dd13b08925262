package bus

import (
	"testing"

	"github.com/ehrlich-b/cachesim/internal/coherence"
	"github.com/ehrlich-b/cachesim/internal/proto"
)

type schedCall struct {
	to    proto.Target
	body  any
	delay uint64
}

type fakeScheduler struct{ calls []schedCall }

func (f *fakeScheduler) Schedule(to proto.Target, body any, delay uint64) {
	f.calls = append(f.calls, schedCall{to, body, delay})
}

func TestSignalTakesPriorityOverLock(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(3, 2, sched, nil)

	b.Receive(proto.AcquireLock{CacheID: 0})
	b.Receive(proto.EnqueueSignal{CacheID: 1, Signal: coherence.BusSignal{Kind: coherence.BusRd, Addr: 0x10}})

	if !b.ResolveIfUnlocked() {
		t.Fatal("expected a transition out of Unlocked")
	}

	// The signal must win even though the lock request arrived first.
	sawSnoop := false
	for _, c := range sched.calls {
		if _, ok := c.body.(proto.Snoop); ok {
			sawSnoop = true
		}
		if _, ok := c.body.(proto.BusLocked); ok {
			t.Fatal("lock should not have been granted while a signal is pending")
		}
	}
	if !sawSnoop {
		t.Fatal("expected the bus to broadcast a snoop")
	}
}

func TestSnoopGoesToEveryCacheButIssuer(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(3, 2, sched, nil)
	b.Receive(proto.EnqueueSignal{CacheID: 1, Signal: coherence.BusSignal{Kind: coherence.BusRdX, Addr: 4}})
	b.ResolveIfUnlocked()

	gotIDs := map[int]bool{}
	for _, c := range sched.calls {
		if s, ok := c.body.(proto.Snoop); ok {
			gotIDs[c.to.ID] = true
			if s.IssuerID != 1 {
				t.Errorf("snoop IssuerID = %d, want 1", s.IssuerID)
			}
		}
	}
	if gotIDs[1] {
		t.Fatal("issuer must not receive its own snoop")
	}
	if !gotIDs[0] || !gotIDs[2] {
		t.Fatalf("expected snoops to caches 0 and 2, got %v", gotIDs)
	}
}

func TestLockGrantedWhenNoSignalPending(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(2, 2, sched, nil)
	b.Receive(proto.AcquireLock{CacheID: 0})
	if !b.ResolveIfUnlocked() {
		t.Fatal("expected a transition")
	}
	found := false
	for _, c := range sched.calls {
		if _, ok := c.body.(proto.BusLocked); ok && c.to.ID == 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a BusLocked grant to cache 0")
	}
}

func TestReleaseLockFromNonOwnerIsFatal(t *testing.T) {
	sched := &fakeScheduler{}
	var violated bool
	b := New(2, 2, sched, func(op string, cycle int64, msg string) { violated = true })
	b.Receive(proto.AcquireLock{CacheID: 0})
	b.ResolveIfUnlocked()

	b.Receive(proto.ReleaseLock{CacheID: 1}) // cache 1 never owned the lock
	if !violated {
		t.Fatal("expected a release from a non-owner to report a violation")
	}
}

func TestLockOwnerSignalBypassesTheQueue(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(3, 2, sched, nil)
	b.Receive(proto.AcquireLock{CacheID: 0})
	b.ResolveIfUnlocked() // grants the lock to cache 0

	b.Receive(proto.EnqueueSignal{CacheID: 0, Signal: coherence.BusSignal{Kind: coherence.BusRdX, Addr: 8}})

	sawSnoop := false
	for _, c := range sched.calls {
		if _, ok := c.body.(proto.Snoop); ok {
			sawSnoop = true
		}
	}
	if !sawSnoop {
		t.Fatal("expected the lock owner's signal to broadcast immediately without waiting for Unlocked")
	}
	if len(b.signalQueue) != 0 {
		t.Fatal("the owner's signal must not sit in the contention queue")
	}
}

func TestNonOwnerSignalQueuesWhileLocked(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(3, 2, sched, nil)
	b.Receive(proto.AcquireLock{CacheID: 0})
	b.ResolveIfUnlocked() // grants the lock to cache 0

	b.Receive(proto.EnqueueSignal{CacheID: 1, Signal: coherence.BusSignal{Kind: coherence.BusRd, Addr: 8}})
	for _, c := range sched.calls {
		if _, ok := c.body.(proto.Snoop); ok {
			t.Fatal("a non-owner's signal must not broadcast while the bus is locked by someone else")
		}
	}
	if len(b.signalQueue) != 1 {
		t.Fatal("expected the non-owner's signal to queue")
	}
}

func TestFreeNextTransitionsToUnlockedAtPostTick(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(2, 2, sched, nil)
	b.Receive(proto.AcquireLock{CacheID: 0})
	b.ResolveIfUnlocked()
	b.Receive(proto.ReleaseLock{CacheID: 0})

	if b.Idle() {
		t.Fatal("bus should not be idle while FreeNext (pre post-tick)")
	}
	b.PostTick()
	if !b.Idle() {
		t.Fatal("bus should be idle and Unlocked after PostTick")
	}
}
