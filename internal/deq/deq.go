// Package deq implements the delayed event queue described in spec.md §4.1:
// a priority structure keyed on (timestamp, insertion-order) that delivers
// each message at exactly its target cycle; a message left behind the clock
// is reported as an invariant violation, never delivered late.
package deq

import "container/heap"

// entry is a message scheduled for delivery at a future cycle. Two entries
// with equal Target are ordered by Seq, giving FIFO delivery among
// same-cycle messages (spec.md §4.1 invariant).
type entry struct {
	Target uint64
	Seq    uint64
	Msg    any
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Target != h[j].Target {
		return h[i].Target < h[j].Target
	}
	return h[i].Seq < h[j].Seq
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Panicker lets the queue report an invariant violation without importing
// the root package (which would create an import cycle). Set by driver.
type Panicker func(op string, cycle int64, msg string)

// Queue is a delayed event queue. The zero value is not usable; use New.
type Queue struct {
	now      uint64
	nextSeq  uint64
	h        entryHeap
	onInvariantViolation Panicker
}

// New creates an empty queue with now=0.
func New(onInvariantViolation Panicker) *Queue {
	return &Queue{onInvariantViolation: onInvariantViolation}
}

// Now returns the queue's current clock.
func (q *Queue) Now() uint64 { return q.now }

// Enqueue records msg for delivery at now+delay, with a monotonically
// increasing tiebreaker for FIFO ordering among same-cycle messages.
func (q *Queue) Enqueue(msg any, delay uint64) {
	target := q.now + delay
	heap.Push(&q.h, entry{Target: target, Seq: q.nextSeq, Msg: msg})
	q.nextSeq++
}

// SetNow advances the clock of the queue. It is a contract violation to
// move the clock backward, or to leave behind an entry whose target cycle
// is less than the new now (both are fatal per spec.md §4.1).
func (q *Queue) SetNow(t uint64) {
	if t < q.now {
		q.violate(int64(q.now), "SetNow moved the clock backward")
		return
	}
	q.now = t
	if len(q.h) > 0 && q.h[0].Target < q.now {
		q.violate(int64(q.h[0].Target), "a message's target cycle is behind the queue's now")
	}
}

// TryPop returns the next message whose target cycle equals now, or
// (nil, false) if none is ready.
func (q *Queue) TryPop() (any, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	if q.h[0].Target < q.now {
		q.violate(int64(q.h[0].Target), "queue attempted to deliver a message in the past")
		return nil, false
	}
	if q.h[0].Target != q.now {
		return nil, false
	}
	e := heap.Pop(&q.h).(entry)
	return e.Msg, true
}

// MessagesPendingNow reports whether any message is ready for immediate
// delivery at the current cycle.
func (q *Queue) MessagesPendingNow() bool {
	return len(q.h) > 0 && q.h[0].Target == q.now
}

// Empty reports whether the queue holds no messages at all (used by the
// driver's termination check).
func (q *Queue) Empty() bool { return len(q.h) == 0 }

func (q *Queue) violate(cycle int64, msg string) {
	if q.onInvariantViolation != nil {
		q.onInvariantViolation("DEQ", cycle, msg)
		return
	}
	panic(msg)
}
