package deq

import "testing"

func TestEnqueueDeliversAtTargetCycle(t *testing.T) {
	q := New(nil)
	q.Enqueue("a", 3)

	for c := uint64(0); c < 3; c++ {
		q.SetNow(c)
		if _, ok := q.TryPop(); ok {
			t.Fatalf("cycle %d: message delivered early", c)
		}
	}
	q.SetNow(3)
	msg, ok := q.TryPop()
	if !ok || msg != "a" {
		t.Fatalf("cycle 3: want delivery of %q, got (%v, %v)", "a", msg, ok)
	}
}

func TestFIFOWithinSameCycle(t *testing.T) {
	q := New(nil)
	q.Enqueue("first", 1)
	q.Enqueue("second", 1)
	q.Enqueue("third", 1)

	q.SetNow(1)
	var got []string
	for {
		msg, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, msg.(string))
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestZeroDelayDeliversSameCycle(t *testing.T) {
	q := New(nil)
	q.Enqueue("now", 0)
	if !q.MessagesPendingNow() {
		t.Fatal("expected a zero-delay message to be pending at the current cycle")
	}
	msg, ok := q.TryPop()
	if !ok || msg != "now" {
		t.Fatalf("got (%v, %v), want (\"now\", true)", msg, ok)
	}
}

func TestEmptyQueue(t *testing.T) {
	q := New(nil)
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on empty queue should return false")
	}
	q.Enqueue("x", 0)
	if q.Empty() {
		t.Fatal("queue with one message should not be empty")
	}
}

func TestSetNowBackwardIsInvariantViolation(t *testing.T) {
	var violated bool
	q := New(func(op string, cycle int64, msg string) { violated = true })
	q.SetNow(5)
	q.SetNow(2)
	if !violated {
		t.Fatal("expected moving the clock backward to report an invariant violation")
	}
}

func TestPastTargetIsInvariantViolation(t *testing.T) {
	var violated bool
	q := New(func(op string, cycle int64, msg string) { violated = true })
	q.Enqueue("late", 1)
	q.SetNow(5) // jumps past the target cycle of 1
	if !violated {
		t.Fatal("expected leaving a message behind the clock to report an invariant violation")
	}
}

func TestMessagesPendingNowOnlyAtExactCycle(t *testing.T) {
	q := New(nil)
	q.Enqueue("later", 5)
	if q.MessagesPendingNow() {
		t.Fatal("message scheduled 5 cycles out should not be pending now")
	}
	q.SetNow(5)
	if !q.MessagesPendingNow() {
		t.Fatal("message should be pending once now reaches its target")
	}
}
