package signal

import (
	"container/heap"
	"time"
)

type timer struct {
	at       time.Duration
	seq      uint64
	fn       func()
	canceled bool
}

// Timer is a pending one-shot callback.
type Timer struct{ t *timer }

// Cancel stops the callback from firing. Safe to call more than once.
func (t Timer) Cancel() {
	if t.t != nil {
		t.t.canceled = true
	}
}

// -------------------- Min-Heap --------------------

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type timerQueue struct {
	h   timerHeap
	seq uint64
}

func (q *timerQueue) push(at time.Duration, fn func()) Timer {
	q.seq++
	t := &timer{at: at, seq: q.seq, fn: fn}
	heap.Push(&q.h, t)
	return Timer{t}
}

// flushDue fires every callback due at or before now, in time order.
// Callbacks may schedule more timers; ones already due fire in the same flush.
func (q *timerQueue) flushDue(now time.Duration) int {
	fired := 0
	for q.h.Len() > 0 && q.h[0].at <= now {
		t := heap.Pop(&q.h).(*timer)
		if t.canceled {
			continue
		}
		t.fn()
		fired++
	}
	return fired
}

func (q *timerQueue) len() int { return q.h.Len() }
