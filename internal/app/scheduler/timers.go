package scheduler

import (
	"container/heap"
	"time"
)

type timerAction int

const (
	actionStart timerAction = iota
	actionStop
)

// timer is one armed deadline. seq ties it to the arming generation of its
// job: re-arming bumps the generation, turning older entries stale without
// searching the heap for them.
type timer struct {
	at     time.Time
	jobID  int64
	action timerAction
	seq    uint64
}

type timerHeap []*timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// timerQueue is a deadline-ordered wakeup structure: the run loop sleeps
// until the earliest armed deadline instead of rescanning everything on a
// fixed period. Stale entries (re-armed or cancelled jobs) are discarded
// lazily when they surface at the top.
type timerQueue struct {
	h     timerHeap
	seq   uint64
	armed map[int64]uint64
}

func newTimerQueue() *timerQueue {
	q := &timerQueue{armed: make(map[int64]uint64)}
	heap.Init(&q.h)
	return q
}

// Arm replaces the job's timers with a start timer at startAt and a stop
// timer at stopAt. A zero time skips that action.
func (q *timerQueue) Arm(jobID int64, startAt, stopAt time.Time) {
	q.seq++
	q.armed[jobID] = q.seq
	if !startAt.IsZero() {
		heap.Push(&q.h, &timer{at: startAt, jobID: jobID, action: actionStart, seq: q.seq})
	}
	if !stopAt.IsZero() {
		heap.Push(&q.h, &timer{at: stopAt, jobID: jobID, action: actionStop, seq: q.seq})
	}
}

// Cancel removes the job's unfired timers. Already-dispatched actions are
// unaffected.
func (q *timerQueue) Cancel(jobID int64) {
	delete(q.armed, jobID)
	q.compact()
}

// PopDue removes and returns every live timer due at or before now.
func (q *timerQueue) PopDue(now time.Time) []*timer {
	var due []*timer
	for q.h.Len() > 0 {
		top := q.h[0]
		if q.armed[top.jobID] != top.seq {
			heap.Pop(&q.h)
			continue
		}
		if top.at.After(now) {
			break
		}
		due = append(due, heap.Pop(&q.h).(*timer))
	}
	return due
}

// NextDeadline returns the earliest live deadline, if any.
func (q *timerQueue) NextDeadline() (time.Time, bool) {
	for q.h.Len() > 0 {
		top := q.h[0]
		if q.armed[top.jobID] != top.seq {
			heap.Pop(&q.h)
			continue
		}
		return top.at, true
	}
	return time.Time{}, false
}

// Len counts live timers.
func (q *timerQueue) Len() int {
	n := 0
	for _, t := range q.h {
		if q.armed[t.jobID] == t.seq {
			n++
		}
	}
	return n
}

// compact drops stale entries eagerly once they outnumber live ones.
func (q *timerQueue) compact() {
	if q.Len()*2 >= q.h.Len() {
		return
	}
	live := make(timerHeap, 0, len(q.armed)*2)
	for _, t := range q.h {
		if q.armed[t.jobID] == t.seq {
			live = append(live, t)
		}
	}
	q.h = live
	heap.Init(&q.h)
}
