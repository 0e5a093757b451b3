package sim

import (
	"container/heap"
	"time"

	"fleetsim/internal/scenario"
)

// pendingEffect is a cascade effect waiting for its fire time.
type pendingEffect struct {
	fireAt     time.Time
	seq        uint64 // insertion order breaks fireAt ties
	scenarioID string
	epoch      uint64 // activation the effect belongs to
	effect     scenario.CascadeEffect
}

// effectQueue is a min-heap of pending effects ordered by fire time.
type effectQueue []*pendingEffect

func (q effectQueue) Len() int { return len(q) }

func (q effectQueue) Less(i, j int) bool {
	if q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].fireAt.Before(q[j].fireAt)
}

func (q effectQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *effectQueue) Push(x any) { *q = append(*q, x.(*pendingEffect)) }

func (q *effectQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

func (q *effectQueue) schedule(e *pendingEffect) { heap.Push(q, e) }

// popDue removes and returns every effect due at or before now, in order.
func (q *effectQueue) popDue(now time.Time) []*pendingEffect {
	var due []*pendingEffect
	for q.Len() > 0 && !(*q)[0].fireAt.After(now) {
		due = append(due, heap.Pop(q).(*pendingEffect))
	}
	return due
}
