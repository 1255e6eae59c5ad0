package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// entry is one armed timer: a task id plus the version captured when it was
// armed. The version travels with the entry so a fire that lost a race to a
// concurrent cancel is rejected by the store's guard.
type entry struct {
	id        uuid.UUID
	version   int64
	at        time.Time
	createdAt time.Time
	index     int
}

// taskHeap orders entries by fire time, breaking ties by the store-recorded
// creation time and then by id. Recovery replay therefore fires in the same
// order as the original run, regardless of arrival order into the heap.
type taskHeap []*entry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	if !h[i].createdAt.Equal(h[j].createdAt) {
		return h[i].createdAt.Before(h[j].createdAt)
	}
	return h[i].id.String() < h[j].id.String()
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// indexOf returns the position of the entry for id, or -1.
func (h taskHeap) indexOf(id uuid.UUID) int {
	for i, e := range h {
		if e.id == id {
			return i
		}
	}
	return -1
}
