// Package pqueue implements a binary max-heap with external position
// handles, so the save planner's cycle breaker can decrease (or
// increase) an edge's key in O(log n) without searching the heap for it.
package pqueue

import "github.com/gaby/blessbuf/blerr"

// Handle is an opaque back-pointer into the heap's backing slice. Pass
// the same Handle to Add and later to ChangeKey; the queue keeps it
// pointed at the item's current position as the heap reshuffles.
type Handle struct {
	idx int
}

type entry struct {
	value  any
	key    int64
	seq    int64
	handle *Handle
}

// Queue is a binary max-heap over (item, key) pairs.
type Queue struct {
	items []entry
	seq   int64
}

// New returns an empty priority queue.
func New() *Queue { return &Queue{} }

// Size returns the number of elements currently queued.
func (q *Queue) Size() int { return len(q.items) }

// Add inserts value with the given key. If handle is non-nil, it is
// updated to track value's position so a later ChangeKey(handle, ...)
// can re-prioritize it. Ties are broken by insertion order (earlier
// insertions are treated as higher priority among equal keys).
func (q *Queue) Add(value any, key int64, handle *Handle) {
	e := entry{value: value, key: key, seq: q.seq, handle: handle}
	q.seq++
	q.items = append(q.items, e)
	idx := len(q.items) - 1
	if handle != nil {
		handle.idx = idx
	}
	q.siftUp(idx)
}

// RemoveMax pops and returns the highest-priority item.
func (q *Queue) RemoveMax() (any, error) {
	if len(q.items) == 0 {
		return nil, blerr.New(blerr.EINVAL, "pqueue: empty")
	}
	top := q.items[0].value
	last := len(q.items) - 1
	q.swapEntries(0, last)
	q.items = q.items[:last]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return top, nil
}

// ChangeKey re-prioritizes the item tracked by handle, moving it to its
// new correct heap position.
func (q *Queue) ChangeKey(handle *Handle, newKey int64) error {
	if handle == nil || handle.idx < 0 || handle.idx >= len(q.items) {
		return blerr.New(blerr.EINVAL, "pqueue: invalid handle")
	}
	old := q.items[handle.idx].key
	q.items[handle.idx].key = newKey
	switch {
	case newKey > old:
		q.siftUp(handle.idx)
	case newKey < old:
		q.siftDown(handle.idx)
	}
	return nil
}

func greater(a, b entry) bool {
	if a.key != b.key {
		return a.key > b.key
	}
	return a.seq < b.seq
}

func (q *Queue) swapEntries(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	if q.items[i].handle != nil {
		q.items[i].handle.idx = i
	}
	if q.items[j].handle != nil {
		q.items[j].handle.idx = j
	}
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !greater(q.items[i], q.items[parent]) {
			break
		}
		q.swapEntries(i, parent)
		i = parent
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l, r := 2*i+1, 2*i+2
		largest := i
		if l < n && greater(q.items[l], q.items[largest]) {
			largest = l
		}
		if r < n && greater(q.items[r], q.items[largest]) {
			largest = r
		}
		if largest == i {
			break
		}
		q.swapEntries(i, largest)
		i = largest
	}
}
