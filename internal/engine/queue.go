package engine

import "github.com/asitkr/event-loop-visualizer/internal/ir"

// itemQueue is a FIFO of scheduled items.
//
// It is not safe for concurrent use; the engine mutex guards every queue.
type itemQueue struct {
	items []ir.ScheduledItem
}

// Push adds an item to the back of the queue.
func (q *itemQueue) Push(it ir.ScheduledItem) {
	q.items = append(q.items, it)
}

// Pop removes and returns the front item.
// Returns (ir.ScheduledItem{}, false) if the queue is empty.
func (q *itemQueue) Pop() (ir.ScheduledItem, bool) {
	if len(q.items) == 0 {
		return ir.ScheduledItem{}, false
	}
	it := q.items[0]
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return it, true
}

// Remove deletes the item with the given ID wherever it sits, keeping the
// order of the others.
func (q *itemQueue) Remove(id int64) (ir.ScheduledItem, bool) {
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return it, true
		}
	}
	return ir.ScheduledItem{}, false
}

// Len returns the current queue length.
func (q *itemQueue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queue contents, front first.
func (q *itemQueue) Items() []ir.ScheduledItem {
	return append(make([]ir.ScheduledItem, 0, len(q.items)), q.items...)
}

// Clear empties the queue.
func (q *itemQueue) Clear() {
	q.items = nil
}
