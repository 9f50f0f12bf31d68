package revwalk

import (
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
)

type queueItem struct {
	id     object.ID
	commit *object.Commit
	when   time.Time
	// seq is the order in which the item was discovered.
	seq uint64
}

// queue is a container/heap of commits. With byDate set the newest commit
// pops first and discovery order breaks ties; otherwise it pops in
// discovery order.
type queue struct {
	items  []queueItem
	byDate bool
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if q.byDate && !a.when.Equal(b.when) {
		return a.when.After(b.when)
	}
	return a.seq < b.seq
}

func (q *queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *queue) Push(x any) {
	q.items = append(q.items, x.(queueItem))
}

func (q *queue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}
