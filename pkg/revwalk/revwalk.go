// Package revwalk orders the commits reachable from a set of starting points,
// excluding those reachable from hidden commits.
package revwalk

import (
	"container/heap"
	"context"
	"fmt"
	"io"

	"github.com/odvcencio/gitobj/pkg/object"
)

// Sort selects the output order. Values combine as bit flags.
type Sort uint8

const (
	// SortNone emits commits newest first by committer time, like SortTime.
	SortNone Sort = 0
	// SortTopological never emits a parent before all of its children.
	SortTopological Sort = 1 << (iota - 1)
	// SortTime orders by committer time, newest first.
	SortTime
	// SortReverse reverses the final order.
	SortReverse
)

// Loader fetches a commit by id.
type Loader func(ctx context.Context, id object.ID) (*object.Commit, error)

// Walker iterates commits. It is not safe for concurrent use.
type Walker struct {
	load    Loader
	sorting Sort

	pushed []object.ID
	hidden []object.ID

	prepared bool
	// lazy iteration
	queue   *queue
	seen    map[object.ID]bool
	nextSeq uint64
	// eager iteration
	list []queueItem
	pos  int
	// uninteresting holds every ancestor of a hidden commit.
	uninteresting map[object.ID]bool
}

// New returns a walker loading commits with load.
func New(load Loader) *Walker {
	return &Walker{load: load}
}

// Push adds a starting point.
func (w *Walker) Push(id object.ID) {
	w.pushed = append(w.pushed, id)
	w.prepared = false
}

// Hide excludes id and all of its ancestors from the output.
func (w *Walker) Hide(id object.ID) {
	w.hidden = append(w.hidden, id)
	w.prepared = false
}

// Sorting sets the output order. It restarts the walk.
func (w *Walker) Sorting(s Sort) {
	w.sorting = s
	w.prepared = false
}

// Reset drops starting points, hidden commits and iteration state.
func (w *Walker) Reset() {
	w.pushed = nil
	w.hidden = nil
	w.prepared = false
	w.queue = nil
	w.seen = nil
	w.list = nil
	w.pos = 0
	w.uninteresting = nil
}

// Next returns the next commit, or io.EOF once the walk is exhausted.
func (w *Walker) Next(ctx context.Context) (object.ID, *object.Commit, error) {
	if !w.prepared {
		if err := w.prepare(ctx); err != nil {
			return object.ZeroID, nil, err
		}
	}
	if w.list != nil {
		if w.pos >= len(w.list) {
			return object.ZeroID, nil, io.EOF
		}
		item := w.list[w.pos]
		w.pos++
		return item.id, item.commit, nil
	}
	item, ok, err := w.step(ctx)
	if err != nil {
		return object.ZeroID, nil, err
	}
	if !ok {
		return object.ZeroID, nil, io.EOF
	}
	return item.id, item.commit, nil
}

// All drains the walk.
func (w *Walker) All(ctx context.Context) ([]object.ID, error) {
	var out []object.ID
	for {
		id, _, err := w.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
}

func (w *Walker) prepare(ctx context.Context) error {
	w.list = nil
	w.pos = 0
	w.seen = make(map[object.ID]bool)
	w.nextSeq = 0
	w.queue = &queue{byDate: true}

	if err := w.markUninteresting(ctx); err != nil {
		return err
	}
	for _, id := range w.pushed {
		if err := w.enqueue(ctx, id); err != nil {
			return err
		}
	}
	w.prepared = true

	if w.sorting&(SortTopological|SortReverse) == 0 {
		return nil
	}

	var all []queueItem
	for {
		item, ok, err := w.step(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		all = append(all, item)
	}
	if w.sorting&SortTopological != 0 {
		all = topoSort(all, w.sorting&SortTime != 0)
	}
	if w.sorting&SortReverse != 0 {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	if all == nil {
		all = []queueItem{}
	}
	w.list = all
	return nil
}

// markUninteresting collects every ancestor of the hidden commits.
func (w *Walker) markUninteresting(ctx context.Context) error {
	w.uninteresting = make(map[object.ID]bool)
	stack := append([]object.ID(nil), w.hidden...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.uninteresting[id] {
			continue
		}
		w.uninteresting[id] = true
		c, err := w.load(ctx, id)
		if err != nil {
			return fmt.Errorf("revwalk: hide %s: %w", id, err)
		}
		stack = append(stack, c.Parents...)
	}
	return nil
}

func (w *Walker) enqueue(ctx context.Context, id object.ID) error {
	if w.seen[id] || w.uninteresting[id] {
		return nil
	}
	w.seen[id] = true
	c, err := w.load(ctx, id)
	if err != nil {
		return fmt.Errorf("revwalk: load %s: %w", id, err)
	}
	heap.Push(w.queue, queueItem{id: id, commit: c, when: c.Committer.When, seq: w.nextSeq})
	w.nextSeq++
	return nil
}

func (w *Walker) step(ctx context.Context) (queueItem, bool, error) {
	if w.queue.Len() == 0 {
		return queueItem{}, false, nil
	}
	item := heap.Pop(w.queue).(queueItem)
	for _, p := range item.commit.Parents {
		if err := w.enqueue(ctx, p); err != nil {
			return queueItem{}, false, err
		}
	}
	return item, true, nil
}

// topoSort emits every commit after all of its children in the set. Ready
// commits are taken newest first when byDate is set, else in discovery
// order.
func topoSort(items []queueItem, byDate bool) []queueItem {
	index := make(map[object.ID]int, len(items))
	for i, it := range items {
		index[it.id] = i
	}
	children := make([]int, len(items))
	for _, it := range items {
		for _, p := range it.commit.Parents {
			if j, ok := index[p]; ok {
				children[j]++
			}
		}
	}

	ready := &queue{byDate: byDate}
	for i, it := range items {
		if children[i] == 0 {
			heap.Push(ready, it)
		}
	}
	out := make([]queueItem, 0, len(items))
	emitted := make(map[object.ID]bool, len(items))
	for ready.Len() > 0 {
		it := heap.Pop(ready).(queueItem)
		out = append(out, it)
		emitted[it.id] = true
		for _, p := range it.commit.Parents {
			j, ok := index[p]
			if !ok || emitted[p] {
				continue
			}
			children[j]--
			if children[j] == 0 {
				heap.Push(ready, items[j])
			}
		}
	}
	return out
}
