package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/opentracing/opentracing-go"
)

// TreeBuilder assembles a tree, optionally with nested subtree builders that
// are written bottom-up when the top-level builder is written.
type TreeBuilder struct {
	repo *Repository
	root *TreeBuilder
	name string

	tb *storage.TreeBuilder

	mu       sync.Mutex
	subtrees map[string]*TreeBuilder
}

// TreeBuilder returns an empty builder.
func (r *Repository) TreeBuilder(ctx context.Context) (*TreeBuilder, error) {
	return r.newTreeBuilder(ctx, nil, nil, "")
}

// TreeBuilderFrom returns a builder seeded with base's entries.
func (r *Repository) TreeBuilderFrom(ctx context.Context, base *Tree) (*TreeBuilder, error) {
	if base == nil {
		return r.TreeBuilder(ctx)
	}
	return r.newTreeBuilder(ctx, base.data, nil, "")
}

func (r *Repository) newTreeBuilder(ctx context.Context, base *object.Tree, root *TreeBuilder, name string) (*TreeBuilder, error) {
	tb, err := r.engine.NewTreeBuilder(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("tree builder: %w", err)
	}
	b := &TreeBuilder{repo: r, root: root, name: name, tb: tb, subtrees: make(map[string]*TreeBuilder)}
	if root == nil {
		b.root = b
	}
	return b, nil
}

// Root returns the top-level builder this one belongs to. A top-level
// builder is its own root.
func (b *TreeBuilder) Root() *TreeBuilder {
	return b.root
}

// Repository returns the repository the builder writes to.
func (b *TreeBuilder) Repository() *Repository {
	return b.repo
}

// Insert adds or replaces name. It discards any pending subtree builder of
// the same name.
func (b *TreeBuilder) Insert(name string, id object.IDLike, mode object.Mode) error {
	oid, err := object.Normalize(id)
	if err != nil {
		return fmt.Errorf("tree builder: insert %q: %w", name, err)
	}
	if err := b.tb.Insert(name, oid, mode); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.subtrees, name)
	b.mu.Unlock()
	return nil
}

// Remove deletes name together with any pending subtree builder.
func (b *TreeBuilder) Remove(name string) error {
	b.mu.Lock()
	_, pending := b.subtrees[name]
	delete(b.subtrees, name)
	b.mu.Unlock()

	if err := b.tb.Remove(name); err != nil && !pending {
		return err
	}
	return nil
}

// Get returns the entry called name as it currently stands. Pending subtree
// builders are not reflected until Write.
func (b *TreeBuilder) Get(name string) (object.TreeEntry, bool) {
	return b.tb.Get(name)
}

// Len reports the number of written entries plus pending subtrees that have
// no entry yet.
func (b *TreeBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.tb.Len()
	for name := range b.subtrees {
		if _, ok := b.tb.Get(name); !ok {
			n++
		}
	}
	return n
}

// Clear drops every entry and every pending subtree builder.
func (b *TreeBuilder) Clear() {
	b.mu.Lock()
	b.subtrees = make(map[string]*TreeBuilder)
	b.mu.Unlock()
	b.tb.Clear()
}

// empty reports whether Write would produce an empty tree: every entry is
// shadowed by a pending subtree and every pending subtree is itself empty.
func (b *TreeBuilder) empty() bool {
	b.mu.Lock()
	subs := make(map[string]*TreeBuilder, len(b.subtrees))
	for name, sub := range b.subtrees {
		subs[name] = sub
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.empty() {
			return false
		}
	}
	for _, e := range b.tb.Entries() {
		if _, pending := subs[e.Name]; !pending {
			return false
		}
	}
	return true
}

// Subtree returns the nested builder for directory name, creating it on
// first use. An existing directory entry seeds the new builder.
func (b *TreeBuilder) Subtree(ctx context.Context, name string) (*TreeBuilder, error) {
	if err := object.ValidateEntryName(name); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if sub, ok := b.subtrees[name]; ok {
		b.mu.Unlock()
		return sub, nil
	}
	b.mu.Unlock()

	var base *object.Tree
	if e, ok := b.tb.Get(name); ok {
		if !e.Mode.IsDir() {
			return nil, fmt.Errorf("tree builder: %q is not a directory", name)
		}
		t, err := b.repo.GetTree(ctx, object.Of(e.ID))
		if err != nil {
			return nil, fmt.Errorf("tree builder: subtree %q: %w", name, err)
		}
		base = t.data
	}
	sub, err := b.repo.newTreeBuilder(ctx, base, b.root, name)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.subtrees[name]; ok {
		return existing, nil
	}
	b.subtrees[name] = sub
	return sub, nil
}

// Write stores pending subtrees and then this tree. Subtrees left empty are
// dropped rather than written.
func (b *TreeBuilder) Write(ctx context.Context) (_ *Tree, err error) {
	span, ctx := startSpan(ctx, "TreeBuilder.Write", opentracing.Tags{"path": b.name})
	defer func() { finishSpan(span, err) }()

	b.mu.Lock()
	names := make([]string, 0, len(b.subtrees))
	for name := range b.subtrees {
		names = append(names, name)
	}
	b.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		b.mu.Lock()
		sub := b.subtrees[name]
		b.mu.Unlock()
		if sub.empty() {
			if _, ok := b.tb.Get(name); ok {
				if err := b.tb.Remove(name); err != nil {
					return nil, err
				}
			}
			continue
		}
		t, err := sub.Write(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := b.tb.Insert(name, t.id, object.ModeDir); err != nil {
			return nil, err
		}
	}

	entries := b.tb.Entries()
	id, err := b.tb.Write(ctx)
	if err != nil {
		return nil, fmt.Errorf("write tree: %w", err)
	}
	b.repo.metrics.observeWrite(object.TypeTree)
	return &Tree{id: id, data: &object.Tree{Entries: entries}, repo: b.repo}, nil
}
