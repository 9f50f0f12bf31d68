package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/odvcencio/gitobj/pkg/object"
)

// TreeBuilder accumulates entries for a single tree and writes it to an
// ObjectDB. It is safe for concurrent use.
type TreeBuilder struct {
	db ObjectDB

	mu      sync.Mutex
	entries map[string]object.TreeEntry
}

// NewTreeBuilder returns a builder writing to db, seeded with base's entries
// when base is non-nil.
func NewTreeBuilder(db ObjectDB, base *object.Tree) (*TreeBuilder, error) {
	b := &TreeBuilder{db: db, entries: make(map[string]object.TreeEntry)}
	if base != nil {
		for _, e := range base.Entries {
			if _, dup := b.entries[e.Name]; dup {
				return nil, fmt.Errorf("tree builder: duplicate entry %q in base tree", e.Name)
			}
			b.entries[e.Name] = e
		}
	}
	return b, nil
}

func validMode(m object.Mode) bool {
	switch m {
	case object.ModeDir, object.ModeFile, object.ModeExecutable, object.ModeSymlink, object.ModeSubmodule:
		return true
	}
	return false
}

// Insert adds or replaces the entry called name.
func (b *TreeBuilder) Insert(name string, id object.ID, mode object.Mode) error {
	if err := object.ValidateEntryName(name); err != nil {
		return err
	}
	if !validMode(mode) {
		return fmt.Errorf("tree builder: invalid mode %o for %q", uint32(mode), name)
	}
	if id.IsZero() {
		return fmt.Errorf("tree builder: zero id for %q: %w", name, object.ErrInvalidID)
	}
	b.mu.Lock()
	b.entries[name] = object.TreeEntry{Name: name, Mode: mode, ID: id}
	b.mu.Unlock()
	return nil
}

// Remove deletes the entry called name.
func (b *TreeBuilder) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[name]; !ok {
		return fmt.Errorf("tree builder: no entry %q", name)
	}
	delete(b.entries, name)
	return nil
}

// Get returns the entry called name.
func (b *TreeBuilder) Get(name string) (object.TreeEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[name]
	return e, ok
}

// Len reports the number of entries.
func (b *TreeBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear drops every entry.
func (b *TreeBuilder) Clear() {
	b.mu.Lock()
	b.entries = make(map[string]object.TreeEntry)
	b.mu.Unlock()
}

// Entries returns the entries in git tree order.
func (b *TreeBuilder) Entries() []object.TreeEntry {
	b.mu.Lock()
	out := make([]object.TreeEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	b.mu.Unlock()
	object.SortEntries(out)
	return out
}

// Write stores the tree and returns its id. Every entry except submodule
// links must refer to an object already present in the database.
func (b *TreeBuilder) Write(ctx context.Context) (object.ID, error) {
	entries := b.Entries()
	for _, e := range entries {
		if e.Mode == object.ModeSubmodule {
			continue
		}
		ok, err := b.db.HasObject(ctx, e.ID)
		if err != nil {
			return object.ZeroID, err
		}
		if !ok {
			return object.ZeroID, fmt.Errorf("tree builder: entry %q: %w", e.Name, ObjectNotFound(e.ID))
		}
	}
	return b.db.WriteObject(ctx, object.TypeTree, object.MarshalTree(&object.Tree{Entries: entries}))
}
