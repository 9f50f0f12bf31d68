// Package storage defines the content-addressed storage contract consumed by
// the repository layer, and composes engine-specific object and reference
// databases into that contract.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
)

// ObjectDB is the raw object surface an engine implements.
type ObjectDB interface {
	// ReadObject returns the stored kind and content of id. Missing objects
	// yield an error matching ErrObjectNotFound.
	ReadObject(ctx context.Context, id object.ID) (object.Type, []byte, error)
	HasObject(ctx context.Context, id object.ID) (bool, error)
	// WriteObject stores content under HashObject(kind, data). Writing an
	// existing object is a no-op that returns the same id.
	WriteObject(ctx context.Context, kind object.Type, data []byte) (object.ID, error)
}

// RefDB is the raw reference namespace an engine implements.
type RefDB interface {
	// ReadReference returns the named reference without following symbolic
	// targets. Missing references yield ErrReferenceNotFound.
	ReadReference(ctx context.Context, name refs.Name) (refs.Reference, error)
	// ListReferences returns references whose name starts with prefix,
	// sorted by name.
	ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error)
	// SetReference creates or overwrites a reference unconditionally.
	SetReference(ctx context.Context, ref refs.Reference) error
	// CompareAndSwapReference points the direct reference name at newID if
	// its current target equals expectedOld. A zero expectedOld requires the
	// reference to be absent. Mismatches yield ErrRefConflict.
	CompareAndSwapReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error
	DeleteReference(ctx context.Context, name refs.Name) error
}

// Engine is the storage contract consumed by the repository layer.
type Engine interface {
	LookupReference(ctx context.Context, name refs.Name) (refs.Reference, error)
	ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error)
	SetReference(ctx context.Context, ref refs.Reference) error
	// AdvanceReference moves name to newID with compare-and-swap semantics
	// against expectedOld. A symbolic name advances the reference it points
	// at.
	AdvanceReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error
	DeleteReference(ctx context.Context, name refs.Name) error

	// LookupObject fetches id and checks its kind unless kind is TypeAny.
	LookupObject(ctx context.Context, id object.ID, kind object.Type) (object.Type, []byte, error)
	HasObject(ctx context.Context, id object.ID) (bool, error)
	WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error)
	// WriteBlob stores data; length must equal len(data).
	WriteBlob(ctx context.Context, data []byte, length int) (object.ID, error)
	WriteTag(ctx context.Context, t *object.Tag) (object.ID, error)
	WriteTree(ctx context.Context, t *object.Tree) (object.ID, error)
	NewTreeBuilder(ctx context.Context, base *object.Tree) (*TreeBuilder, error)

	Close() error
}

// DB composes an ObjectDB and a RefDB into an Engine.
type DB struct {
	objects ObjectDB
	refs    RefDB
	closers []io.Closer
}

var _ Engine = (*DB)(nil)

// New composes an engine. Closers are closed in order by Close.
func New(objects ObjectDB, refdb RefDB, closers ...io.Closer) *DB {
	return &DB{objects: objects, refs: refdb, closers: closers}
}

// Objects exposes the underlying object database.
func (db *DB) Objects() ObjectDB {
	return db.objects
}

// Refs exposes the underlying reference database.
func (db *DB) Refs() RefDB {
	return db.refs
}

// LookupReference returns the named reference as stored.
func (db *DB) LookupReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	if err := name.Validate(); err != nil {
		return refs.Reference{}, ReferenceNotFound(string(name))
	}
	return db.refs.ReadReference(ctx, name)
}

// ListReferences lists references under prefix.
func (db *DB) ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error) {
	return db.refs.ListReferences(ctx, prefix)
}

// SetReference validates and stores ref. Direct references must point at an
// existing object.
func (db *DB) SetReference(ctx context.Context, ref refs.Reference) error {
	if err := ref.Name.Validate(); err != nil {
		return err
	}
	if ref.IsSymbolic() {
		if err := ref.SymbolicTarget.Validate(); err != nil {
			return fmt.Errorf("symbolic target: %w", err)
		}
		return db.refs.SetReference(ctx, ref)
	}
	ok, err := db.objects.HasObject(ctx, ref.Target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("set reference %q: %w", ref.Name, ObjectNotFound(ref.Target))
	}
	return db.refs.SetReference(ctx, ref)
}

// AdvanceReference implements Engine.
func (db *DB) AdvanceReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	if err := name.Validate(); err != nil {
		return err
	}
	target := name
	current, err := db.refs.ReadReference(ctx, name)
	switch {
	case err == nil && current.IsSymbolic():
		target = current.SymbolicTarget
	case err != nil && !errors.Is(err, ErrReferenceNotFound):
		return err
	}
	return db.refs.CompareAndSwapReference(ctx, target, newID, expectedOld)
}

// DeleteReference validates and removes name.
func (db *DB) DeleteReference(ctx context.Context, name refs.Name) error {
	if err := name.Validate(); err != nil {
		return err
	}
	return db.refs.DeleteReference(ctx, name)
}

// LookupObject implements Engine.
func (db *DB) LookupObject(ctx context.Context, id object.ID, kind object.Type) (object.Type, []byte, error) {
	return Lookup(ctx, db.objects, id, kind)
}

// HasObject reports whether id is stored.
func (db *DB) HasObject(ctx context.Context, id object.ID) (bool, error) {
	return db.objects.HasObject(ctx, id)
}

// WriteCommit serializes and stores a commit.
func (db *DB) WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error) {
	return db.objects.WriteObject(ctx, object.TypeCommit, object.MarshalCommit(c))
}

// WriteBlob stores data as a blob.
func (db *DB) WriteBlob(ctx context.Context, data []byte, length int) (object.ID, error) {
	if length != len(data) {
		return object.ZeroID, fmt.Errorf("write blob: length %d does not match %d content bytes", length, len(data))
	}
	return db.objects.WriteObject(ctx, object.TypeBlob, data)
}

// WriteTag serializes and stores an annotated tag.
func (db *DB) WriteTag(ctx context.Context, t *object.Tag) (object.ID, error) {
	return db.objects.WriteObject(ctx, object.TypeTag, object.MarshalTag(t))
}

// WriteTree serializes and stores a tree.
func (db *DB) WriteTree(ctx context.Context, t *object.Tree) (object.ID, error) {
	return db.objects.WriteObject(ctx, object.TypeTree, object.MarshalTree(t))
}

// NewTreeBuilder returns a builder seeded with base's entries (may be nil).
func (db *DB) NewTreeBuilder(ctx context.Context, base *object.Tree) (*TreeBuilder, error) {
	return NewTreeBuilder(db.objects, base)
}

// Close closes every registered closer and returns the first error.
func (db *DB) Close() error {
	var first error
	for _, c := range db.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Lookup reads id from objects and enforces kind unless it is TypeAny.
func Lookup(ctx context.Context, objects ObjectDB, id object.ID, kind object.Type) (object.Type, []byte, error) {
	got, data, err := objects.ReadObject(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if kind != object.TypeAny && got != kind {
		return "", nil, &TypeMismatchError{ID: id, Want: kind, Got: got}
	}
	return got, data, nil
}

// MatchPrefix reports whether a reference name falls under prefix. An empty
// prefix matches everything; a prefix without a trailing slash matches the
// exact name or anything below it.
func MatchPrefix(name refs.Name, prefix string) bool {
	if prefix == "" {
		return true
	}
	s := string(name)
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(s, prefix)
	}
	return s == prefix || strings.HasPrefix(s, prefix+"/")
}
