// Package memory implements an in-process storage engine. It is used by tests
// and by the CLI's --backend=memory mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
)

type storedObject struct {
	kind object.Type
	data []byte
}

// Objects is a map-backed ObjectDB.
type Objects struct {
	mu      sync.RWMutex
	objects map[object.ID]storedObject
}

// NewObjects returns an empty object database.
func NewObjects() *Objects {
	return &Objects{objects: make(map[object.ID]storedObject)}
}

// ReadObject implements storage.ObjectDB.
func (o *Objects) ReadObject(ctx context.Context, id object.ID) (object.Type, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	o.mu.RLock()
	obj, ok := o.objects[id]
	o.mu.RUnlock()
	if !ok {
		return "", nil, storage.ObjectNotFound(id)
	}
	return obj.kind, append([]byte(nil), obj.data...), nil
}

// HasObject implements storage.ObjectDB.
func (o *Objects) HasObject(ctx context.Context, id object.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o.mu.RLock()
	_, ok := o.objects[id]
	o.mu.RUnlock()
	return ok, nil
}

// WriteObject implements storage.ObjectDB.
func (o *Objects) WriteObject(ctx context.Context, kind object.Type, data []byte) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ZeroID, err
	}
	id := object.HashObject(kind, data)
	o.mu.Lock()
	if _, ok := o.objects[id]; !ok {
		o.objects[id] = storedObject{kind: kind, data: append([]byte(nil), data...)}
	}
	o.mu.Unlock()
	return id, nil
}

// Len reports the number of stored objects.
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.objects)
}

// Refs is a map-backed RefDB.
type Refs struct {
	mu   sync.RWMutex
	refs map[refs.Name]refs.Reference
}

// NewRefs returns an empty reference database.
func NewRefs() *Refs {
	return &Refs{refs: make(map[refs.Name]refs.Reference)}
}

// ReadReference implements storage.RefDB.
func (r *Refs) ReadReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return refs.Reference{}, err
	}
	r.mu.RLock()
	ref, ok := r.refs[name]
	r.mu.RUnlock()
	if !ok {
		return refs.Reference{}, storage.ReferenceNotFound(string(name))
	}
	return ref, nil
}

// ListReferences implements storage.RefDB.
func (r *Refs) ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]refs.Reference, 0, len(r.refs))
	for name, ref := range r.refs {
		if storage.MatchPrefix(name, prefix) {
			out = append(out, ref)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetReference implements storage.RefDB.
func (r *Refs) SetReference(ctx context.Context, ref refs.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.refs[ref.Name] = ref
	r.mu.Unlock()
	return nil
}

// CompareAndSwapReference implements storage.RefDB.
func (r *Refs) CompareAndSwapReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, exists := r.refs[name]
	switch {
	case expectedOld.IsZero() && exists:
		return storage.ErrRefConflict
	case !expectedOld.IsZero() && (!exists || cur.IsSymbolic() || cur.Target != expectedOld):
		return storage.ErrRefConflict
	}
	r.refs[name] = refs.NewReference(name, newID)
	return nil
}

// DeleteReference implements storage.RefDB.
func (r *Refs) DeleteReference(ctx context.Context, name refs.Name) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[name]; !ok {
		return storage.ReferenceNotFound(string(name))
	}
	delete(r.refs, name)
	return nil
}

// New returns an empty in-memory engine whose HEAD points at
// refs/heads/<defaultBranch>.
func New(defaultBranch string) *storage.DB {
	rdb := NewRefs()
	if defaultBranch != "" {
		rdb.refs[refs.HEAD] = refs.NewSymbolicReference(refs.HEAD, refs.BranchName(defaultBranch))
	}
	return storage.New(NewObjects(), rdb)
}
