// Package gogit implements the storage engine on top of go-git's storers, so
// repositories created by git itself (loose objects, packfiles, packed-refs)
// can be read and extended.
package gogit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	gitstorage "github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gitmemory "github.com/go-git/go-git/v5/storage/memory"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
)

// Init creates a bare repository at gitDir whose HEAD points at
// refs/heads/<defaultBranch>.
func Init(gitDir, defaultBranch string) (*storage.DB, error) {
	if err := refs.ValidateShortName(defaultBranch); err != nil {
		return nil, fmt.Errorf("init: default branch: %w", err)
	}
	if _, err := os.Stat(filepath.Join(gitDir, "HEAD")); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gitDir)
	}
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", gitDir, err)
	}
	st := filesystem.NewStorage(osfs.New(gitDir), cache.NewObjectLRUDefault())
	if err := initStorer(st, defaultBranch); err != nil {
		return nil, err
	}
	return newDB(st), nil
}

// InMemory returns an engine over go-git's in-memory storer.
func InMemory(defaultBranch string) (*storage.DB, error) {
	st := gitmemory.NewStorage()
	if err := initStorer(st, defaultBranch); err != nil {
		return nil, err
	}
	return newDB(st), nil
}

// Open opens the repository at path. A bare git directory is opened as
// is; otherwise parent directories are searched for a .git directory.
func Open(path string) (*storage.DB, error) {
	if isBare(path) {
		st := filesystem.NewStorage(osfs.New(path), cache.NewObjectLRUDefault())
		return newDB(st), nil
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return newDB(repo.Storer), nil
}

func isBare(path string) bool {
	if fi, err := os.Stat(filepath.Join(path, "HEAD")); err != nil || fi.IsDir() {
		return false
	}
	fi, err := os.Stat(filepath.Join(path, "objects"))
	return err == nil && fi.IsDir()
}

func initStorer(st gitstorage.Storer, defaultBranch string) error {
	if _, err := git.Init(st, nil); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(defaultBranch))
	if err := st.SetReference(head); err != nil {
		return fmt.Errorf("init: set HEAD: %w", err)
	}
	return nil
}

func newDB(st gitstorage.Storer) *storage.DB {
	var closers []io.Closer
	if c, ok := st.(io.Closer); ok {
		closers = append(closers, c)
	}
	return storage.New(&Objects{s: st}, &Refs{s: st}, closers...)
}

func toHash(id object.ID) plumbing.Hash {
	return plumbing.Hash(id)
}

func fromHash(h plumbing.Hash) object.ID {
	return object.ID(h)
}

// Objects adapts a go-git storer to storage.ObjectDB.
type Objects struct {
	s gitstorage.Storer
}

var _ storage.ObjectDB = (*Objects)(nil)

// ReadObject implements storage.ObjectDB.
func (o *Objects) ReadObject(ctx context.Context, id object.ID) (object.Type, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	obj, err := o.s.EncodedObject(plumbing.AnyObject, toHash(id))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", nil, storage.ObjectNotFound(id)
		}
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	kind, err := object.ParseType(obj.Type().String())
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	r, err := obj.Reader()
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	return kind, data, nil
}

// HasObject implements storage.ObjectDB.
func (o *Objects) HasObject(ctx context.Context, id object.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := o.s.HasEncodedObject(toHash(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("object stat %s: %w", id, err)
	}
}

// WriteObject implements storage.ObjectDB.
func (o *Objects) WriteObject(ctx context.Context, kind object.Type, data []byte) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ZeroID, err
	}
	t, err := plumbing.ParseObjectType(string(kind))
	if err != nil {
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	obj := o.s.NewEncodedObject()
	obj.SetType(t)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	if err := w.Close(); err != nil {
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	h, err := o.s.SetEncodedObject(obj)
	if err != nil {
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	return fromHash(h), nil
}

// Refs adapts a go-git storer to storage.RefDB.
type Refs struct {
	s gitstorage.Storer

	// mu makes the existence check and write of a compare-and-swap atomic
	// within the process; go-git's CheckAndSetReference only guards
	// against a changed old value.
	mu sync.Mutex
}

var _ storage.RefDB = (*Refs)(nil)

func toReference(ref *plumbing.Reference) refs.Reference {
	name := refs.Name(ref.Name())
	if ref.Type() == plumbing.SymbolicReference {
		return refs.NewSymbolicReference(name, refs.Name(ref.Target()))
	}
	return refs.NewReference(name, fromHash(ref.Hash()))
}

func fromReference(ref refs.Reference) *plumbing.Reference {
	name := plumbing.ReferenceName(ref.Name)
	if ref.IsSymbolic() {
		return plumbing.NewSymbolicReference(name, plumbing.ReferenceName(ref.SymbolicTarget))
	}
	return plumbing.NewHashReference(name, toHash(ref.Target))
}

func (r *Refs) lookup(name refs.Name) (*plumbing.Reference, error) {
	ref, err := r.s.Reference(plumbing.ReferenceName(name))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, storage.ReferenceNotFound(string(name))
		}
		return nil, fmt.Errorf("read reference %q: %w", name, err)
	}
	return ref, nil
}

// ReadReference implements storage.RefDB.
func (r *Refs) ReadReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return refs.Reference{}, err
	}
	ref, err := r.lookup(name)
	if err != nil {
		return refs.Reference{}, err
	}
	return toReference(ref), nil
}

// ListReferences implements storage.RefDB.
func (r *Refs) ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := r.s.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer iter.Close()

	var out []refs.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := refs.Name(ref.Name())
		if storage.MatchPrefix(name, prefix) {
			out = append(out, toReference(ref))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetReference implements storage.RefDB.
func (r *Refs) SetReference(ctx context.Context, ref refs.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.s.SetReference(fromReference(ref)); err != nil {
		return fmt.Errorf("set reference %q: %w", ref.Name, err)
	}
	return nil
}

// CompareAndSwapReference implements storage.RefDB.
func (r *Refs) CompareAndSwapReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.lookup(name)
	exists := err == nil
	if err != nil && !errors.Is(err, storage.ErrReferenceNotFound) {
		return err
	}

	switch {
	case expectedOld.IsZero() && exists:
		return fmt.Errorf("update ref %q: %w (expected absent)", name, storage.ErrRefConflict)
	case !expectedOld.IsZero() && !exists:
		return fmt.Errorf("update ref %q: %w (expected %s, found none)", name, storage.ErrRefConflict, expectedOld)
	case !expectedOld.IsZero() && (cur.Type() != plumbing.HashReference || fromHash(cur.Hash()) != expectedOld):
		return fmt.Errorf("update ref %q: %w (expected %s)", name, storage.ErrRefConflict, expectedOld)
	}

	next := plumbing.NewHashReference(plumbing.ReferenceName(name), toHash(newID))
	if !exists {
		cur = nil
	}
	if err := r.s.CheckAndSetReference(next, cur); err != nil {
		if errors.Is(err, gitstorage.ErrReferenceHasChanged) {
			return fmt.Errorf("update ref %q: %w", name, storage.ErrRefConflict)
		}
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return nil
}

// DeleteReference implements storage.RefDB.
func (r *Refs) DeleteReference(ctx context.Context, name refs.Name) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lookup(name); err != nil {
		return err
	}
	if err := r.s.RemoveReference(plumbing.ReferenceName(name)); err != nil {
		return fmt.Errorf("delete reference %q: %w", name, err)
	}
	return nil
}
