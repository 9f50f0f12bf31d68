package repository

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
)

// Object is any value materialized from the object store.
type Object interface {
	object.Identified
	Type() object.Type
	Repository() *Repository
}

var (
	_ Object = (*Commit)(nil)
	_ Object = (*Tree)(nil)
	_ Object = (*Blob)(nil)
	_ Object = (*Tag)(nil)
)

// Commit is an immutable commit tagged with its repository.
type Commit struct {
	id   object.ID
	data *object.Commit
	repo *Repository
}

func (c *Commit) ID() object.ID {
	if c == nil {
		return object.ZeroID
	}
	return c.id
}

func (c *Commit) Type() object.Type { return object.TypeCommit }
func (c *Commit) Repository() *Repository { return c.repo }
func (c *Commit) TreeID() object.ID { return c.data.Tree }
func (c *Commit) Author() object.Signature { return c.data.Author }
func (c *Commit) Committer() object.Signature { return c.data.Committer }
func (c *Commit) Message() string { return c.data.Message }
func (c *Commit) Encoding() string { return c.data.Encoding }
func (c *Commit) ParentCount() int { return len(c.data.Parents) }

// Time is the committer time.
func (c *Commit) Time() time.Time {
	return c.data.Committer.When
}

// Summary is the first line of the message.
func (c *Commit) Summary() string {
	line, _, _ := strings.Cut(strings.TrimLeft(c.data.Message, "\n"), "\n")
	return line
}

// SignatureArmor returns the commit's embedded signature, if any.
func (c *Commit) SignatureArmor() string {
	return c.data.Signature
}

// ParentIDs returns the parent ids in order.
func (c *Commit) ParentIDs() []object.ID {
	return append([]object.ID(nil), c.data.Parents...)
}

// Object returns a copy of the decoded commit.
func (c *Commit) Object() *object.Commit {
	cp := *c.data
	cp.Parents = c.ParentIDs()
	return &cp
}

// Tree fetches the commit's root tree.
func (c *Commit) Tree(ctx context.Context) (*Tree, error) {
	return c.repo.GetTree(ctx, object.Of(c.data.Tree))
}

// Parent fetches the n-th parent, counting from zero.
func (c *Commit) Parent(ctx context.Context, n int) (*Commit, error) {
	if n < 0 || n >= len(c.data.Parents) {
		return nil, fmt.Errorf("commit %s: parent %d out of range (%d parents)", c.id, n, len(c.data.Parents))
	}
	return c.repo.GetCommit(ctx, object.Of(c.data.Parents[n]))
}

// Parents fetches every parent in order.
func (c *Commit) Parents(ctx context.Context) ([]*Commit, error) {
	out := make([]*Commit, 0, len(c.data.Parents))
	for _, p := range c.data.Parents {
		pc, err := c.repo.GetCommit(ctx, object.Of(p))
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, nil
}

// Tree is an immutable tree tagged with its repository.
type Tree struct {
	id   object.ID
	data *object.Tree
	repo *Repository
}

func (t *Tree) ID() object.ID {
	if t == nil {
		return object.ZeroID
	}
	return t.id
}

func (t *Tree) Type() object.Type { return object.TypeTree }
func (t *Tree) Repository() *Repository { return t.repo }
func (t *Tree) Len() int { return len(t.data.Entries) }

// Entries returns the entries in tree order.
func (t *Tree) Entries() []object.TreeEntry {
	return append([]object.TreeEntry(nil), t.data.Entries...)
}

// Entry returns the direct child called name.
func (t *Tree) Entry(name string) (object.TreeEntry, bool) {
	for _, e := range t.data.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return object.TreeEntry{}, false
}

// EntryByPath walks slash-separated path through nested trees.
func (t *Tree) EntryByPath(ctx context.Context, path string) (object.TreeEntry, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := t
	for i, part := range parts {
		e, ok := cur.Entry(part)
		if !ok {
			return object.TreeEntry{}, fmt.Errorf("tree %s: %q: %w", t.id, path, ErrEntryNotFound)
		}
		if i == len(parts)-1 {
			return e, nil
		}
		if !e.Mode.IsDir() {
			return object.TreeEntry{}, fmt.Errorf("tree %s: %q: %q is not a directory: %w", t.id, path, part, ErrEntryNotFound)
		}
		next, err := t.repo.GetTree(ctx, object.Of(e.ID))
		if err != nil {
			return object.TreeEntry{}, err
		}
		cur = next
	}
	return object.TreeEntry{}, fmt.Errorf("tree %s: %q: %w", t.id, path, ErrEntryNotFound)
}

// Blob fetches the blob at path.
func (t *Tree) Blob(ctx context.Context, path string) (*Blob, error) {
	e, err := t.EntryByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return t.repo.GetBlob(ctx, object.Of(e.ID))
}

// Subtree fetches the tree at path.
func (t *Tree) Subtree(ctx context.Context, path string) (*Tree, error) {
	e, err := t.EntryByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return t.repo.GetTree(ctx, object.Of(e.ID))
}

// Blob is an immutable blob tagged with its repository.
type Blob struct {
	id   object.ID
	data []byte
	repo *Repository
}

func (b *Blob) ID() object.ID {
	if b == nil {
		return object.ZeroID
	}
	return b.id
}

func (b *Blob) Type() object.Type { return object.TypeBlob }
func (b *Blob) Repository() *Repository { return b.repo }
func (b *Blob) Size() int { return len(b.data) }

// Content returns a copy of the blob's bytes.
func (b *Blob) Content() []byte {
	return append([]byte(nil), b.data...)
}

// binaryProbe is how many leading bytes IsBinary inspects, as git does.
const binaryProbe = 8000

// IsBinary reports whether the content has a NUL byte near the start.
func (b *Blob) IsBinary() bool {
	probe := b.data
	if len(probe) > binaryProbe {
		probe = probe[:binaryProbe]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// Tag is an immutable annotated tag tagged with its repository.
type Tag struct {
	id   object.ID
	data *object.Tag
	repo *Repository
}

func (t *Tag) ID() object.ID {
	if t == nil {
		return object.ZeroID
	}
	return t.id
}

func (t *Tag) Type() object.Type { return object.TypeTag }
func (t *Tag) Repository() *Repository { return t.repo }
func (t *Tag) Name() string { return t.data.Name }
func (t *Tag) TargetID() object.ID { return t.data.Target }
func (t *Tag) TargetType() object.Type { return t.data.TargetType }
func (t *Tag) Tagger() object.Signature { return t.data.Tagger }
func (t *Tag) Message() string { return t.data.Message }

// Target fetches the tagged object.
func (t *Tag) Target(ctx context.Context) (Object, error) {
	return t.repo.GetObject(ctx, object.Of(t.data.Target))
}

// Peel follows nested tags down to a commit.
func (t *Tag) Peel(ctx context.Context) (*Commit, error) {
	return t.repo.peelToCommit(ctx, t)
}

// Reference is a reference tagged with its repository. References returned
// by GetReference are always direct.
type Reference struct {
	ref  refs.Reference
	repo *Repository
}

func (r *Reference) Repository() *Repository { return r.repo }
func (r *Reference) Name() refs.Name { return r.ref.Name }
func (r *Reference) IsSymbolic() bool { return r.ref.IsSymbolic() }

// Target is the object id of a direct reference, zero for a symbolic one.
func (r *Reference) Target() object.ID {
	return r.ref.Target
}

// ID lets a direct reference stand in as an object handle for its target.
func (r *Reference) ID() object.ID {
	if r == nil {
		return object.ZeroID
	}
	return r.ref.Target
}

// SymbolicTarget is the name a symbolic reference points at.
func (r *Reference) SymbolicTarget() refs.Name {
	return r.ref.SymbolicTarget
}

// IsBranch reports whether the reference lives under refs/heads/.
func (r *Reference) IsBranch() bool {
	_, ok := r.ref.Name.Branch()
	return ok
}

// Shorthand is the name without its refs/heads/ or refs/tags/ prefix.
func (r *Reference) Shorthand() string {
	return r.ref.Name.Short()
}

func (r *Reference) String() string {
	return r.ref.String()
}

// Resolve follows a symbolic reference to a direct one. Direct references
// resolve to themselves.
func (r *Reference) Resolve(ctx context.Context) (*Reference, error) {
	if !r.ref.IsSymbolic() {
		return r, nil
	}
	return r.repo.GetReference(ctx, string(r.ref.Name))
}

// Commit fetches the commit the reference points at.
func (r *Reference) Commit(ctx context.Context) (*Commit, error) {
	direct, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return r.repo.GetCommit(ctx, object.Of(direct.ref.Target))
}

// Peel fetches the target and follows annotated tags down to a commit.
func (r *Reference) Peel(ctx context.Context) (*Commit, error) {
	direct, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := r.repo.GetObject(ctx, object.Of(direct.ref.Target))
	if err != nil {
		return nil, err
	}
	return r.repo.peelToCommit(ctx, obj)
}

// maxPeelDepth bounds tag-to-tag chains.
const maxPeelDepth = 32

func (r *Repository) peelToCommit(ctx context.Context, obj Object) (*Commit, error) {
	for i := 0; i < maxPeelDepth; i++ {
		switch o := obj.(type) {
		case *Commit:
			return o, nil
		case *Tag:
			next, err := r.GetObject(ctx, object.Of(o.data.Target))
			if err != nil {
				return nil, err
			}
			obj = next
		default:
			return nil, fmt.Errorf("peel %s: %w", obj.ID(), &TypeMismatchError{ID: obj.ID(), Want: object.TypeCommit, Got: obj.Type()})
		}
	}
	return nil, fmt.Errorf("peel %s: tag chain deeper than %d", obj.ID(), maxPeelDepth)
}
