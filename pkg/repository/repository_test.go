package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/odvcencio/gitobj/pkg/storage/memory"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingEngine records how often the repository reaches storage.
type countingEngine struct {
	storage.Engine

	mu            sync.Mutex
	objectLookups int
	refLookups    int
	writes        int
	advanceErr    error
}

func (e *countingEngine) LookupObject(ctx context.Context, id object.ID, kind object.Type) (object.Type, []byte, error) {
	e.mu.Lock()
	e.objectLookups++
	e.mu.Unlock()
	return e.Engine.LookupObject(ctx, id, kind)
}

func (e *countingEngine) LookupReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	e.mu.Lock()
	e.refLookups++
	e.mu.Unlock()
	return e.Engine.LookupReference(ctx, name)
}

func (e *countingEngine) WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error) {
	e.mu.Lock()
	e.writes++
	e.mu.Unlock()
	return e.Engine.WriteCommit(ctx, c)
}

func (e *countingEngine) WriteTag(ctx context.Context, tag *object.Tag) (object.ID, error) {
	e.mu.Lock()
	e.writes++
	e.mu.Unlock()
	return e.Engine.WriteTag(ctx, tag)
}

func (e *countingEngine) WriteBlob(ctx context.Context, data []byte, length int) (object.ID, error) {
	e.mu.Lock()
	e.writes++
	e.mu.Unlock()
	return e.Engine.WriteBlob(ctx, data, length)
}

func (e *countingEngine) AdvanceReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	if e.advanceErr != nil {
		return e.advanceErr
	}
	return e.Engine.AdvanceReference(ctx, name, newID, expectedOld)
}

func (e *countingEngine) counts() (objects, refs, writes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.objectLookups, e.refLookups, e.writes
}

func newTestRepo(t *testing.T, opts ...Option) (*Repository, *countingEngine) {
	t.Helper()
	engine := &countingEngine{Engine: memory.New(DefaultBranch)}
	t.Cleanup(func() { require.NoError(t, engine.Close()) })
	r, err := New(engine, opts...)
	require.NoError(t, err)
	return r, engine
}

// seedCommit writes a one-file commit directly through the engine.
func seedCommit(t *testing.T, r *Repository, content, message string, parents ...object.ID) object.ID {
	t.Helper()
	return storagetest.WriteCommit(t, context.Background(), r.engine, content, message, parents...)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	engine := memory.New("")
	_, err = New(engine, WithSymbolicDepth(0))
	require.Error(t, err)

	_, err = New(engine, WithDefaultBranch("bad..name"))
	require.Error(t, err)

	r, err := New(engine, WithDefaultBranch("main"))
	require.NoError(t, err)
	assert.Equal(t, "main", r.DefaultBranchName())
	assert.Same(t, storage.Engine(engine), r.Engine())
	assert.NotNil(t, r.Metrics())
}

func TestLookupTagsRepository(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	id := seedCommit(t, r, "hello\n", "first")

	c, err := r.GetCommit(ctx, object.Hex(id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, c.ID())
	assert.Same(t, r, c.Repository())
	assert.Equal(t, "first", c.Message())
	assert.Equal(t, 0, c.ParentCount())

	byRaw, err := r.GetCommit(ctx, object.Raw(id.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, c.TreeID(), byRaw.TreeID())

	byHandle, err := r.GetCommit(ctx, object.Handle(c))
	require.NoError(t, err)
	assert.Equal(t, id, byHandle.ID())

	tree, err := c.Tree(ctx)
	require.NoError(t, err)
	assert.Same(t, r, tree.Repository())
	require.Equal(t, 1, tree.Len())

	blob, err := tree.Blob(ctx, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(blob.Content()))
	assert.Same(t, r, blob.Repository())
	assert.False(t, blob.IsBinary())
}

func TestLookupInvalidIDSkipsStorage(t *testing.T) {
	r, engine := newTestRepo(t)
	ctx := context.Background()

	inputs := []object.IDLike{
		object.Hex("abc"),
		object.Hex(strings.Repeat("z", object.HexSize)),
		object.Hex(strings.Repeat("a", object.HexSize+2)),
		object.Raw([]byte{1, 2, 3}),
		{},
	}
	for _, in := range inputs {
		_, err := r.GetCommit(ctx, in)
		require.ErrorIs(t, err, ErrInvalidID, in.String())
		_, err = r.GetTree(ctx, in)
		require.ErrorIs(t, err, ErrInvalidID)
		_, err = r.GetBlob(ctx, in)
		require.ErrorIs(t, err, ErrInvalidID)
		_, err = r.GetTag(ctx, in)
		require.ErrorIs(t, err, ErrInvalidID)
	}
	objects, _, _ := engine.counts()
	assert.Zero(t, objects)
	assert.Equal(t, float64(len(inputs)), testutil.ToFloat64(r.metrics.lookups.WithLabelValues("commit", "invalid_id")))
}

func TestLookupMissingObject(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.GetBlob(context.Background(), object.Of(storagetest.EmptyBlobID))
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLookupTypeMismatch(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "x", "m")
	c, err := r.GetCommit(ctx, object.Of(commitID))
	require.NoError(t, err)
	blobID, err := r.CreateBlobFromBuffer(ctx, []byte("data"))
	require.NoError(t, err)

	cases := []struct {
		name string
		get  func() error
		got  object.Type
	}{
		{"tree as commit", func() error { _, err := r.GetCommit(ctx, object.Of(c.TreeID())); return err }, object.TypeTree},
		{"commit as tree", func() error { _, err := r.GetTree(ctx, object.Of(commitID)); return err }, object.TypeCommit},
		{"commit as blob", func() error { _, err := r.GetBlob(ctx, object.Of(commitID)); return err }, object.TypeCommit},
		{"blob as tag", func() error { _, err := r.GetTag(ctx, object.Of(blobID)); return err }, object.TypeBlob},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.get()
			require.ErrorIs(t, err, ErrObjectTypeMismatch)
			var mismatch *TypeMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tc.got, mismatch.Got)
		})
	}
}

func TestGetObjectDispatchesOnKind(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	id := seedCommit(t, r, "x", "m")

	obj, err := r.GetObject(ctx, object.Of(id))
	require.NoError(t, err)
	c, ok := obj.(*Commit)
	require.True(t, ok)
	assert.Equal(t, id, c.ID())

	obj, err = r.GetObject(ctx, object.Of(c.TreeID()))
	require.NoError(t, err)
	assert.Equal(t, object.TypeTree, obj.Type())
}

func TestCommitValuesAreImmutable(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	root := seedCommit(t, r, "a", "root")
	child := seedCommit(t, r, "b", "child\n\nbody", root)

	c, err := r.GetCommit(ctx, object.Of(child))
	require.NoError(t, err)
	assert.Equal(t, "child", c.Summary())

	parents := c.ParentIDs()
	parents[0] = object.ZeroID
	assert.Equal(t, root, c.ParentIDs()[0])

	raw := c.Object()
	raw.Message = "changed"
	assert.Equal(t, "child\n\nbody", c.Message())

	p, err := c.Parent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, root, p.ID())
	_, err = c.Parent(ctx, 1)
	require.Error(t, err)
}

func TestTreeEntryByPath(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("nested"))
	require.NoError(t, err)
	sub, err := b.Subtree(ctx, "dir")
	require.NoError(t, err)
	require.NoError(t, sub.Insert("leaf.txt", object.Of(blob), object.ModeFile))
	require.NoError(t, b.Insert("top.txt", object.Of(blob), object.ModeFile))
	tree, err := b.Write(ctx)
	require.NoError(t, err)

	e, err := tree.EntryByPath(ctx, "dir/leaf.txt")
	require.NoError(t, err)
	assert.Equal(t, blob, e.ID)

	_, err = tree.EntryByPath(ctx, "dir/missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
	_, err = tree.EntryByPath(ctx, "top.txt/below")
	require.ErrorIs(t, err, ErrEntryNotFound)

	subtree, err := tree.Subtree(ctx, "dir")
	require.NoError(t, err)
	assert.Equal(t, 1, subtree.Len())
}

func TestBlobIsBinary(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	id, err := r.CreateBlobFromBuffer(ctx, []byte{'a', 0, 'b'})
	require.NoError(t, err)
	b, err := r.GetBlob(ctx, object.Of(id))
	require.NoError(t, err)
	assert.True(t, b.IsBinary())
	assert.Equal(t, 3, b.Size())
}
