package repository

import (
	"context"
	"testing"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeBuilderEmpty(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	assert.Same(t, b, b.Root())
	assert.Same(t, r, b.Repository())
	assert.Zero(t, b.Len())

	tree, err := b.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.EmptyTreeID, tree.ID())
	assert.Same(t, r, tree.Repository())
}

func TestTreeBuilderNestedSubtrees(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("test content\n"))
	require.NoError(t, err)

	root, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	src, err := root.Subtree(ctx, "src")
	require.NoError(t, err)
	pkg, err := src.Subtree(ctx, "pkg")
	require.NoError(t, err)
	assert.Same(t, root, src.Root())
	assert.Same(t, root, pkg.Root())

	again, err := root.Subtree(ctx, "src")
	require.NoError(t, err)
	assert.Same(t, src, again)

	require.NoError(t, pkg.Insert("main.go", object.Of(blob), object.ModeFile))
	require.NoError(t, root.Insert("README", object.Of(blob), object.ModeFile))
	_, err = root.Subtree(ctx, "empty")
	require.NoError(t, err)

	tree, err := root.Write(ctx)
	require.NoError(t, err)

	names := make([]string, 0, tree.Len())
	for _, e := range tree.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"README", "src"}, names)

	leaf, err := tree.EntryByPath(ctx, "src/pkg/main.go")
	require.NoError(t, err)
	assert.Equal(t, blob, leaf.ID)

	// The same content built flat through the engine hashes identically.
	eb, err := r.engine.NewTreeBuilder(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, eb.Insert("main.go", blob, object.ModeFile))
	pkgID, err := eb.Write(ctx)
	require.NoError(t, err)
	pkgEntry, err := tree.EntryByPath(ctx, "src/pkg")
	require.NoError(t, err)
	assert.Equal(t, pkgID, pkgEntry.ID)
}

func TestTreeBuilderFromExisting(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "test content\n", "m")
	c, err := r.GetCommit(ctx, object.Of(commitID))
	require.NoError(t, err)
	base, err := c.Tree(ctx)
	require.NoError(t, err)

	b, err := r.TreeBuilderFrom(ctx, base)
	require.NoError(t, err)
	e, ok := b.Get("file.txt")
	require.True(t, ok)
	assert.Equal(t, storagetest.TestContentID, e.ID)

	unchanged, err := b.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, base.ID(), unchanged.ID())

	sub, err := b.Subtree(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, sub.Insert("a.txt", object.Of(e.ID), object.ModeFile))
	require.NoError(t, b.Remove("file.txt"))
	changed, err := b.Write(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, changed.Len())

	// Reopening the written tree seeds the subtree from storage.
	b2, err := r.TreeBuilderFrom(ctx, changed)
	require.NoError(t, err)
	docs, err := b2.Subtree(ctx, "docs")
	require.NoError(t, err)
	_, ok = docs.Get("a.txt")
	assert.True(t, ok)
}

func TestTreeBuilderValidation(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("x"))
	require.NoError(t, err)
	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)

	require.ErrorIs(t, b.Insert("f", object.Hex("nope"), object.ModeFile), ErrInvalidID)
	require.Error(t, b.Insert("a/b", object.Of(blob), object.ModeFile))
	require.Error(t, b.Insert("f", object.Of(blob), object.Mode(0o123)))
	require.Error(t, b.Remove("absent"))

	require.NoError(t, b.Insert("file", object.Of(blob), object.ModeFile))
	_, err = b.Subtree(ctx, "file")
	require.Error(t, err, "a file entry is not a directory")

	missing := object.MustParseID("3333333333333333333333333333333333333333")
	require.NoError(t, b.Insert("ghost", object.Of(missing), object.ModeFile))
	_, err = b.Write(ctx)
	require.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, b.Remove("ghost"))
	require.NoError(t, b.Insert("module", object.Of(missing), object.ModeSubmodule))
	_, err = b.Write(ctx)
	require.NoError(t, err, "submodule links need not exist locally")
}

func TestTreeBuilderInsertReplacesSubtree(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("x"))
	require.NoError(t, err)
	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)

	sub, err := b.Subtree(ctx, "dir")
	require.NoError(t, err)
	require.NoError(t, sub.Insert("inner", object.Of(blob), object.ModeFile))
	require.NoError(t, b.Insert("dir", object.Of(blob), object.ModeFile))

	tree, err := b.Write(ctx)
	require.NoError(t, err)
	e, ok := tree.Entry("dir")
	require.True(t, ok)
	assert.Equal(t, object.ModeFile, e.Mode)
}

func TestTreeBuilderDropsNestedEmptySubtrees(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("x"))
	require.NoError(t, err)

	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	a, err := b.Subtree(ctx, "a")
	require.NoError(t, err)
	_, err = a.Subtree(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len(), "pending subtree counts toward Len")

	tree, err := b.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.EmptyTreeID, tree.ID())

	// A stored directory whose only child is emptied disappears as well.
	require.NoError(t, b.Insert("keep", object.Of(blob), object.ModeFile))
	deep, err := b.Subtree(ctx, "x")
	require.NoError(t, err)
	deeper, err := deep.Subtree(ctx, "y")
	require.NoError(t, err)
	require.NoError(t, deeper.Insert("f", object.Of(blob), object.ModeFile))
	tree, err = b.Write(ctx)
	require.NoError(t, err)
	_, err = tree.EntryByPath(ctx, "x/y/f")
	require.NoError(t, err)

	base, err := r.TreeBuilderFrom(ctx, tree)
	require.NoError(t, err)
	x, err := base.Subtree(ctx, "x")
	require.NoError(t, err)
	y, err := x.Subtree(ctx, "y")
	require.NoError(t, err)
	require.NoError(t, y.Remove("f"))

	pruned, err := base.Write(ctx)
	require.NoError(t, err)
	names := make([]string, 0, pruned.Len())
	for _, e := range pruned.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"keep"}, names)
}

func TestTreeBuilderClear(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte("x"))
	require.NoError(t, err)

	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Insert("file", object.Of(blob), object.ModeFile))
	sub, err := b.Subtree(ctx, "dir")
	require.NoError(t, err)
	require.NoError(t, sub.Insert("inner", object.Of(blob), object.ModeFile))
	assert.Equal(t, 2, b.Len())

	b.Clear()
	assert.Zero(t, b.Len())
	_, ok := b.Get("file")
	assert.False(t, ok)

	tree, err := b.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.EmptyTreeID, tree.ID())

	again, err := b.Subtree(ctx, "dir")
	require.NoError(t, err)
	assert.NotSame(t, sub, again, "pending subtrees are discarded")
}
