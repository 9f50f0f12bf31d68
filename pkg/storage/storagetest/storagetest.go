// Package storagetest holds the behavioural test suite every storage engine
// must pass.
package storagetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty engine. The suite closes it.
type Factory func(t *testing.T) storage.Engine

// Known git object ids used to check engines hash like git does.
var (
	EmptyBlobID   = object.MustParseID("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	TestContentID = object.MustParseID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
)

// Run executes the suite against engines produced by newEngine.
func Run(t *testing.T, newEngine Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, e storage.Engine)
	}{
		{"BlobIDsMatchGit", testBlobIDsMatchGit},
		{"WriteBlobLengthMismatch", testWriteBlobLengthMismatch},
		{"LookupMissingObject", testLookupMissingObject},
		{"LookupTypeMismatch", testLookupTypeMismatch},
		{"CommitAndTagRoundTrip", testCommitAndTagRoundTrip},
		{"TreeBuilder", testTreeBuilder},
		{"TreeBuilderMissingEntry", testTreeBuilderMissingEntry},
		{"DirectAndSymbolicReferences", testDirectAndSymbolicReferences},
		{"SetReferenceRequiresObject", testSetReferenceRequiresObject},
		{"ListReferences", testListReferences},
		{"AdvanceReference", testAdvanceReference},
		{"AdvanceThroughSymbolic", testAdvanceThroughSymbolic},
		{"DeleteReference", testDeleteReference},
		{"DeleteReferenceRejectsInvalidName", testDeleteReferenceRejectsInvalidName},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t)
			t.Cleanup(func() { require.NoError(t, e.Close()) })
			tc.fn(t, context.Background(), e)
		})
	}
}

// Sig returns a fixed signature for test commits and tags.
func Sig(name string) object.Signature {
	return object.Signature{
		Name:  name,
		Email: name + "@example.com",
		When:  time.Unix(1700000000, 0).In(time.FixedZone("", 3600)),
	}
}

// WriteCommit stores a commit with a single-file tree and returns its id.
func WriteCommit(t *testing.T, ctx context.Context, e storage.Engine, content, message string, parents ...object.ID) object.ID {
	t.Helper()
	blob, err := e.WriteBlob(ctx, []byte(content), len(content))
	require.NoError(t, err)
	tree, err := e.WriteTree(ctx, &object.Tree{Entries: []object.TreeEntry{
		{Name: "file.txt", Mode: object.ModeFile, ID: blob},
	}})
	require.NoError(t, err)
	id, err := e.WriteCommit(ctx, &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    Sig("author"),
		Committer: Sig("committer"),
		Message:   message,
	})
	require.NoError(t, err)
	return id
}

func testBlobIDsMatchGit(t *testing.T, ctx context.Context, e storage.Engine) {
	id, err := e.WriteBlob(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, EmptyBlobID, id)

	content := []byte("test content\n")
	id, err = e.WriteBlob(ctx, content, len(content))
	require.NoError(t, err)
	assert.Equal(t, TestContentID, id)

	again, err := e.WriteBlob(ctx, content, len(content))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	kind, data, err := e.LookupObject(ctx, id, object.TypeBlob)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, kind)
	assert.Equal(t, content, data)

	ok, err := e.HasObject(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testWriteBlobLengthMismatch(t *testing.T, ctx context.Context, e storage.Engine) {
	_, err := e.WriteBlob(ctx, []byte("abc"), 2)
	require.Error(t, err)
}

func testLookupMissingObject(t *testing.T, ctx context.Context, e storage.Engine) {
	_, _, err := e.LookupObject(ctx, TestContentID, object.TypeBlob)
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	ok, err := e.HasObject(ctx, TestContentID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testLookupTypeMismatch(t *testing.T, ctx context.Context, e storage.Engine) {
	content := []byte("test content\n")
	id, err := e.WriteBlob(ctx, content, len(content))
	require.NoError(t, err)

	for _, want := range []object.Type{object.TypeCommit, object.TypeTree, object.TypeTag} {
		_, _, err := e.LookupObject(ctx, id, want)
		require.ErrorIs(t, err, storage.ErrObjectTypeMismatch)
		var mismatch *storage.TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, want, mismatch.Want)
		assert.Equal(t, object.TypeBlob, mismatch.Got)
		assert.Equal(t, id, mismatch.ID)
	}

	kind, _, err := e.LookupObject(ctx, id, object.TypeAny)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, kind)
}

func testCommitAndTagRoundTrip(t *testing.T, ctx context.Context, e storage.Engine) {
	root := WriteCommit(t, ctx, e, "one\n", "root\n")
	child := WriteCommit(t, ctx, e, "two\n", "child\n", root)

	_, data, err := e.LookupObject(ctx, child, object.TypeCommit)
	require.NoError(t, err)
	c, err := object.UnmarshalCommit(data)
	require.NoError(t, err)
	assert.Equal(t, []object.ID{root}, c.Parents)
	assert.Equal(t, "child\n", c.Message)
	assert.Equal(t, object.HashObject(object.TypeCommit, data), child)

	tagID, err := e.WriteTag(ctx, &object.Tag{
		Target:     child,
		TargetType: object.TypeCommit,
		Name:       "v1",
		Tagger:     Sig("tagger"),
		Message:    "release\n",
	})
	require.NoError(t, err)
	_, data, err = e.LookupObject(ctx, tagID, object.TypeTag)
	require.NoError(t, err)
	tag, err := object.UnmarshalTag(data)
	require.NoError(t, err)
	assert.Equal(t, child, tag.Target)
	assert.Equal(t, "v1", tag.Name)
}

func testTreeBuilder(t *testing.T, ctx context.Context, e storage.Engine) {
	blob, err := e.WriteBlob(ctx, []byte("x"), 1)
	require.NoError(t, err)

	b, err := e.NewTreeBuilder(ctx, nil)
	require.NoError(t, err)
	id, err := b.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.EmptyTreeID, id)

	require.NoError(t, b.Insert("b.txt", blob, object.ModeFile))
	require.NoError(t, b.Insert("a.txt", blob, object.ModeExecutable))
	require.Error(t, b.Insert("a/b", blob, object.ModeFile))
	require.Error(t, b.Insert("c", blob, object.Mode(0o100600)))
	assert.Equal(t, 2, b.Len())

	id, err = b.Write(ctx)
	require.NoError(t, err)
	_, data, err := e.LookupObject(ctx, id, object.TypeTree)
	require.NoError(t, err)
	tree, err := object.UnmarshalTree(data)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	assert.Equal(t, "a.txt", tree.Entries[0].Name)
	assert.Equal(t, object.ModeExecutable, tree.Entries[0].Mode)

	seeded, err := e.NewTreeBuilder(ctx, tree)
	require.NoError(t, err)
	require.NoError(t, seeded.Remove("a.txt"))
	require.Error(t, seeded.Remove("a.txt"))
	_, ok := seeded.Get("b.txt")
	assert.True(t, ok)
}

func testTreeBuilderMissingEntry(t *testing.T, ctx context.Context, e storage.Engine) {
	b, err := e.NewTreeBuilder(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, b.Insert("ghost", TestContentID, object.ModeFile))
	_, err = b.Write(ctx)
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func testDirectAndSymbolicReferences(t *testing.T, ctx context.Context, e storage.Engine) {
	c := WriteCommit(t, ctx, e, "one\n", "root\n")
	master := refs.BranchName("master")

	require.NoError(t, e.SetReference(ctx, refs.NewReference(master, c)))
	require.NoError(t, e.SetReference(ctx, refs.NewSymbolicReference(refs.HEAD, master)))

	ref, err := e.LookupReference(ctx, master)
	require.NoError(t, err)
	assert.Equal(t, c, ref.Target)
	assert.False(t, ref.IsSymbolic())

	head, err := e.LookupReference(ctx, refs.HEAD)
	require.NoError(t, err)
	assert.True(t, head.IsSymbolic())
	assert.Equal(t, master, head.SymbolicTarget)

	_, err = e.LookupReference(ctx, refs.BranchName("missing"))
	require.ErrorIs(t, err, storage.ErrReferenceNotFound)
}

func testSetReferenceRequiresObject(t *testing.T, ctx context.Context, e storage.Engine) {
	err := e.SetReference(ctx, refs.NewReference(refs.BranchName("x"), TestContentID))
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	err = e.SetReference(ctx, refs.NewReference("not-a-ref", TestContentID))
	require.Error(t, err)
}

func testListReferences(t *testing.T, ctx context.Context, e storage.Engine) {
	c := WriteCommit(t, ctx, e, "one\n", "root\n")
	for _, n := range []refs.Name{"refs/heads/b", "refs/heads/a", "refs/heads/feature/x", "refs/tags/v1"} {
		require.NoError(t, e.SetReference(ctx, refs.NewReference(n, c)))
	}

	heads, err := e.ListReferences(ctx, refs.HeadsPrefix)
	require.NoError(t, err)
	var names []string
	for _, r := range heads {
		names = append(names, string(r.Name))
	}
	assert.Equal(t, []string{"refs/heads/a", "refs/heads/b", "refs/heads/feature/x"}, names)
	assert.True(t, sort.StringsAreSorted(names))

	tags, err := e.ListReferences(ctx, "refs/tags")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, refs.TagName("v1"), tags[0].Name)
}

func testAdvanceReference(t *testing.T, ctx context.Context, e storage.Engine) {
	root := WriteCommit(t, ctx, e, "one\n", "root\n")
	child := WriteCommit(t, ctx, e, "two\n", "child\n", root)
	name := refs.BranchName("topic")

	require.NoError(t, e.AdvanceReference(ctx, name, root, object.ZeroID))
	err := e.AdvanceReference(ctx, name, root, object.ZeroID)
	require.ErrorIs(t, err, storage.ErrRefConflict)

	err = e.AdvanceReference(ctx, name, child, child)
	require.ErrorIs(t, err, storage.ErrRefConflict)

	require.NoError(t, e.AdvanceReference(ctx, name, child, root))
	ref, err := e.LookupReference(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, child, ref.Target)

	err = e.AdvanceReference(ctx, refs.BranchName("absent"), child, root)
	require.ErrorIs(t, err, storage.ErrRefConflict)
}

func testAdvanceThroughSymbolic(t *testing.T, ctx context.Context, e storage.Engine) {
	root := WriteCommit(t, ctx, e, "one\n", "root\n")
	master := refs.BranchName("master")
	require.NoError(t, e.SetReference(ctx, refs.NewSymbolicReference(refs.HEAD, master)))

	require.NoError(t, e.AdvanceReference(ctx, refs.HEAD, root, object.ZeroID))

	head, err := e.LookupReference(ctx, refs.HEAD)
	require.NoError(t, err)
	assert.True(t, head.IsSymbolic(), "HEAD must stay symbolic")

	ref, err := e.LookupReference(ctx, master)
	require.NoError(t, err)
	assert.Equal(t, root, ref.Target)
}

func testDeleteReference(t *testing.T, ctx context.Context, e storage.Engine) {
	c := WriteCommit(t, ctx, e, "one\n", "root\n")
	name := refs.BranchName("gone")
	require.NoError(t, e.SetReference(ctx, refs.NewReference(name, c)))
	require.NoError(t, e.DeleteReference(ctx, name))

	_, err := e.LookupReference(ctx, name)
	require.ErrorIs(t, err, storage.ErrReferenceNotFound)
	require.ErrorIs(t, e.DeleteReference(ctx, name), storage.ErrReferenceNotFound)
}

func testDeleteReferenceRejectsInvalidName(t *testing.T, ctx context.Context, e storage.Engine) {
	c := WriteCommit(t, ctx, e, "one\n", "root\n")
	require.NoError(t, e.SetReference(ctx, refs.NewReference(refs.TagName("v1"), c)))

	for _, name := range []refs.Name{
		"refs/tags/../../../victim",
		"refs/tags/../v1",
		"not-a-ref",
		"refs/heads/x.lock",
	} {
		err := e.DeleteReference(ctx, name)
		require.Error(t, err, name)
		assert.NotErrorIs(t, err, storage.ErrReferenceNotFound, name)
	}

	ref, err := e.LookupReference(ctx, refs.TagName("v1"))
	require.NoError(t, err)
	assert.Equal(t, c, ref.Target)
}
