package gogit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEngine(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		db, err := InMemory("master")
		require.NoError(t, err)
		return db
	})
}

func TestFilesystemEngine(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		db, err := Init(filepath.Join(t.TempDir(), "repo.git"), "master")
		require.NoError(t, err)
		return db
	})
}

func TestInitSetsHead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo.git")
	db, err := Init(dir, "trunk")
	require.NoError(t, err)
	defer db.Close()

	head, err := db.LookupReference(context.Background(), refs.HEAD)
	require.NoError(t, err)
	assert.Equal(t, refs.BranchName("trunk"), head.SymbolicTarget)

	_, err = Init(dir, "trunk")
	require.Error(t, err)
}

// TestReadsGoGitCommits checks that objects written through go-git's own
// object model are readable, and that our encoding of them hashes to the
// same ids go-git computed.
func TestReadsGoGitCommits(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	blob := repo.Storer.NewEncodedObject()
	blob.SetType(plumbing.BlobObject)
	w, err := blob.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte("test content\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	blobHash, err := repo.Storer.SetEncodedObject(blob)
	require.NoError(t, err)

	tree := &gitobject.Tree{Entries: []gitobject.TreeEntry{{Name: "file.txt", Mode: 0o100644, Hash: blobHash}}}
	treeObj := repo.Storer.NewEncodedObject()
	require.NoError(t, tree.Encode(treeObj))
	treeHash, err := repo.Storer.SetEncodedObject(treeObj)
	require.NoError(t, err)

	when := time.Unix(1700000000, 0).In(time.FixedZone("", -7*3600))
	sig := gitobject.Signature{Name: "Alice", Email: "alice@example.com", When: when}
	commit := &gitobject.Commit{Author: sig, Committer: sig, Message: "initial\n", TreeHash: treeHash}
	commitObj := repo.Storer.NewEncodedObject()
	require.NoError(t, commit.Encode(commitObj))
	commitHash, err := repo.Storer.SetEncodedObject(commitObj)
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference("refs/heads/master", commitHash)))

	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	assert.Equal(t, storagetest.TestContentID, object.ID(blobHash))

	ref, err := db.LookupReference(ctx, "refs/heads/master")
	require.NoError(t, err)
	assert.Equal(t, object.ID(commitHash), ref.Target)

	_, data, err := db.LookupObject(ctx, ref.Target, object.TypeCommit)
	require.NoError(t, err)
	c, err := object.UnmarshalCommit(data)
	require.NoError(t, err)
	assert.Equal(t, object.ID(treeHash), c.Tree)
	assert.Equal(t, "Alice", c.Author.Name)
	assert.Equal(t, "initial\n", c.Message)
	assert.Equal(t, ref.Target, object.HashObject(object.TypeCommit, object.MarshalCommit(c)))

	_, data, err = db.LookupObject(ctx, c.Tree, object.TypeTree)
	require.NoError(t, err)
	tr, err := object.UnmarshalTree(data)
	require.NoError(t, err)
	require.Len(t, tr.Entries, 1)
	assert.Equal(t, object.ModeFile, tr.Entries[0].Mode)
}
