package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		db, err := Open(context.Background(), ":memory:", "master")
		require.NoError(t, err)
		return db
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repo.db")

	db, err := Open(ctx, path, "trunk")
	require.NoError(t, err)
	c := storagetest.WriteCommit(t, ctx, db, "one\n", "root\n")
	require.NoError(t, db.AdvanceReference(ctx, refs.HEAD, c, object.ZeroID))
	require.NoError(t, db.Close())

	// The default branch of an existing database is not overwritten.
	db, err = Open(ctx, path, "master")
	require.NoError(t, err)
	defer db.Close()

	head, err := db.LookupReference(ctx, refs.HEAD)
	require.NoError(t, err)
	assert.Equal(t, refs.BranchName("trunk"), head.SymbolicTarget)

	ref, err := db.LookupReference(ctx, refs.BranchName("trunk"))
	require.NoError(t, err)
	assert.Equal(t, c, ref.Target)
}

func TestListEscapesLikeWildcards(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:", "master")
	require.NoError(t, err)
	defer db.Close()

	c := storagetest.WriteCommit(t, ctx, db, "one\n", "root\n")
	require.NoError(t, db.SetReference(ctx, refs.NewReference("refs/heads/a_b", c)))
	require.NoError(t, db.SetReference(ctx, refs.NewReference("refs/heads/axb", c)))

	got, err := db.ListReferences(ctx, "refs/heads/a_")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.ListReferences(ctx, "refs/heads/a_b")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, refs.Name("refs/heads/a_b"), got[0].Name)
}
