package repository

import (
	"context"
	"testing"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTagAndPeel(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "a", "release")

	tag, err := r.CreateTag(ctx, "v1.0.0", object.Of(commitID), storagetest.Sig("tagger"), "first release\n", false)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", tag.Name())
	assert.Equal(t, commitID, tag.TargetID())
	assert.Equal(t, object.TypeCommit, tag.TargetType())

	fetched, err := r.GetTag(ctx, object.Of(tag.ID()))
	require.NoError(t, err)
	assert.Equal(t, "first release\n", fetched.Message())
	assert.Equal(t, "tagger", fetched.Tagger().Name)

	target, err := fetched.Target(ctx)
	require.NoError(t, err)
	assert.Equal(t, commitID, target.ID())

	peeled, err := fetched.Peel(ctx)
	require.NoError(t, err)
	assert.Equal(t, commitID, peeled.ID())

	ref, err := r.GetReference(ctx, string(refs.TagName("v1.0.0")))
	require.NoError(t, err)
	assert.Equal(t, tag.ID(), ref.Target())
	viaRef, err := ref.Peel(ctx)
	require.NoError(t, err)
	assert.Equal(t, commitID, viaRef.ID())
	_, err = ref.Commit(ctx)
	require.ErrorIs(t, err, ErrObjectTypeMismatch)

	_, err = r.CreateTag(ctx, "v1.0.0", object.Of(commitID), storagetest.Sig("tagger"), "again", false)
	require.Error(t, err)
	_, err = r.CreateTag(ctx, "v1.0.0", object.Of(commitID), storagetest.Sig("tagger"), "again", true)
	require.NoError(t, err)
}

func TestTagOfTagPeels(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "a", "m")

	inner, err := r.CreateTag(ctx, "inner", object.Of(commitID), storagetest.Sig("t"), "inner", false)
	require.NoError(t, err)
	outer, err := r.CreateTag(ctx, "outer", object.Handle(inner), storagetest.Sig("t"), "outer", false)
	require.NoError(t, err)
	assert.Equal(t, object.TypeTag, outer.TargetType())

	c, err := outer.Peel(ctx)
	require.NoError(t, err)
	assert.Equal(t, commitID, c.ID())
}

func TestPeelTreeTagFails(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "a", "m")
	c, err := r.GetCommit(ctx, object.Of(commitID))
	require.NoError(t, err)

	tag, err := r.CreateTag(ctx, "tree-tag", object.Of(c.TreeID()), storagetest.Sig("t"), "tree", false)
	require.NoError(t, err)
	_, err = tag.Peel(ctx)
	require.ErrorIs(t, err, ErrObjectTypeMismatch)
}

func TestLightweightTags(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "a", "m")

	_, err := r.CreateLightweightTag(ctx, "light", object.Of(commitID), false)
	require.NoError(t, err)
	_, err = r.CreateLightweightTag(ctx, "", object.Of(commitID), false)
	require.Error(t, err)

	tags, err := r.Tags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "light", tags[0].Shorthand())

	c, err := tags[0].Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, commitID, c.ID())
}

func TestCreateTagMissingTarget(t *testing.T) {
	r, _ := newTestRepo(t)
	missing := object.MustParseID("4444444444444444444444444444444444444444")
	_, err := r.CreateTag(context.Background(), "v0", object.Of(missing), storagetest.Sig("t"), "m", false)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCreateTagRejectsUnencodableTagger(t *testing.T) {
	r, engine := newTestRepo(t)
	ctx := context.Background()
	commitID := seedCommit(t, r, "a", "release")
	_, _, before := engine.counts()

	tagger := object.Signature{Name: "T\nobject 1111111111111111111111111111111111111111", Email: "t@example.com"}
	_, err := r.CreateTag(ctx, "v1", object.Of(commitID), tagger, "m", false)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = r.CreateTag(ctx, "v1", object.Of(commitID), object.Signature{Name: "T", Email: "<t@example.com>"}, "m", false)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, _, after := engine.counts()
	assert.Equal(t, before, after, "nothing written")
	_, err = r.LookupReference(ctx, string(refs.TagName("v1")))
	require.ErrorIs(t, err, ErrReferenceNotFound)
}
