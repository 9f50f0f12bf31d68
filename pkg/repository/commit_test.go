package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/odvcencio/gitobj/pkg/storage/storagetest"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSingleFileTree(t *testing.T, r *Repository, name, content string) *Tree {
	t.Helper()
	ctx := context.Background()
	blob, err := r.CreateBlobFromBuffer(ctx, []byte(content))
	require.NoError(t, err)
	b, err := r.TreeBuilder(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Insert(name, object.Of(blob), object.ModeFile))
	tree, err := b.Write(ctx)
	require.NoError(t, err)
	return tree
}

func TestCreateCommitRootCommit(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "README", "hello\n")
	author := storagetest.Sig("author")
	committer := storagetest.Sig("committer")

	id, err := r.CreateCommit(ctx, "", author, committer, "initial", object.Hex(tree.ID().String()), nil)
	require.NoError(t, err)
	assert.NotEqual(t, tree.ID(), id)
	assert.NotEqual(t, object.EmptyTreeID, id)

	c, err := r.GetCommit(ctx, object.Of(id))
	require.NoError(t, err)
	assert.Equal(t, 0, c.ParentCount())
	assert.Empty(t, c.ParentIDs())
	assert.Equal(t, "initial", c.Message())
	assert.Equal(t, tree.ID(), c.TreeID())
	assert.Equal(t, author.Name, c.Author().Name)
	assert.Equal(t, author.When.Unix(), c.Author().When.Unix())
	assert.Equal(t, committer.Email, c.Committer().Email)

	_, err = r.GetReference(ctx, "HEAD")
	require.ErrorIs(t, err, ErrReferenceResolution, "no ref update requested")
}

func TestCreateCommitMissingTreeWritesNothing(t *testing.T) {
	r, engine := newTestRepo(t)
	missing := object.MustParseID("2222222222222222222222222222222222222222")

	_, err := r.CreateCommit(context.Background(), "HEAD", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Of(missing), nil)
	require.ErrorIs(t, err, ErrObjectNotFound)

	_, _, writes := engine.counts()
	assert.Zero(t, writes)
	_, err = r.LookupReference(context.Background(), string(refs.BranchName(DefaultBranch)))
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestCreateCommitRejectsUnencodableIdentity(t *testing.T) {
	r, engine := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "README", "hello\n")
	_, _, before := engine.counts()

	for _, tc := range []struct {
		name      string
		author    object.Signature
		committer object.Signature
	}{
		{"newline in author name", object.Signature{Name: "Eve\nparent 1111111111111111111111111111111111111111", Email: "e@example.com"}, storagetest.Sig("c")},
		{"bracket in author name", object.Signature{Name: "Eve <x>", Email: "e@example.com"}, storagetest.Sig("c")},
		{"bracket in committer email", storagetest.Sig("a"), object.Signature{Name: "C", Email: "c>@example.com"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.CreateCommit(ctx, "HEAD", tc.author, tc.committer, "m", object.Of(tree.ID()), nil)
			require.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	_, _, after := engine.counts()
	assert.Equal(t, before, after, "nothing written")
	_, err := r.LookupReference(ctx, string(refs.BranchName(DefaultBranch)))
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestCreateCommitRejectsWrongKinds(t *testing.T) {
	r, engine := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "f", "x")
	_, _, before := engine.counts()

	_, err := r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Hex("zz"), nil)
	require.ErrorIs(t, err, ErrInvalidID)

	blob, err := r.CreateBlobFromBuffer(ctx, []byte("blob"))
	require.NoError(t, err)
	before++

	_, err = r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Of(blob), nil)
	require.ErrorIs(t, err, ErrObjectTypeMismatch)

	_, err = r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Handle(tree), []object.IDLike{object.Of(tree.ID())})
	require.ErrorIs(t, err, ErrObjectTypeMismatch)

	_, err = r.CreateCommit(ctx, "not a ref", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Handle(tree), nil)
	require.Error(t, err)

	_, _, after := engine.counts()
	assert.Equal(t, before, after)
}

func TestCreateCommitAdvancesReference(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "f", "one")

	first, err := r.CreateCommit(ctx, "HEAD", storagetest.Sig("a"), storagetest.Sig("c"), "one", object.Handle(tree), nil)
	require.NoError(t, err)
	head, err := r.GetDefaultBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head.ID())

	tree2 := writeSingleFileTree(t, r, "f", "two")
	second, err := r.CreateCommit(ctx, "HEAD", storagetest.Sig("a"), storagetest.Sig("c"), "two", object.Handle(tree2), []object.IDLike{object.Handle(head)})
	require.NoError(t, err)

	head, err = r.GetDefaultBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, head.ID())
	assert.Equal(t, []object.ID{first}, head.ParentIDs())
	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.writes.WithLabelValues("commit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.writes.WithLabelValues("tree")))
}

func TestCreateCommitPreservesParentOrder(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	a := seedCommit(t, r, "a", "a")
	b := seedCommit(t, r, "b", "b")
	c := seedCommit(t, r, "c", "c")
	tree := writeSingleFileTree(t, r, "merge", "m")

	id, err := r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "merge", object.Handle(tree),
		[]object.IDLike{object.Hex(c.String()), object.Raw(a.Bytes()), object.Of(b)})
	require.NoError(t, err)

	merged, err := r.GetCommit(ctx, object.Of(id))
	require.NoError(t, err)
	assert.Equal(t, []object.ID{c, a, b}, merged.ParentIDs())
}

func TestCreateCommitStaleParentConflicts(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "f", "x")

	root, err := r.CreateCommit(ctx, "refs/heads/work", storagetest.Sig("a"), storagetest.Sig("c"), "root", object.Handle(tree), nil)
	require.NoError(t, err)
	_, err = r.CreateCommit(ctx, "refs/heads/work", storagetest.Sig("a"), storagetest.Sig("c"), "next", object.Handle(tree), []object.IDLike{object.Of(root)})
	require.NoError(t, err)

	// The branch has moved past root, so a second child of root must not
	// overwrite it.
	_, err = r.CreateCommit(ctx, "refs/heads/work", storagetest.Sig("a"), storagetest.Sig("c"), "stale", object.Handle(tree), []object.IDLike{object.Of(root)})
	require.ErrorIs(t, err, ErrRefUpdateFailed)
	require.ErrorIs(t, err, storage.ErrRefConflict)
}

func TestCreateCommitRefUpdateFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	r, engine := newTestRepo(t, WithLogger(logger))
	engine.advanceErr = errors.New("disk full")
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "f", "x")

	id, err := r.CreateCommit(ctx, "HEAD", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Handle(tree), nil)
	require.Error(t, err)
	assert.True(t, id.IsZero())
	assert.ErrorIs(t, err, ErrRefUpdateFailed)

	var upd *RefUpdateError
	require.True(t, errors.As(err, &upd))
	assert.Equal(t, refs.HEAD, upd.Ref)
	assert.Contains(t, upd.Error(), "disk full")

	// The commit itself is durable.
	c, err := r.GetCommit(ctx, object.Of(upd.Commit))
	require.NoError(t, err)
	assert.Equal(t, "m", c.Message())

	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.refUpdateFailures))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "repository", entry.Data["component"])
}

func TestCreateCommitForeignHandleIsFetched(t *testing.T) {
	r, _ := newTestRepo(t)
	other, _ := newTestRepo(t)
	ctx := context.Background()
	foreign := writeSingleFileTree(t, other, "f", "only in other")

	_, err := r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Handle(foreign), nil)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCreateCommitSigned(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	tree := writeSingleFileTree(t, r, "f", "x")

	var payload []byte
	signer := func(p []byte) (string, error) {
		payload = p
		return "-----BEGIN SSH SIGNATURE-----\nabc\n-----END SSH SIGNATURE-----", nil
	}
	id, err := r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "signed", object.Handle(tree), nil,
		WithSigner(signer), WithEncoding("ISO-8859-1"))
	require.NoError(t, err)

	c, err := r.GetCommit(ctx, object.Of(id))
	require.NoError(t, err)
	assert.Contains(t, c.SignatureArmor(), "SSH SIGNATURE")
	assert.Equal(t, "ISO-8859-1", c.Encoding())
	assert.Equal(t, object.CommitSigningPayload(c.Object()), payload)

	_, err = r.CreateCommit(ctx, "", storagetest.Sig("a"), storagetest.Sig("c"), "m", object.Handle(tree), nil,
		WithSigner(func([]byte) (string, error) { return "", errors.New("no key") }))
	require.Error(t, err)
}

func TestCreateBlobFromBufferDeterministic(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	a, err := r.CreateBlobFromBuffer(ctx, []byte("test content\n"))
	require.NoError(t, err)
	b, err := r.CreateBlobFromBuffer(ctx, []byte("test content\n"))
	require.NoError(t, err)
	c, err := r.CreateBlobFromBuffer(ctx, []byte("test content!"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, storagetest.TestContentID, a)

	empty, err := r.CreateBlobFromBuffer(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, storagetest.EmptyBlobID, empty)
}

func TestOperationsAreTraced(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	r, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := r.GetCommit(ctx, object.Hex("bad"))
	require.Error(t, err)
	_, err = r.CreateBlobFromBuffer(ctx, []byte("x"))
	require.NoError(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "repository.GetCommit", spans[0].OperationName)
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, "repository.CreateBlobFromBuffer", spans[1].OperationName)
	assert.Nil(t, spans[1].Tag("error"))
	assert.WithinDuration(t, time.Now(), spans[1].FinishTime, time.Minute)
}
