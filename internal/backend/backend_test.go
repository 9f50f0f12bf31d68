package backend

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/odvcencio/gitobj/internal/config"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T, backend string) config.Cfg {
	cfg := config.Cfg{
		Backend:       backend,
		DefaultBranch: "main",
		SymbolicDepth: 1,
		CacheSize:     16,
	}
	switch backend {
	case "loose", "gogit":
		cfg.Path = filepath.Join(t.TempDir(), "repo.git")
	case "sqlite":
		cfg.Path = filepath.Join(t.TempDir(), "repo.db")
	}
	return cfg
}

func TestInitThenOpen(t *testing.T) {
	for _, backend := range []string{"loose", "gogit", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			logger := quietLogger()

			db, err := Init(ctx, cfg, logger)
			require.NoError(t, err)
			repo, err := Repository(cfg, db, logger, nil)
			require.NoError(t, err)

			blob, err := repo.CreateBlobFromBuffer(ctx, []byte("persisted\n"))
			require.NoError(t, err)
			b, err := repo.TreeBuilder(ctx)
			require.NoError(t, err)
			require.NoError(t, b.Insert("f", object.Of(blob), object.ModeFile))
			tree, err := b.Write(ctx)
			require.NoError(t, err)
			sig := object.Signature{Name: "a", Email: "a@example.com"}
			commit, err := repo.CreateCommit(ctx, "HEAD", sig, sig, "init", object.Handle(tree), nil)
			require.NoError(t, err)
			require.NoError(t, db.Close())

			_, err = Init(ctx, cfg, logger)
			require.Error(t, err, "init over an existing repository")

			db, err = Open(ctx, cfg, logger)
			require.NoError(t, err)
			defer db.Close()
			repo, err = Repository(cfg, db, logger, nil)
			require.NoError(t, err)
			head, err := repo.GetDefaultBranch(ctx)
			require.NoError(t, err)
			assert.Equal(t, commit, head.ID())
		})
	}
}

func TestOpenMissing(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{"loose", "gogit", "sqlite"} {
		cfg := testConfig(t, backend)
		_, err := Open(ctx, cfg, quietLogger())
		assert.Error(t, err, backend)
	}
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "memory")
	db, err := Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer db.Close()

	repo, err := Repository(cfg, db, quietLogger(), nil)
	require.NoError(t, err)
	name, ok, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "main", name)
}

func TestUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Cfg{Backend: "nope"}, quietLogger())
	require.Error(t, err)
}
