// Package backend opens the storage engine named by the configuration and
// wraps it in a repository.
package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/odvcencio/gitobj/internal/config"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/odvcencio/gitobj/pkg/storage/gogit"
	"github.com/odvcencio/gitobj/pkg/storage/loose"
	"github.com/odvcencio/gitobj/pkg/storage/memory"
	"github.com/odvcencio/gitobj/pkg/storage/sqlite"
	"github.com/sirupsen/logrus"
)

// Init creates an empty repository for cfg and opens it.
func Init(ctx context.Context, cfg config.Cfg, logger logrus.FieldLogger) (*storage.DB, error) {
	log := logger.WithField("backend", cfg.Backend).WithField("path", cfg.Path)
	var (
		db  *storage.DB
		err error
	)
	switch cfg.Backend {
	case "loose":
		db, err = loose.Init(cfg.Path, cfg.DefaultBranch, loose.WithCacheSize(cfg.CacheSize), loose.WithLogger(logger))
	case "gogit":
		db, err = gogit.Init(cfg.Path, cfg.DefaultBranch)
	case "sqlite":
		if _, statErr := os.Stat(cfg.Path); statErr == nil {
			return nil, fmt.Errorf("init: database already exists at %s", cfg.Path)
		}
		db, err = sqlite.Open(ctx, cfg.Path, cfg.DefaultBranch)
	case "memory":
		db = memory.New(cfg.DefaultBranch)
	default:
		return nil, fmt.Errorf("init: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	log.Info("initialized repository")
	return db, nil
}

// Open opens the existing repository described by cfg. The memory backend
// always starts empty.
func Open(ctx context.Context, cfg config.Cfg, logger logrus.FieldLogger) (*storage.DB, error) {
	var (
		db  *storage.DB
		err error
	)
	switch cfg.Backend {
	case "loose":
		db, err = loose.Open(cfg.Path, loose.WithCacheSize(cfg.CacheSize), loose.WithLogger(logger))
	case "gogit":
		db, err = gogit.Open(cfg.Path)
	case "sqlite":
		if _, statErr := os.Stat(cfg.Path); statErr != nil {
			return nil, fmt.Errorf("open: %w", statErr)
		}
		db, err = sqlite.Open(ctx, cfg.Path, cfg.DefaultBranch)
	case "memory":
		db = memory.New(cfg.DefaultBranch)
	default:
		return nil, fmt.Errorf("open: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.WithField("backend", cfg.Backend).WithField("path", cfg.Path).Debug("opened repository")
	return db, nil
}

// Repository wraps engine with the repository options from cfg.
func Repository(cfg config.Cfg, engine storage.Engine, logger logrus.FieldLogger, metrics *repository.Metrics) (*repository.Repository, error) {
	opts := []repository.Option{
		repository.WithDefaultBranch(cfg.DefaultBranch),
		repository.WithSymbolicDepth(cfg.SymbolicDepth),
		repository.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, repository.WithMetrics(metrics))
	}
	return repository.New(engine, opts...)
}
