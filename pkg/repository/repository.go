// Package repository is the object and reference access layer over a
// content-addressed storage engine. It resolves references, materializes
// commits, trees, blobs and tags as immutable values tagged with the
// repository they came from, and constructs new objects with correct
// linkage.
package repository

import (
	"fmt"
	"io"

	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBranch is the branch GetDefaultBranch reads unless
	// WithDefaultBranch says otherwise.
	DefaultBranch = "master"
	// DefaultSymbolicDepth is the number of symbolic indirections
	// GetReference follows.
	DefaultSymbolicDepth = 1
)

// Repository is a handle over a storage engine. It keeps no caches and no
// mutable state of its own, so it is safe for concurrent use whenever the
// engine is.
type Repository struct {
	engine        storage.Engine
	defaultBranch string
	symbolicDepth int
	logger        logrus.FieldLogger
	metrics       *Metrics
}

// Option configures a Repository.
type Option func(*Repository)

// WithDefaultBranch sets the branch GetDefaultBranch resolves.
func WithDefaultBranch(name string) Option {
	return func(r *Repository) { r.defaultBranch = name }
}

// WithSymbolicDepth sets how many symbolic references GetReference follows
// before giving up.
func WithSymbolicDepth(n int) Option {
	return func(r *Repository) { r.symbolicDepth = n }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithMetrics shares a metrics collector between repositories.
func WithMetrics(m *Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New returns a repository over engine. The caller keeps ownership of the
// engine and closes it.
func New(engine storage.Engine, opts ...Option) (*Repository, error) {
	if engine == nil {
		return nil, fmt.Errorf("new repository: nil engine")
	}
	r := &Repository{
		engine:        engine,
		defaultBranch: DefaultBranch,
		symbolicDepth: DefaultSymbolicDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := refs.ValidateShortName(r.defaultBranch); err != nil {
		return nil, fmt.Errorf("new repository: default branch: %w", err)
	}
	if r.symbolicDepth < 1 {
		return nil, fmt.Errorf("new repository: symbolic depth must be at least 1, got %d", r.symbolicDepth)
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	r.logger = r.logger.WithField("component", "repository")
	if r.metrics == nil {
		r.metrics = NewMetrics()
	}
	return r, nil
}

// Engine returns the underlying storage engine.
func (r *Repository) Engine() storage.Engine {
	return r.engine
}

// DefaultBranchName returns the configured default branch.
func (r *Repository) DefaultBranchName() string {
	return r.defaultBranch
}

// Metrics returns the collector recording this repository's operations.
func (r *Repository) Metrics() *Metrics {
	return r.metrics
}
