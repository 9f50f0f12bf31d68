// Package loose implements the on-disk storage engine: git's loose object
// layout (zlib-compressed "type len\0content" files fanned out under
// objects/xx/), plain-text reference files with optional packed-refs, and
// per-reference reflogs.
package loose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize is the number of decoded objects kept in memory per
// engine.
const DefaultCacheSize = 1024

type options struct {
	cacheSize int
	logger    logrus.FieldLogger
}

// Option configures Init and Open.
type Option func(*options)

// WithCacheSize sets the decoded-object cache size. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithLogger sets the logger used for non-fatal conditions such as reflog
// append failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{cacheSize: DefaultCacheSize, logger: logrus.StandardLogger()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Init creates an empty repository directory at gitDir: HEAD pointing at
// refs/heads/<defaultBranch>, objects/, refs/heads/, refs/tags/ and logs/.
// It fails if gitDir already holds a HEAD file.
func Init(gitDir, defaultBranch string, opts ...Option) (*storage.DB, error) {
	if err := refs.ValidateShortName(defaultBranch); err != nil {
		return nil, fmt.Errorf("init: default branch: %w", err)
	}
	if _, err := os.Stat(filepath.Join(gitDir, "HEAD")); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gitDir)
	}

	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
		filepath.Join(gitDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	head := "ref: " + string(refs.BranchName(defaultBranch)) + "\n"
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(head), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	return open(gitDir, applyOptions(opts))
}

// Open opens the repository containing path. path may be a git directory
// itself (bare layout) or any directory below a working tree holding a
// .git directory; the search walks upward like git does.
func Open(path string, opts ...Option) (*storage.DB, error) {
	gitDir, err := Discover(path)
	if err != nil {
		return nil, err
	}
	return open(gitDir, applyOptions(opts))
}

// Discover returns the git directory for path.
func Discover(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		if isGitDir(cur) {
			return cur, nil
		}
		if dotGit := filepath.Join(cur, ".git"); isGitDir(dotGit) {
			return dotGit, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("open: not a git repository (or any parent up to /): %s", abs)
		}
		cur = parent
	}
}

func isGitDir(dir string) bool {
	head, err := os.Stat(filepath.Join(dir, "HEAD"))
	if err != nil || head.IsDir() {
		return false
	}
	objects, err := os.Stat(filepath.Join(dir, "objects"))
	return err == nil && objects.IsDir()
}

func open(gitDir string, o options) (*storage.DB, error) {
	objects, err := NewObjects(gitDir, o.cacheSize)
	if err != nil {
		return nil, err
	}
	return storage.New(objects, NewRefs(gitDir, o.logger)), nil
}
