package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/internal/backend"
	"github.com/odvcencio/gitobj/internal/config"
	"github.com/odvcencio/gitobj/internal/log"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	repo      string
	backend   string
	config    string
	logLevel  string
	logFormat string
}

// loadConfig reads the config file and applies flag overrides on top.
func (g *globalFlags) loadConfig() (config.Cfg, error) {
	cfg, err := config.LoadFile(g.config)
	if err != nil {
		return config.Cfg{}, err
	}
	if g.backend != "" {
		cfg.Backend = g.backend
	}
	if g.repo != "" {
		cfg.Path = g.repo
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Cfg{}, err
	}
	return cfg, nil
}

func (g *globalFlags) logger(cmd *cobra.Command, cfg config.Cfg) (*logrus.Logger, error) {
	l := log.New(cmd.ErrOrStderr())
	if err := log.Configure(l, cfg.Logging.Format, cfg.Logging.Level); err != nil {
		return nil, err
	}
	return l, nil
}

// session is an opened repository for the lifetime of one command.
type session struct {
	cfg    config.Cfg
	db     *storage.DB
	repo   *repository.Repository
	logger *logrus.Logger
}

func (g *globalFlags) open(cmd *cobra.Command, metrics *repository.Metrics) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := g.logger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	db, err := backend.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	r, err := backend.Repository(cfg, db, logger, metrics)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &session{cfg: cfg, db: db, repo: r, logger: logger}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

// resolveRev turns a hex id or a reference name into an object id. Names
// outside refs/ are also tried as a branch and then as a tag.
func resolveRev(ctx context.Context, r *repository.Repository, rev string) (object.ID, error) {
	if id, err := object.ParseID(rev); err == nil {
		return id, nil
	}
	candidates := []string{rev}
	if rev != string(refs.HEAD) && !strings.HasPrefix(rev, "refs/") {
		candidates = append(candidates, string(refs.BranchName(rev)), string(refs.TagName(rev)))
	}
	for _, name := range candidates {
		ref, err := r.GetReference(ctx, name)
		switch {
		case err == nil:
			return ref.Target(), nil
		case errors.Is(err, repository.ErrReferenceNotFound):
			continue
		default:
			return object.ZeroID, err
		}
	}
	return object.ZeroID, fmt.Errorf("unknown revision %q: %w", rev, repository.ErrReferenceNotFound)
}

// resolveCommit resolves rev and peels annotated tags down to a commit.
func resolveCommit(ctx context.Context, r *repository.Repository, rev string) (*repository.Commit, error) {
	id, err := resolveRev(ctx, r, rev)
	if err != nil {
		return nil, err
	}
	obj, err := r.GetObject(ctx, object.Of(id))
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *repository.Commit:
		return o, nil
	case *repository.Tag:
		return o.Peel(ctx)
	default:
		return nil, fmt.Errorf("%s: %w", rev, &repository.TypeMismatchError{ID: id, Want: object.TypeCommit, Got: obj.Type()})
	}
}

// parseIdent parses "Name <email>". A bare name gets an empty email.
// Identities that would not survive a round trip through a commit header
// are rejected.
func parseIdent(s string, when time.Time) (object.Signature, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return object.Signature{}, fmt.Errorf("identity is required")
	}
	sig := object.Signature{Name: s, When: when}
	if open := strings.IndexByte(s, '<'); open >= 0 {
		end := strings.IndexByte(s, '>')
		if end < open || strings.TrimSpace(s[end+1:]) != "" {
			return object.Signature{}, fmt.Errorf("malformed identity %q", s)
		}
		sig.Name = strings.TrimSpace(s[:open])
		sig.Email = s[open+1 : end]
	}
	if err := object.ValidateSignature(sig); err != nil {
		return object.Signature{}, err
	}
	return sig, nil
}

// defaultIdent is $GITOBJ_AUTHOR, else $USER, else "unknown".
func defaultIdent() string {
	if v := os.Getenv("GITOBJ_AUTHOR"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

// joinMessage joins -m paragraphs the way git does and ends the message
// with a newline.
func joinMessage(paragraphs []string) string {
	msg := strings.Join(paragraphs, "\n\n")
	if msg != "" && !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return msg
}
