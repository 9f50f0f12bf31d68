package repository

import (
	"context"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
)

// GetBranch resolves refs/heads/<name> and fetches the commit it points at.
// Errors from either step are returned unchanged.
func (r *Repository) GetBranch(ctx context.Context, name string) (*Commit, error) {
	ref, err := r.GetReference(ctx, string(refs.BranchName(name)))
	if err != nil {
		return nil, err
	}
	return r.GetCommit(ctx, object.Of(ref.Target()))
}

// GetDefaultBranch is GetBranch on the configured default branch.
func (r *Repository) GetDefaultBranch(ctx context.Context) (*Commit, error) {
	return r.GetBranch(ctx, r.defaultBranch)
}

// HeadCommit resolves HEAD and fetches its commit.
func (r *Repository) HeadCommit(ctx context.Context) (*Commit, error) {
	ref, err := r.GetReference(ctx, string(refs.HEAD))
	if err != nil {
		return nil, err
	}
	return r.GetCommit(ctx, object.Of(ref.Target()))
}

// CurrentBranch returns the branch HEAD points at. A detached HEAD yields
// ok == false.
func (r *Repository) CurrentBranch(ctx context.Context) (name string, ok bool, err error) {
	head, err := r.engine.LookupReference(ctx, refs.HEAD)
	if err != nil {
		return "", false, fmt.Errorf("current branch: %w", err)
	}
	if !head.IsSymbolic() {
		return "", false, nil
	}
	name, ok = head.SymbolicTarget.Branch()
	return name, ok, nil
}

// CreateBranch points refs/heads/<name> at a commit. Without force an
// existing branch is an error.
func (r *Repository) CreateBranch(ctx context.Context, name string, target object.IDLike, force bool) (*Reference, error) {
	if err := refs.ValidateShortName(name); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	c, err := r.GetCommit(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("create branch %q: %w", name, err)
	}
	return r.CreateReference(ctx, string(refs.BranchName(name)), object.Of(c.ID()), force)
}

// Branches lists local branches.
func (r *Repository) Branches(ctx context.Context) ([]*Reference, error) {
	return r.References(ctx, refs.HeadsPrefix)
}
