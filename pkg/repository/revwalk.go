package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/revwalk"
)

// RevWalk walks commit history of one repository. Commits it yields are
// tagged with that repository. It is not safe for concurrent use.
type RevWalk struct {
	repo   *Repository
	walker *revwalk.Walker
}

// CreateRevWalk returns an empty walker over r.
func (r *Repository) CreateRevWalk() *RevWalk {
	rw := &RevWalk{repo: r}
	rw.walker = revwalk.New(rw.load)
	return rw
}

func (rw *RevWalk) load(ctx context.Context, id object.ID) (*object.Commit, error) {
	c, err := rw.repo.GetCommit(ctx, object.Of(id))
	if err != nil {
		return nil, err
	}
	return c.data, nil
}

// Repository returns the repository the walk reads from.
func (rw *RevWalk) Repository() *Repository {
	return rw.repo
}

// Push adds a starting commit.
func (rw *RevWalk) Push(id object.IDLike) error {
	oid, err := object.Normalize(id)
	if err != nil {
		return fmt.Errorf("revwalk push: %w", err)
	}
	rw.walker.Push(oid)
	return nil
}

// PushRef resolves name and adds the commit it points at.
func (rw *RevWalk) PushRef(ctx context.Context, name string) error {
	ref, err := rw.repo.GetReference(ctx, name)
	if err != nil {
		return fmt.Errorf("revwalk push: %w", err)
	}
	rw.walker.Push(ref.Target())
	return nil
}

// PushHead adds the commit HEAD resolves to.
func (rw *RevWalk) PushHead(ctx context.Context) error {
	return rw.PushRef(ctx, string(refs.HEAD))
}

// Hide excludes a commit and its ancestors.
func (rw *RevWalk) Hide(id object.IDLike) error {
	oid, err := object.Normalize(id)
	if err != nil {
		return fmt.Errorf("revwalk hide: %w", err)
	}
	rw.walker.Hide(oid)
	return nil
}

// Sorting sets the output order and restarts the walk.
func (rw *RevWalk) Sorting(s revwalk.Sort) {
	rw.walker.Sorting(s)
}

// Reset clears starting points and hidden commits.
func (rw *RevWalk) Reset() {
	rw.walker.Reset()
}

// Next returns the next commit, or io.EOF when the walk is done.
func (rw *RevWalk) Next(ctx context.Context) (*Commit, error) {
	id, c, err := rw.walker.Next(ctx)
	if err != nil {
		return nil, err
	}
	return &Commit{id: id, data: c, repo: rw.repo}, nil
}

// All drains the walk and returns the commits in order.
func (rw *RevWalk) All(ctx context.Context) ([]*Commit, error) {
	var out []*Commit
	for {
		c, err := rw.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}
