package repository

import (
	"context"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/opentracing/opentracing-go"
)

// CommitSigner signs a commit payload and returns the armored signature.
type CommitSigner func(payload []byte) (string, error)

type commitOptions struct {
	encoding string
	signer   CommitSigner
}

// CommitOption configures CreateCommit.
type CommitOption func(*commitOptions)

// WithEncoding records a message encoding header. Empty means UTF-8.
func WithEncoding(enc string) CommitOption {
	return func(o *commitOptions) { o.encoding = enc }
}

// WithSigner signs the commit before it is written.
func WithSigner(s CommitSigner) CommitOption {
	return func(o *commitOptions) { o.signer = s }
}

// CreateCommit writes a commit of tree with the given parents and, when
// updateRef is non-empty, advances that reference to it.
//
// The tree and every parent must exist before anything is written. A handle
// obtained from this repository is trusted as is; other inputs are fetched.
// The reference update expects the reference to hold the first parent, or
// not to exist for a root commit. If the update fails the commit is still
// stored: the call returns a *RefUpdateError carrying its id and the zero
// id as result.
func (r *Repository) CreateCommit(ctx context.Context, updateRef string, author, committer object.Signature, message string, tree object.IDLike, parents []object.IDLike, opts ...CommitOption) (_ object.ID, err error) {
	span, ctx := startSpan(ctx, "CreateCommit", opentracing.Tags{"ref": updateRef, "tree": tree.String()})
	defer func() { finishSpan(span, err) }()

	var o commitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if updateRef != "" {
		if err := refs.Name(updateRef).Validate(); err != nil {
			return object.ZeroID, fmt.Errorf("create commit: %w", err)
		}
	}
	if err := object.ValidateSignature(author); err != nil {
		return object.ZeroID, fmt.Errorf("create commit: author: %w", err)
	}
	if err := object.ValidateSignature(committer); err != nil {
		return object.ZeroID, fmt.Errorf("create commit: committer: %w", err)
	}

	treeID, err := r.commitTree(ctx, tree)
	if err != nil {
		return object.ZeroID, fmt.Errorf("create commit: %w", err)
	}
	parentIDs := make([]object.ID, 0, len(parents))
	for i, p := range parents {
		id, err := r.commitParent(ctx, p)
		if err != nil {
			return object.ZeroID, fmt.Errorf("create commit: parent %d: %w", i, err)
		}
		parentIDs = append(parentIDs, id)
	}

	c := &object.Commit{
		Tree:      treeID,
		Parents:   parentIDs,
		Author:    author,
		Committer: committer,
		Encoding:  o.encoding,
		Message:   message,
	}
	if o.signer != nil {
		sig, err := o.signer(object.CommitSigningPayload(c))
		if err != nil {
			return object.ZeroID, fmt.Errorf("create commit: sign: %w", err)
		}
		c.Signature = sig
	}

	id, err := r.engine.WriteCommit(ctx, c)
	if err != nil {
		return object.ZeroID, fmt.Errorf("create commit: %w", err)
	}
	r.metrics.observeWrite(object.TypeCommit)
	log := r.logger.WithField("oid", id.String())
	log.Debug("wrote commit")

	if updateRef == "" {
		return id, nil
	}
	expected := object.ZeroID
	if len(parentIDs) > 0 {
		expected = parentIDs[0]
	}
	if err := r.engine.AdvanceReference(ctx, refs.Name(updateRef), id, expected); err != nil {
		r.metrics.observeRefUpdateFailure()
		log.WithError(err).WithField("ref", updateRef).Warn("commit written but reference not updated")
		return object.ZeroID, &RefUpdateError{Ref: refs.Name(updateRef), Commit: id, Err: err}
	}
	log.WithField("ref", updateRef).Debug("advanced reference")
	return id, nil
}

func (r *Repository) commitTree(ctx context.Context, in object.IDLike) (object.ID, error) {
	if h, ok := in.Object(); ok {
		if t, ok := h.(*Tree); ok && t != nil && t.repo == r {
			return t.id, nil
		}
	}
	t, err := r.GetTree(ctx, in)
	if err != nil {
		return object.ZeroID, err
	}
	return t.id, nil
}

func (r *Repository) commitParent(ctx context.Context, in object.IDLike) (object.ID, error) {
	if h, ok := in.Object(); ok {
		if c, ok := h.(*Commit); ok && c != nil && c.repo == r {
			return c.id, nil
		}
	}
	c, err := r.GetCommit(ctx, in)
	if err != nil {
		return object.ZeroID, err
	}
	return c.id, nil
}

// CreateBlobFromBuffer stores data as a blob. The length is taken from data
// itself.
func (r *Repository) CreateBlobFromBuffer(ctx context.Context, data []byte) (_ object.ID, err error) {
	span, ctx := startSpan(ctx, "CreateBlobFromBuffer", opentracing.Tags{"size": len(data)})
	defer func() { finishSpan(span, err) }()

	id, err := r.engine.WriteBlob(ctx, data, len(data))
	if err != nil {
		return object.ZeroID, fmt.Errorf("create blob: %w", err)
	}
	r.metrics.observeWrite(object.TypeBlob)
	return id, nil
}
