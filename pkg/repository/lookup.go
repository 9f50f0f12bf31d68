package repository

import (
	"context"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/opentracing/opentracing-go"
)

// lookup is the single fetch pipeline shared by every getter: normalize the
// identifier, fetch with a kind check, decode and tag with the repository.
// Malformed identifiers fail before the engine is touched.
func lookup[T any](ctx context.Context, r *Repository, spanName, op string, kind object.Type, in object.IDLike,
	decode func(r *Repository, id object.ID, kind object.Type, data []byte) (T, error),
) (_ T, err error) {
	var zero T
	span, ctx := startSpan(ctx, spanName, opentracing.Tags{"kind": kind.String(), "oid": in.String()})
	defer func() {
		r.metrics.observeLookup(kind, err)
		finishSpan(span, err)
	}()

	id, err := object.Normalize(in)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", op, in, err)
	}

	got, data, err := r.engine.LookupObject(ctx, id, kind)
	if err != nil {
		r.logger.WithError(err).WithField("oid", id.String()).WithField("kind", kind.String()).Debug("object lookup failed")
		return zero, fmt.Errorf("%s %s: %w", op, id, err)
	}

	v, err := decode(r, id, got, data)
	if err != nil {
		return zero, fmt.Errorf("%s %s: decode %s: %w", op, id, got, err)
	}
	return v, nil
}

func decodeCommit(r *Repository, id object.ID, _ object.Type, data []byte) (*Commit, error) {
	c, err := object.UnmarshalCommit(data)
	if err != nil {
		return nil, err
	}
	return &Commit{id: id, data: c, repo: r}, nil
}

func decodeTree(r *Repository, id object.ID, _ object.Type, data []byte) (*Tree, error) {
	t, err := object.UnmarshalTree(data)
	if err != nil {
		return nil, err
	}
	return &Tree{id: id, data: t, repo: r}, nil
}

func decodeBlob(r *Repository, id object.ID, _ object.Type, data []byte) (*Blob, error) {
	return &Blob{id: id, data: data, repo: r}, nil
}

func decodeTag(r *Repository, id object.ID, _ object.Type, data []byte) (*Tag, error) {
	t, err := object.UnmarshalTag(data)
	if err != nil {
		return nil, err
	}
	return &Tag{id: id, data: t, repo: r}, nil
}

func decodeAny(r *Repository, id object.ID, kind object.Type, data []byte) (Object, error) {
	switch kind {
	case object.TypeCommit:
		return decodeCommit(r, id, kind, data)
	case object.TypeTree:
		return decodeTree(r, id, kind, data)
	case object.TypeBlob:
		return decodeBlob(r, id, kind, data)
	case object.TypeTag:
		return decodeTag(r, id, kind, data)
	default:
		return nil, fmt.Errorf("unknown object type %q", kind)
	}
}

// GetCommit fetches a commit.
func (r *Repository) GetCommit(ctx context.Context, id object.IDLike) (*Commit, error) {
	return lookup(ctx, r, "GetCommit", "get commit", object.TypeCommit, id, decodeCommit)
}

// GetTree fetches a tree.
func (r *Repository) GetTree(ctx context.Context, id object.IDLike) (*Tree, error) {
	return lookup(ctx, r, "GetTree", "get tree", object.TypeTree, id, decodeTree)
}

// GetBlob fetches a blob.
func (r *Repository) GetBlob(ctx context.Context, id object.IDLike) (*Blob, error) {
	return lookup(ctx, r, "GetBlob", "get blob", object.TypeBlob, id, decodeBlob)
}

// GetTag fetches an annotated tag.
func (r *Repository) GetTag(ctx context.Context, id object.IDLike) (*Tag, error) {
	return lookup(ctx, r, "GetTag", "get tag", object.TypeTag, id, decodeTag)
}

// GetObject fetches an object of any kind.
func (r *Repository) GetObject(ctx context.Context, id object.IDLike) (Object, error) {
	return lookup(ctx, r, "GetObject", "get object", object.TypeAny, id, decodeAny)
}
