package repository

import (
	"context"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/opentracing/opentracing-go"
)

// CreateTag writes an annotated tag of target and points refs/tags/<name> at
// it. Without force an existing tag is an error.
func (r *Repository) CreateTag(ctx context.Context, name string, target object.IDLike, tagger object.Signature, message string, force bool) (_ *Tag, err error) {
	span, ctx := startSpan(ctx, "CreateTag", opentracing.Tags{"tag": name, "target": target.String()})
	defer func() { finishSpan(span, err) }()

	if err := refs.ValidateShortName(name); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	if err := object.ValidateSignature(tagger); err != nil {
		return nil, fmt.Errorf("create tag %q: tagger: %w", name, err)
	}
	if !force {
		if err := r.ensureAbsent(ctx, refs.TagName(name)); err != nil {
			return nil, err
		}
	}
	obj, err := r.GetObject(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}

	t := &object.Tag{
		Target:     obj.ID(),
		TargetType: obj.Type(),
		Name:       name,
		Tagger:     tagger,
		Message:    message,
	}
	id, err := r.engine.WriteTag(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}
	r.metrics.observeWrite(object.TypeTag)

	if err := r.writeReference(ctx, refs.NewReference(refs.TagName(name), id), true); err != nil {
		return nil, err
	}
	return &Tag{id: id, data: t, repo: r}, nil
}

// CreateLightweightTag points refs/tags/<name> directly at target.
func (r *Repository) CreateLightweightTag(ctx context.Context, name string, target object.IDLike, force bool) (*Reference, error) {
	if err := refs.ValidateShortName(name); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return r.CreateReference(ctx, string(refs.TagName(name)), target, force)
}

// Tags lists references under refs/tags/.
func (r *Repository) Tags(ctx context.Context) ([]*Reference, error) {
	return r.References(ctx, refs.TagsPrefix)
}
