package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/opentracing/opentracing-go"
)

// GetReference looks up name and follows symbolic references to a direct
// one. A missing name yields ErrReferenceNotFound; a symbolic reference whose
// target is missing, or a chain longer than the configured depth, yields a
// *ResolutionError.
func (r *Repository) GetReference(ctx context.Context, name string) (_ *Reference, err error) {
	span, ctx := startSpan(ctx, "GetReference", opentracing.Tags{"ref": name})
	defer func() {
		r.metrics.observeResolution(err)
		finishSpan(span, err)
	}()

	ref, err := r.resolve(ctx, refs.Name(name))
	if err != nil {
		return nil, err
	}
	return &Reference{ref: ref, repo: r}, nil
}

func (r *Repository) resolve(ctx context.Context, name refs.Name) (refs.Reference, error) {
	ref, err := r.engine.LookupReference(ctx, name)
	if err != nil {
		return refs.Reference{}, fmt.Errorf("get reference %q: %w", name, err)
	}

	visited := map[refs.Name]bool{name: true}
	for depth := 0; ref.IsSymbolic(); depth++ {
		target := ref.SymbolicTarget
		if depth >= r.symbolicDepth {
			return refs.Reference{}, &ResolutionError{
				Name:   name,
				Target: target,
				Err:    fmt.Errorf("more than %d symbolic indirections", r.symbolicDepth),
			}
		}
		if visited[target] {
			return refs.Reference{}, &ResolutionError{Name: name, Target: target, Err: errors.New("symbolic reference cycle")}
		}
		visited[target] = true

		next, err := r.engine.LookupReference(ctx, target)
		if errors.Is(err, storage.ErrReferenceNotFound) {
			return refs.Reference{}, &ResolutionError{Name: name, Target: target, Err: err}
		}
		if err != nil {
			return refs.Reference{}, fmt.Errorf("get reference %q: follow %q: %w", name, target, err)
		}
		r.logger.WithField("ref", string(name)).WithField("target", string(target)).Debug("followed symbolic reference")
		ref = next
	}
	return ref, nil
}

// LookupReference returns name as stored, without following symbolic
// references.
func (r *Repository) LookupReference(ctx context.Context, name string) (_ *Reference, err error) {
	span, ctx := startSpan(ctx, "LookupReference", opentracing.Tags{"ref": name})
	defer func() { finishSpan(span, err) }()

	ref, err := r.engine.LookupReference(ctx, refs.Name(name))
	if err != nil {
		return nil, fmt.Errorf("lookup reference %q: %w", name, err)
	}
	return &Reference{ref: ref, repo: r}, nil
}

// References lists stored references under prefix, without resolving them.
func (r *Repository) References(ctx context.Context, prefix string) (_ []*Reference, err error) {
	span, ctx := startSpan(ctx, "References", opentracing.Tags{"prefix": prefix})
	defer func() { finishSpan(span, err) }()

	list, err := r.engine.ListReferences(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list references %q: %w", prefix, err)
	}
	out := make([]*Reference, 0, len(list))
	for _, ref := range list {
		out = append(out, &Reference{ref: ref, repo: r})
	}
	return out, nil
}

// ReferenceNames lists reference names under prefix.
func (r *Repository) ReferenceNames(ctx context.Context, prefix string) ([]string, error) {
	list, err := r.References(ctx, prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, ref := range list {
		names = append(names, string(ref.Name()))
	}
	return names, nil
}

// CreateReference points name at target. Without force an existing
// reference is an error.
func (r *Repository) CreateReference(ctx context.Context, name string, target object.IDLike, force bool) (_ *Reference, err error) {
	span, ctx := startSpan(ctx, "CreateReference", opentracing.Tags{"ref": name, "oid": target.String()})
	defer func() { finishSpan(span, err) }()

	id, err := object.Normalize(target)
	if err != nil {
		return nil, fmt.Errorf("create reference %q: %w", name, err)
	}
	ref := refs.NewReference(refs.Name(name), id)
	if err := r.writeReference(ctx, ref, force); err != nil {
		return nil, err
	}
	r.logger.WithField("ref", name).WithField("oid", id.String()).Debug("created reference")
	return &Reference{ref: ref, repo: r}, nil
}

// CreateSymbolicReference points name at the reference target.
func (r *Repository) CreateSymbolicReference(ctx context.Context, name, target string, force bool) (_ *Reference, err error) {
	span, ctx := startSpan(ctx, "CreateSymbolicReference", opentracing.Tags{"ref": name, "target": target})
	defer func() { finishSpan(span, err) }()

	ref := refs.NewSymbolicReference(refs.Name(name), refs.Name(target))
	if err := r.writeReference(ctx, ref, force); err != nil {
		return nil, err
	}
	return &Reference{ref: ref, repo: r}, nil
}

func (r *Repository) writeReference(ctx context.Context, ref refs.Reference, force bool) error {
	if !force {
		if err := r.ensureAbsent(ctx, ref.Name); err != nil {
			return err
		}
	}
	if err := r.engine.SetReference(ctx, ref); err != nil {
		return fmt.Errorf("create reference %q: %w", ref.Name, err)
	}
	return nil
}

func (r *Repository) ensureAbsent(ctx context.Context, name refs.Name) error {
	_, err := r.engine.LookupReference(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("create reference %q: already exists", name)
	case !errors.Is(err, storage.ErrReferenceNotFound):
		return fmt.Errorf("create reference %q: %w", name, err)
	}
	return nil
}

// DeleteReference removes name.
func (r *Repository) DeleteReference(ctx context.Context, name string) (err error) {
	span, ctx := startSpan(ctx, "DeleteReference", opentracing.Tags{"ref": name})
	defer func() { finishSpan(span, err) }()

	if err := r.engine.DeleteReference(ctx, refs.Name(name)); err != nil {
		return fmt.Errorf("delete reference %q: %w", name, err)
	}
	return nil
}
