package repository

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
)

// Errors returned by the repository, matched with errors.Is.
var (
	ErrInvalidID          = object.ErrInvalidID
	ErrInvalidSignature   = object.ErrInvalidSignature
	ErrReferenceNotFound  = storage.ErrReferenceNotFound
	ErrObjectNotFound     = storage.ErrObjectNotFound
	ErrObjectTypeMismatch = storage.ErrObjectTypeMismatch

	// ErrReferenceResolution is matched by *ResolutionError.
	ErrReferenceResolution = errors.New("reference resolution failed")
	// ErrRefUpdateFailed is matched by *RefUpdateError.
	ErrRefUpdateFailed = errors.New("reference update failed")
	// ErrEntryNotFound is returned when a tree has no entry at a path.
	ErrEntryNotFound = errors.New("tree entry not found")
)

// TypeMismatchError is the storage type mismatch, re-exported.
type TypeMismatchError = storage.TypeMismatchError

// ResolutionError reports a symbolic reference that could not be followed to
// a direct one: its target is missing, the chain is too deep, or it loops.
// Err is kept for inspection and is not unwrapped, so a missing target
// never matches ErrReferenceNotFound.
type ResolutionError struct {
	// Name is the reference that was requested.
	Name refs.Name
	// Target is the symbolic target that failed.
	Target refs.Name
	Err    error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("resolve reference %q: %s: target %q: %v", e.Name, ErrReferenceResolution, e.Target, e.Err)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrReferenceResolution
}

// RefUpdateError indicates the commit was written but the reference could
// not be advanced to it. Commit holds the durable id.
type RefUpdateError struct {
	Ref    refs.Name
	Commit object.ID
	Err    error
}

func (e *RefUpdateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (commit=%s): %v", e.Ref, ErrRefUpdateFailed, e.Commit, e.Err)
}

func (e *RefUpdateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateError) Is(target error) bool {
	return target == ErrRefUpdateFailed
}
