package storage

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
)

var (
	// ErrObjectNotFound is returned when no object with the requested id is
	// stored.
	ErrObjectNotFound = errors.New("object not found")
	// ErrReferenceNotFound is returned when a reference does not exist.
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrObjectTypeMismatch is matched by *TypeMismatchError.
	ErrObjectTypeMismatch = errors.New("object type mismatch")
	// ErrRefConflict is returned when a compare-and-swap reference update
	// finds a different old value than expected.
	ErrRefConflict = errors.New("reference compare-and-swap mismatch")
)

// TypeMismatchError reports that the stored kind of an object differs from
// the requested one.
type TypeMismatchError struct {
	ID   object.ID
	Want object.Type
	Got  object.Type
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("object %s: %s: got %q, want %q", e.ID, ErrObjectTypeMismatch, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrObjectTypeMismatch) hold.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrObjectTypeMismatch
}

// ObjectNotFound wraps ErrObjectNotFound with the missing id.
func ObjectNotFound(id object.ID) error {
	return fmt.Errorf("object %s: %w", id, ErrObjectNotFound)
}

// ReferenceNotFound wraps ErrReferenceNotFound with the missing name.
func ReferenceNotFound(name string) error {
	return fmt.Errorf("reference %q: %w", name, ErrReferenceNotFound)
}
