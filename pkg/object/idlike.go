package object

import "fmt"

// Identified is implemented by every value that already carries a resolved
// object identifier (object handles returned by a repository).
type Identified interface {
	ID() ID
}

type idForm uint8

const (
	formNone idForm = iota
	formHex
	formRaw
	formHandle
)

// IDLike is an identifier in one of three interchangeable surface forms: a
// hex string, a raw binary identifier or an object handle. Build one with
// Hex, Raw or Handle; the zero value normalizes to ErrInvalidID.
type IDLike struct {
	form   idForm
	hex    string
	raw    []byte
	handle Identified
}

// Hex wraps a hex-encoded identifier.
func Hex(s string) IDLike {
	return IDLike{form: formHex, hex: s}
}

// Raw wraps a raw binary identifier.
func Raw(b []byte) IDLike {
	return IDLike{form: formRaw, raw: b}
}

// Handle wraps a value that already knows its identifier.
func Handle(h Identified) IDLike {
	return IDLike{form: formHandle, handle: h}
}

// Of wraps an already canonical ID. It is the handle form over the ID itself.
func Of(id ID) IDLike {
	return Handle(id)
}

// ID lets a canonical identifier stand in as its own handle.
func (id ID) ID() ID {
	return id
}

// Object returns the wrapped handle when the value was built with Handle.
func (l IDLike) Object() (Identified, bool) {
	if l.form != formHandle || l.handle == nil {
		return nil, false
	}
	return l.handle, true
}

// String renders the value for error messages without normalizing it.
func (l IDLike) String() string {
	switch l.form {
	case formHex:
		return l.hex
	case formRaw:
		return fmt.Sprintf("raw:%x", l.raw)
	case formHandle:
		if l.handle == nil {
			return "<nil handle>"
		}
		return l.handle.ID().String()
	default:
		return "<empty>"
	}
}

// Normalize converts any IDLike into its canonical ID. Hex and raw forms are
// validated; a handle's embedded identifier is taken as is.
func Normalize(l IDLike) (ID, error) {
	switch l.form {
	case formHex:
		return ParseID(l.hex)
	case formRaw:
		return IDFromBytes(l.raw)
	case formHandle:
		if l.handle == nil {
			return ZeroID, fmt.Errorf("%w: nil object handle", ErrInvalidID)
		}
		return l.handle.ID(), nil
	default:
		return ZeroID, fmt.Errorf("%w: empty identifier", ErrInvalidID)
	}
}
