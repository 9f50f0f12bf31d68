package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

// IDSize is the width in bytes of an object identifier.
const IDSize = sha1.Size

// HexSize is the length of the canonical hex form of an identifier.
const HexSize = IDSize * 2

// ErrInvalidID is returned when an identifier is malformed: wrong length,
// characters outside the hex alphabet, or an empty identifier-like value.
var ErrInvalidID = errors.New("invalid object id")

// ID is the name of an object: the SHA-1 of its "type len\0content" envelope.
type ID [IDSize]byte

// ZeroID designates a nonexistent object.
var ZeroID ID

// EmptyTreeID is the identifier of the tree with no entries.
var EmptyTreeID = HashObject(TypeTree, nil)

// ParseID parses a 40-character hex string. Upper-case digits are accepted;
// the canonical form returned by String is lower-case.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != HexSize {
		return id, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidID, s, len(s), HexSize)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ZeroID, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}
	return id, nil
}

// MustParseID is like ParseID but panics on malformed input. Intended for
// constants and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IDFromBytes copies a raw binary identifier. The slice must be exactly
// IDSize bytes long.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("%w: raw id has %d bytes, want %d", ErrInvalidID, len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lower-case hex representation.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first n hex characters, used for display.
func (id ID) Short(n int) string {
	s := id.String()
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}

// Bytes returns a copy of the raw identifier.
func (id ID) Bytes() []byte {
	out := make([]byte, IDSize)
	copy(out, id[:])
	return out
}

// IsZero reports whether id is ZeroID.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// Compare orders identifiers bytewise.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
