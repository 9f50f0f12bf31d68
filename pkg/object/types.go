package object

import (
	"fmt"
	"time"
)

// Type identifies the kind of object stored.
type Type string

const (
	TypeBlob   Type = "blob"
	TypeTree   Type = "tree"
	TypeCommit Type = "commit"
	TypeTag    Type = "tag"

	// TypeAny matches any stored kind in lookups.
	TypeAny Type = ""
)

// ParseType validates a type name read from an envelope header.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

func (t Type) String() string {
	if t == TypeAny {
		return "any"
	}
	return string(t)
}

// Mode is a git tree entry mode.
type Mode uint32

const (
	ModeDir        Mode = 0o040000
	ModeFile       Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
	ModeSubmodule  Mode = 0o160000
)

// ParseMode parses the octal mode string found in tree entries.
func ParseMode(s string) (Mode, error) {
	var m uint32
	if s == "" {
		return 0, fmt.Errorf("empty mode")
	}
	for _, c := range s {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("unknown mode %q", s)
		}
		m = m<<3 | uint32(c-'0')
	}
	switch mode := Mode(m); mode {
	case ModeDir, ModeFile, ModeExecutable, ModeSymlink, ModeSubmodule:
		return mode, nil
	case 0o100664:
		// Old git versions wrote group-writable blobs.
		return ModeFile, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// String renders the canonical tree-entry form (no leading zero for trees).
func (m Mode) String() string {
	return fmt.Sprintf("%o", uint32(m))
}

// IsDir reports whether the mode designates a subtree.
func (m Mode) IsDir() bool {
	return m == ModeDir
}

// ObjectType returns the object kind a tree entry with this mode points at.
func (m Mode) ObjectType() Type {
	switch m {
	case ModeDir:
		return TypeTree
	case ModeSubmodule:
		return TypeCommit
	default:
		return TypeBlob
	}
}

// Signature identifies an author, committer or tagger at a point in time.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode Mode
	ID   ID
}

// Tree holds a list of entries in git order (see SortEntries).
type Tree struct {
	Entries []TreeEntry
}

// Commit references one tree and zero or more parents.
type Commit struct {
	Tree      ID
	Parents   []ID
	Author    Signature
	Committer Signature
	// Encoding is the optional message encoding header; empty means UTF-8.
	Encoding string
	// Signature is the optional armored signature (gpgsig header).
	Signature string
	Message   string
}

// Tag is an annotated tag object pointing at another object.
type Tag struct {
	Target     ID
	TargetType Type
	Name       string
	Tagger     Signature
	Message    string
}
