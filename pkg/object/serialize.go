package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// entrySortKey is the name git sorts by: directories compare as if their
// name ended in a slash.
func entrySortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries orders entries the way git writes them.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entrySortKey(entries[i]) < entrySortKey(entries[j])
	})
}

// ValidateEntryName rejects names that cannot appear in a tree.
func ValidateEntryName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("tree entry name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid tree entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid tree entry name %q", name)
	}
	return nil
}

// MarshalTree serializes a Tree in git's binary form. Entries are sorted
// for determinism, each one is:
//
//	<octal mode> <name>\0<20-byte id>
func MarshalTree(tr *Tree) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortEntries(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID[:])
	}
	return buf.Bytes()
}

// UnmarshalTree parses a Tree from its serialized form.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing mode separator")
		}
		mode, err := ParseMode(string(data[:sp]))
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator")
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < IDSize {
			return nil, fmt.Errorf("unmarshal tree: truncated id for entry %q", name)
		}
		var id ID
		copy(id[:], data[:IDSize])
		data = data[IDSize:]

		tr.Entries = append(tr.Entries, TreeEntry{Name: name, Mode: mode, ID: id})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Signature
// ---------------------------------------------------------------------------

// FormatSignature renders "Name <email> <unix> <+hhmm>".
func FormatSignature(s Signature) string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), formatTimezoneOffset(s.When))
}

// ParseSignature parses the form written by FormatSignature.
func ParseSignature(s string) (Signature, error) {
	lt := strings.LastIndexByte(s, '<')
	gt := strings.LastIndexByte(s, '>')
	if lt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("malformed signature %q", s)
	}
	sig := Signature{
		Name:  strings.TrimSpace(s[:lt]),
		Email: s[lt+1 : gt],
	}

	fields := strings.Fields(s[gt+1:])
	if len(fields) == 0 {
		return sig, nil
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("malformed signature time %q: %w", fields[0], err)
	}
	loc := time.UTC
	if len(fields) > 1 {
		offset, err := parseTimezoneOffset(fields[1])
		if err != nil {
			return Signature{}, err
		}
		loc = time.FixedZone("", offset)
	}
	sig.When = time.Unix(ts, 0).In(loc)
	return sig, nil
}

func formatTimezoneOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

func parseTimezoneOffset(tz string) (int, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return 0, fmt.Errorf("malformed timezone %q", tz)
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return 0, fmt.Errorf("malformed timezone %q: %w", tz, err)
	}
	minutes, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return 0, fmt.Errorf("malformed timezone %q: %w", tz, err)
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H       (zero or more, order preserved)
//	author A
//	committer C
//	encoding E     (optional)
//	gpgsig S       (optional, continuation lines indented by one space)
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", FormatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", FormatSignature(c.Committer))
	if c.Encoding != "" {
		fmt.Fprintf(&buf, "encoding %s\n", c.Encoding)
	}
	if strings.TrimSpace(c.Signature) != "" {
		writeMultilineHeader(&buf, "gpgsig", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func writeMultilineHeader(buf *bytes.Buffer, key, value string) {
	lines := strings.Split(strings.TrimRight(value, "\n"), "\n")
	fmt.Fprintf(buf, "%s %s\n", key, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(buf, " %s\n", line)
	}
}

type headerLine struct {
	key   string
	value string
}

// splitHeaders parses "key value" lines up to the first blank line, folding
// space-prefixed continuation lines into the previous value.
func splitHeaders(data []byte) ([]headerLine, string, error) {
	var header, message string
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		header = string(data[:idx])
		message = string(data[idx+2:])
	} else {
		header = strings.TrimRight(string(data), "\n")
	}

	var lines []headerLine
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, " ") {
			if len(lines) == 0 {
				return nil, "", fmt.Errorf("continuation line before any header")
			}
			last := &lines[len(lines)-1]
			last.value += "\n" + line[1:]
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, "", fmt.Errorf("malformed header line %q", line)
		}
		lines = append(lines, headerLine{key: key, value: val})
	}
	return lines, message, nil
}

// UnmarshalCommit parses a Commit from its serialized form. Headers this
// package does not model (mergetag and friends) are skipped.
func UnmarshalCommit(data []byte) (*Commit, error) {
	lines, message, err := splitHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}

	c := &Commit{Message: message}
	var haveTree bool
	for _, h := range lines {
		switch h.key {
		case "tree":
			id, err := ParseID(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: tree: %w", err)
			}
			c.Tree = id
			haveTree = true
		case "parent":
			id, err := ParseID(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: parent: %w", err)
			}
			c.Parents = append(c.Parents, id)
		case "author":
			sig, err := ParseSignature(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := ParseSignature(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		case "encoding":
			c.Encoding = h.value
		case "gpgsig":
			c.Signature = h.value
		}
	}
	if !haveTree {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated Tag:
//
//	object H
//	type T
//	tag N
//	tagger S
//
//	message
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Target)
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	if t.Tagger.Name != "" || t.Tagger.Email != "" {
		fmt.Fprintf(&buf, "tagger %s\n", FormatSignature(t.Tagger))
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a Tag from its serialized form.
func UnmarshalTag(data []byte) (*Tag, error) {
	lines, message, err := splitHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal tag: %w", err)
	}

	t := &Tag{Message: message}
	for _, h := range lines {
		switch h.key {
		case "object":
			id, err := ParseID(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: object: %w", err)
			}
			t.Target = id
		case "type":
			typ, err := ParseType(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: %w", err)
			}
			t.TargetType = typ
		case "tag":
			t.Name = h.value
		case "tagger":
			sig, err := ParseSignature(h.value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: tagger: %w", err)
			}
			t.Tagger = sig
		}
	}
	if t.Target.IsZero() || t.TargetType == TypeAny {
		return nil, fmt.Errorf("unmarshal tag: missing object or type header")
	}
	return t, nil
}
