// Package refs defines reference names and the direct/symbolic reference
// value shared by storage engines and the repository layer.
package refs

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitobj/pkg/object"
)

const (
	// HEAD is the name of the repository's current-branch pointer.
	HEAD Name = "HEAD"

	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"
)

// Name is a fully qualified reference name such as "refs/heads/master". It
// does not support revision syntax.
type Name string

// BranchName returns the fully qualified name of a branch.
func BranchName(branch string) Name {
	return Name(HeadsPrefix + branch)
}

// TagName returns the fully qualified name of a tag.
func TagName(tag string) Name {
	return Name(TagsPrefix + tag)
}

func (n Name) String() string {
	return string(n)
}

// Branch returns the short branch name if n lives under refs/heads/.
func (n Name) Branch() (string, bool) {
	if strings.HasPrefix(string(n), HeadsPrefix) {
		return string(n)[len(HeadsPrefix):], true
	}
	return "", false
}

// Short strips the refs/heads/ or refs/tags/ prefix when present.
func (n Name) Short() string {
	s := string(n)
	for _, prefix := range []string{HeadsPrefix, TagsPrefix, "refs/"} {
		if strings.HasPrefix(s, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

// Validate checks the subset of git-check-ref-format(1) rules that matter
// for storage: names are HEAD or live under refs/, contain no empty,
// dot-leading or ".lock" components and none of the forbidden characters.
func (n Name) Validate() error {
	s := string(n)
	if s == string(HEAD) {
		return nil
	}
	if !strings.HasPrefix(s, "refs/") {
		return fmt.Errorf("invalid reference name %q: must be HEAD or start with refs/", s)
	}
	if strings.Contains(s, "..") || strings.Contains(s, "@{") || strings.HasSuffix(s, ".") {
		return fmt.Errorf("invalid reference name %q", s)
	}
	if strings.ContainsAny(s, " \t\n\r~^:?*[\\\x00\x7f") {
		return fmt.Errorf("invalid reference name %q", s)
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" || strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".lock") {
			return fmt.Errorf("invalid reference name %q", s)
		}
	}
	return nil
}

// ValidateShortName checks a branch or tag name before it is qualified.
func ValidateShortName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid name %q", name)
	}
	return Name("refs/x/" + name).Validate()
}

// Reference is a named pointer: direct references hold an object id,
// symbolic references hold the name of another reference.
type Reference struct {
	Name Name
	// Target is the object id of a direct reference; zero for symbolic ones.
	Target object.ID
	// SymbolicTarget is the name a symbolic reference points at.
	SymbolicTarget Name
}

// NewReference creates a direct reference to an object.
func NewReference(name Name, target object.ID) Reference {
	return Reference{Name: name, Target: target}
}

// NewSymbolicReference creates a symbolic reference to another reference.
func NewSymbolicReference(name, target Name) Reference {
	return Reference{Name: name, SymbolicTarget: target}
}

// IsSymbolic tells whether the reference points at another reference.
func (r Reference) IsSymbolic() bool {
	return r.SymbolicTarget != ""
}

func (r Reference) String() string {
	if r.IsSymbolic() {
		return fmt.Sprintf("%s -> %s", r.Name, r.SymbolicTarget)
	}
	return fmt.Sprintf("%s %s", r.Name, r.Target)
}
