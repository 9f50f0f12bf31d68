// Package view renders repository values as plain structs for JSON and YAML
// output.
package view

import (
	"fmt"
	"time"

	"github.com/odvcencio/gitobj/pkg/repository"
)

// Signature is an author, committer or tagger.
type Signature struct {
	Name  string    `json:"name" yaml:"name"`
	Email string    `json:"email" yaml:"email"`
	When  time.Time `json:"when" yaml:"when"`
}

// Commit is a rendered commit.
type Commit struct {
	ID        string    `json:"id" yaml:"id"`
	Tree      string    `json:"tree" yaml:"tree"`
	Parents   []string  `json:"parents" yaml:"parents"`
	Author    Signature `json:"author" yaml:"author"`
	Committer Signature `json:"committer" yaml:"committer"`
	Encoding  string    `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Signed    bool      `json:"signed" yaml:"signed"`
	Message   string    `json:"message" yaml:"message"`
}

// TreeEntry is one rendered tree entry.
type TreeEntry struct {
	Mode string `json:"mode" yaml:"mode"`
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Tree is a rendered tree.
type Tree struct {
	ID      string      `json:"id" yaml:"id"`
	Entries []TreeEntry `json:"entries" yaml:"entries"`
}

// Blob describes a blob without its content.
type Blob struct {
	ID     string `json:"id" yaml:"id"`
	Size   int    `json:"size" yaml:"size"`
	Binary bool   `json:"binary" yaml:"binary"`
}

// Tag is a rendered annotated tag.
type Tag struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Target     string    `json:"target" yaml:"target"`
	TargetType string    `json:"target_type" yaml:"target_type"`
	Tagger     Signature `json:"tagger" yaml:"tagger"`
	Message    string    `json:"message" yaml:"message"`
}

// Reference is a rendered reference.
type Reference struct {
	Name     string `json:"name" yaml:"name"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Symbolic string `json:"symbolic,omitempty" yaml:"symbolic,omitempty"`
	Peeled   string `json:"peeled,omitempty" yaml:"peeled,omitempty"`
}

func signature(name, email string, when time.Time) Signature {
	return Signature{Name: name, Email: email, When: when}
}

// FromCommit renders c.
func FromCommit(c *repository.Commit) Commit {
	parents := make([]string, 0, c.ParentCount())
	for _, p := range c.ParentIDs() {
		parents = append(parents, p.String())
	}
	a, cm := c.Author(), c.Committer()
	return Commit{
		ID:        c.ID().String(),
		Tree:      c.TreeID().String(),
		Parents:   parents,
		Author:    signature(a.Name, a.Email, a.When),
		Committer: signature(cm.Name, cm.Email, cm.When),
		Encoding:  c.Encoding(),
		Signed:    c.SignatureArmor() != "",
		Message:   c.Message(),
	}
}

// FromTree renders t.
func FromTree(t *repository.Tree) Tree {
	entries := t.Entries()
	out := Tree{ID: t.ID().String(), Entries: make([]TreeEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, TreeEntry{
			Mode: fmt.Sprintf("%06o", uint32(e.Mode)),
			Type: e.Mode.ObjectType().String(),
			ID:   e.ID.String(),
			Name: e.Name,
		})
	}
	return out
}

// FromBlob describes b.
func FromBlob(b *repository.Blob) Blob {
	return Blob{ID: b.ID().String(), Size: b.Size(), Binary: b.IsBinary()}
}

// FromTag renders t.
func FromTag(t *repository.Tag) Tag {
	tg := t.Tagger()
	return Tag{
		ID:         t.ID().String(),
		Name:       t.Name(),
		Target:     t.TargetID().String(),
		TargetType: t.TargetType().String(),
		Tagger:     signature(tg.Name, tg.Email, tg.When),
		Message:    t.Message(),
	}
}

// FromReference renders r without peeling it.
func FromReference(r *repository.Reference) Reference {
	if r.IsSymbolic() {
		return Reference{Name: string(r.Name()), Symbolic: string(r.SymbolicTarget())}
	}
	return Reference{Name: string(r.Name()), Target: r.Target().String()}
}
