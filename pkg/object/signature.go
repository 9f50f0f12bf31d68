package object

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignature is returned for identities that cannot be written into
// a commit or tag header and read back.
var ErrInvalidSignature = errors.New("object: invalid signature")

// ValidateSignature rejects names and emails holding angle brackets, line
// breaks or NUL bytes.
func ValidateSignature(s Signature) error {
	if strings.ContainsAny(s.Name, "<>\n\x00") {
		return fmt.Errorf("%w: name %q", ErrInvalidSignature, s.Name)
	}
	if strings.ContainsAny(s.Email, "<>\n\x00") {
		return fmt.Errorf("%w: email %q", ErrInvalidSignature, s.Email)
	}
	return nil
}

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload excludes the signature field itself.
func CommitSigningPayload(c *Commit) []byte {
	if c == nil {
		return nil
	}
	copyCommit := *c
	copyCommit.Signature = ""
	return MarshalCommit(&copyCommit)
}
