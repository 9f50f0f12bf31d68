package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashObjectMatchesGit(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		data string
		want string
	}{
		{name: "empty blob", typ: TypeBlob, data: "", want: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{name: "pro git blob", typ: TypeBlob, data: "test content\n", want: "d670460b4b4aece5915caf5c68d12f560a9fe3e4"},
		{name: "doc blob", typ: TypeBlob, data: "what is up, doc?\n", want: "bd9dbf5aae1a3862dd1526723246b20206e5fc37"},
		{name: "empty tree", typ: TypeTree, data: "", want: "4b825dc642cb6eb9a060e54bf8d69288fbee4904"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HashObject(tc.typ, []byte(tc.data)).String())
		})
	}
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", EmptyTreeID.String())
}

func TestHashObjectTypeMatters(t *testing.T) {
	data := []byte("same bytes")
	assert.NotEqual(t, HashObject(TypeBlob, data), HashObject(TypeTag, data))
	assert.Equal(t, HashObject(TypeBlob, data), HashObject(TypeBlob, data))
}

func TestTreeRoundTripAndOrder(t *testing.T) {
	blob := HashObject(TypeBlob, []byte("x"))
	tree := &Tree{Entries: []TreeEntry{
		{Name: "lib", Mode: ModeDir, ID: EmptyTreeID},
		{Name: "lib.go", Mode: ModeFile, ID: blob},
		{Name: "a", Mode: ModeExecutable, ID: blob},
	}}

	got, err := UnmarshalTree(MarshalTree(tree))
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)

	// "lib.go" sorts before "lib/" because '.' < '/'.
	names := []string{got.Entries[0].Name, got.Entries[1].Name, got.Entries[2].Name}
	assert.Equal(t, []string{"a", "lib.go", "lib"}, names)
	assert.Equal(t, ModeDir, got.Entries[2].Mode)
	assert.Equal(t, EmptyTreeID, got.Entries[2].ID)
	assert.Equal(t, ModeExecutable, got.Entries[0].Mode)
}

func TestMarshalTreeDoesNotReorderInput(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "b", Mode: ModeFile},
		{Name: "a", Mode: ModeFile},
	}}
	MarshalTree(tree)
	assert.Equal(t, "b", tree.Entries[0].Name)
}

func TestUnmarshalTreeRejectsTruncatedEntry(t *testing.T) {
	_, err := UnmarshalTree([]byte("100644 file\x00short"))
	require.Error(t, err)

	_, err = UnmarshalTree([]byte("777 file\x00"))
	require.Error(t, err)
}

func TestCommitRoundTrip(t *testing.T) {
	zone := time.FixedZone("", 5*3600+30*60)
	when := time.Unix(1708260537, 0).In(zone)
	parent := HashObject(TypeCommit, []byte("parent"))
	orig := &Commit{
		Tree:      EmptyTreeID,
		Parents:   []ID{parent, EmptyTreeID},
		Author:    Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: when},
		Committer: Signature{Name: "Bot", Email: "bot@example.com", When: when.UTC()},
		Encoding:  "ISO-8859-1",
		Signature: "-----BEGIN SSH SIGNATURE-----\nabc\n\ndef\n-----END SSH SIGNATURE-----",
		Message:   "subject\n\nbody\n",
	}

	got, err := UnmarshalCommit(MarshalCommit(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.Tree, got.Tree)
	assert.Equal(t, orig.Parents, got.Parents)
	assert.Equal(t, "Ada Lovelace", got.Author.Name)
	assert.Equal(t, "ada@example.com", got.Author.Email)
	assert.Equal(t, when.Unix(), got.Author.When.Unix())
	_, offset := got.Author.When.Zone()
	assert.Equal(t, 5*3600+30*60, offset)
	assert.Equal(t, orig.Encoding, got.Encoding)
	assert.Equal(t, orig.Message, got.Message)
	assert.Equal(t, "-----BEGIN SSH SIGNATURE-----\nabc\n\ndef\n-----END SSH SIGNATURE-----", got.Signature)
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &Commit{Tree: EmptyTreeID, Message: "m", Signature: "sig"}
	unsigned := *c
	unsigned.Signature = ""
	assert.Equal(t, MarshalCommit(&unsigned), CommitSigningPayload(c))
	assert.Equal(t, "sig", c.Signature)
}

func TestUnmarshalCommitRequiresTree(t *testing.T) {
	_, err := UnmarshalCommit([]byte("author A <a@b> 1 +0000\n\nmsg"))
	require.Error(t, err)
}

func TestUnmarshalCommitSkipsUnknownHeaders(t *testing.T) {
	raw := "tree " + EmptyTreeID.String() + "\n" +
		"author A <a@b> 1 +0000\n" +
		"committer A <a@b> 1 +0000\n" +
		"mergetag object " + EmptyTreeID.String() + "\n type tree\n" +
		"\nmsg"
	c, err := UnmarshalCommit([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "msg", c.Message)
}

func TestTagRoundTrip(t *testing.T) {
	orig := &Tag{
		Target:     EmptyTreeID,
		TargetType: TypeTree,
		Name:       "v1.0.0",
		Tagger:     Signature{Name: "T", Email: "t@example.com", When: time.Unix(100, 0).UTC()},
		Message:    "release\n",
	}
	got, err := UnmarshalTag(MarshalTag(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.Target, got.Target)
	assert.Equal(t, orig.TargetType, got.TargetType)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Message, got.Message)
	assert.Equal(t, int64(100), got.Tagger.When.Unix())
}

func TestParseSignatureRejectsGarbage(t *testing.T) {
	_, err := ParseSignature("no email here")
	require.Error(t, err)

	_, err = ParseSignature("A <a@b> notanumber +0000")
	require.Error(t, err)

	_, err = ParseSignature("A <a@b> 1 0000")
	require.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeDir, ModeFile, ModeExecutable, ModeSymlink, ModeSubmodule} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode("100664")
	require.NoError(t, err)
	assert.Equal(t, ModeFile, got)

	_, err = ParseMode("123")
	require.Error(t, err)
	assert.Equal(t, "40000", ModeDir.String())
	assert.Equal(t, TypeCommit, ModeSubmodule.ObjectType())
}

func TestValidateEntryName(t *testing.T) {
	require.NoError(t, ValidateEntryName("main.go"))
	for _, bad := range []string{"", ".", "..", "a/b", "nul\x00"} {
		assert.Error(t, ValidateEntryName(bad), bad)
	}
}

func TestValidateSignature(t *testing.T) {
	when := time.Unix(1700000000, 0)
	require.NoError(t, ValidateSignature(Signature{Name: "A U Thor", Email: "a@example.com", When: when}))
	require.NoError(t, ValidateSignature(Signature{Name: "solo", When: when}))

	for _, bad := range []Signature{
		{Name: "A\nparent 0000000000000000000000000000000000000000", Email: "a@example.com"},
		{Name: "A <evil>", Email: "a@example.com"},
		{Name: "A", Email: "a@example.com>"},
		{Name: "A", Email: "a\n@example.com"},
		{Name: "A\x00", Email: "a@example.com"},
	} {
		err := ValidateSignature(bad)
		assert.ErrorIs(t, err, ErrInvalidSignature, "%q <%q>", bad.Name, bad.Email)
	}
}
