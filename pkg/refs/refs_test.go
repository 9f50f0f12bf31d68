package refs

import (
	"testing"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameHelpers(t *testing.T) {
	n := BranchName("feature/x")
	assert.Equal(t, Name("refs/heads/feature/x"), n)
	branch, ok := n.Branch()
	require.True(t, ok)
	assert.Equal(t, "feature/x", branch)
	assert.Equal(t, "feature/x", n.Short())

	_, ok = TagName("v1").Branch()
	assert.False(t, ok)
	assert.Equal(t, "v1", TagName("v1").Short())
	assert.Equal(t, "HEAD", HEAD.Short())
}

func TestValidate(t *testing.T) {
	valid := []Name{"HEAD", "refs/heads/master", "refs/tags/v1.0", "refs/remotes/origin/main"}
	for _, n := range valid {
		assert.NoError(t, n.Validate(), n)
	}

	invalid := []Name{
		"", "master", "refs/heads/", "refs//x", "refs/heads/a..b", "refs/heads/.hidden",
		"refs/heads/x.lock", "refs/heads/a b", "refs/heads/a~1", "refs/heads/a^", "refs/heads/a:b",
		"refs/heads/x.", "refs/heads/@{u}",
	}
	for _, n := range invalid {
		assert.Error(t, n.Validate(), n)
	}
}

func TestValidateShortName(t *testing.T) {
	require.NoError(t, ValidateShortName("main"))
	require.NoError(t, ValidateShortName("release/1.x"))
	for _, bad := range []string{"", " ", "/x", "x/", "-x", "a..b"} {
		assert.Error(t, ValidateShortName(bad), bad)
	}
}

func TestReferenceKinds(t *testing.T) {
	direct := NewReference("refs/heads/master", object.EmptyTreeID)
	assert.False(t, direct.IsSymbolic())
	assert.Equal(t, "refs/heads/master "+object.EmptyTreeID.String(), direct.String())

	sym := NewSymbolicReference(HEAD, "refs/heads/master")
	assert.True(t, sym.IsSymbolic())
	assert.True(t, sym.Target.IsZero())
	assert.Equal(t, "HEAD -> refs/heads/master", sym.String())
}
