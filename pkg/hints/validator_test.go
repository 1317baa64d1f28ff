package hints_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgflow/gatekeeper/pkg/hints"
)

// fakeTable is a test PermissionTable granting a fixed kind set per issuer.
type fakeTable map[string][]hints.Kind

func (f fakeTable) Allows(issuer string, kind hints.Kind) bool {
	for _, k := range f[issuer] {
		if k == kind {
			return true
		}
	}
	return false
}

// allowAll grants everything to everyone.
type allowAll struct{}

func (allowAll) Allows(string, hints.Kind) bool { return true }

func validateText(t *testing.T, text string, table hints.PermissionTable) ([]hints.Hint, []hints.Diagnostic) {
	t.Helper()
	parsed, _ := hints.ParseFile(hints.File{Path: "test-hints", Issuer: "tester", Text: text})
	return hints.Validate(parsed, table)
}

func TestValidate_PermissionDenied(t *testing.T) {
	table := fakeTable{"tester": {hints.KindUnblock}}

	valid, diags := validateText(t, "unblock foo/1.0\nremove bar/2.0\n", table)

	require.Len(t, valid, 1)
	assert.Equal(t, hints.KindUnblock, valid[0].Kind)

	require.Len(t, diags, 1)
	assert.Equal(t, hints.PermissionDenied, diags[0].Class)
	assert.Equal(t, hints.KindRemove, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "not permitted")
}

func TestValidate_UnknownDroppedSilently(t *testing.T) {
	// The parser already warned; the validator must not add a second
	// diagnostic for the same line.
	valid, diags := validateText(t, "frobnicate X\n", allowAll{})
	assert.Empty(t, valid)
	assert.Empty(t, diags)
}

func TestValidate_EasyNeedsTwoEntries(t *testing.T) {
	valid, diags := validateText(t, "easy foo/1.0\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
	assert.Contains(t, diags[0].Message, "at least 2")
}

func TestValidate_AgeDaysNonNegative(t *testing.T) {
	valid, diags := validateText(t, "age-days -3 foo/1.0\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
}

func TestValidate_BlockTakesUnversioned(t *testing.T) {
	valid, diags := validateText(t, "block foo/1.0\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)

	valid, diags = validateText(t, "block foo\n", allowAll{})
	assert.Len(t, valid, 1)
	assert.Empty(t, diags)
}

func TestValidate_UnblockTakesVersioned(t *testing.T) {
	valid, diags := validateText(t, "unblock foo\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
}

func TestValidate_SourceLevelKindsRejectArch(t *testing.T) {
	// urgent is source-level: an arch-qualified reference is invalid.
	valid, diags := validateText(t, "urgent foo/1.0/amd64\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
	assert.Contains(t, diags[0].Message, "source-level")
}

func TestValidate_RemoveRejectsRemovalPrefix(t *testing.T) {
	valid, diags := validateText(t, "remove -foo/1.0\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
}

func TestValidate_BlockAllScope(t *testing.T) {
	valid, diags := validateText(t, "block-all source\nblock-all new-source\nblock-all everything\n", allowAll{})
	assert.Len(t, valid, 2)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
}

func TestValidate_BlockAllRejectsExtraArguments(t *testing.T) {
	valid, diags := validateText(t, "block-all source junk\n", allowAll{})
	assert.Empty(t, valid)
	require.Len(t, diags, 1)
	assert.Equal(t, hints.ShapeError, diags[0].Class)
	assert.Contains(t, diags[0].Message, "exactly one argument")
}

func TestValidate_ForceAllowsArchQualified(t *testing.T) {
	valid, diags := validateText(t, "force foo/1.0/armhf\nforce-hint bar/2.0\n", allowAll{})
	assert.Len(t, valid, 2)
	assert.Empty(t, diags)
}

func TestValidate_FailuresAreNeverFatal(t *testing.T) {
	// A shape error in the middle leaves surrounding hints intact.
	valid, diags := validateText(t, "unblock a/1\neasy only-one/1\nunblock b/2\n", allowAll{})
	require.Len(t, valid, 2)
	assert.Equal(t, "a", valid[0].Args[0].Name)
	assert.Equal(t, "b", valid[1].Args[0].Name)
	require.Len(t, diags, 1)
}
