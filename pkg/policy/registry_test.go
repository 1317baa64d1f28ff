package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/policy"
)

// wildcard grants everything to everyone.
type wildcard struct{}

func (wildcard) Allows(string, hints.Kind) bool { return true }

func resolve(t *testing.T, text string) (*policy.EffectivePolicy, []hints.Diagnostic) {
	t.Helper()
	return resolveOpts(t, text, policy.ResolveOptions{})
}

func resolveOpts(t *testing.T, text string, opts policy.ResolveOptions) (*policy.EffectivePolicy, []hints.Diagnostic) {
	t.Helper()
	files := []hints.File{{Path: "test-hints", Issuer: "tester", Text: text}}
	return policy.ResolveHints(files, wildcard{}, opts)
}

func TestResolve_BlockAllSourceWithUnblock(t *testing.T) {
	pol, diags := resolve(t, "block-all source\nunblock foo/1.0\n")
	require.Empty(t, diags)

	// Every not-yet-released item is blocked by default...
	assert.Equal(t, []policy.BlockKind{policy.BlockAll}, pol.BlockedBy("anything"))
	// ...except the specifically unblocked one; the default itself survives.
	assert.Empty(t, pol.BlockedBy("foo"))
	assert.True(t, pol.Blocked("bar"))
}

func TestResolve_BlockAllNewSource(t *testing.T) {
	pol, diags := resolveOpts(t, "block-all new-source\n",
		policy.ResolveOptions{Baseline: []string{"established"}})
	require.Empty(t, diags)

	assert.False(t, pol.Blocked("established"))
	assert.True(t, pol.Blocked("newcomer"))
}

func TestResolve_MismatchedPairsNeverCancel(t *testing.T) {
	pol, diags := resolve(t, "block foo\nunblock-udeb foo/1.0\n")
	require.Empty(t, diags)
	// unblock-udeb cancels only block-udeb/block-all, never block.
	assert.Equal(t, []policy.BlockKind{policy.BlockSource}, pol.BlockedBy("foo"))

	pol, diags = resolve(t, "block-udeb bar\nunblock bar/1.0\n")
	require.Empty(t, diags)
	assert.Equal(t, []policy.BlockKind{policy.BlockUdeb}, pol.BlockedBy("bar"))
}

func TestResolve_MatchedPairsCancel(t *testing.T) {
	pol, diags := resolve(t, "block foo\nunblock foo/1.0\nblock-udeb foo\nunblock-udeb foo/1.0\n")
	require.Empty(t, diags)
	assert.Empty(t, pol.BlockedBy("foo"))
}

func TestResolve_AgeDaysFirstOccurrenceWins(t *testing.T) {
	pol, diags := resolve(t, "age-days 5 foo/1.0\nage-days 10 foo/1.0\n")

	days, ok := pol.AgeOverride("foo")
	require.True(t, ok)
	assert.Equal(t, 5, days)

	require.Len(t, diags, 1)
	assert.Equal(t, hints.DuplicateConflict, diags[0].Class)
	assert.Equal(t, 2, diags[0].Line)
}

func TestResolve_UrgentOverridesAgeDaysBothOrders(t *testing.T) {
	for _, text := range []string{
		"urgent foo/1.0\nage-days 5 foo/1.0\n",
		"age-days 5 foo/1.0\nurgent foo/1.0\n",
	} {
		pol, _ := resolve(t, text)
		days, ok := pol.AgeOverride("foo")
		require.True(t, ok, text)
		assert.Equal(t, 0, days, text)
	}
}

func TestResolve_IgnoreRcBugsDuplicateRejected(t *testing.T) {
	pol, diags := resolve(t, "ignore-rc-bugs 100 foo/1.0\nignore-rc-bugs 200 foo/1.0\n")

	assert.Equal(t, []string{"100"}, pol.IgnoredBugs("foo"))

	require.Len(t, diags, 1)
	assert.Equal(t, hints.DuplicateConflict, diags[0].Class)
	assert.Contains(t, diags[0].Message, "multiple ignore-rc-bugs")
}

func TestResolve_ForceScopesAreIndependentAndAdditive(t *testing.T) {
	pol, diags := resolve(t, "force foo/1.0\nforce-skiptest foo/1.0/amd64\nforce-badtest bar/2.0\n")
	require.Empty(t, diags)

	assert.True(t, pol.Forced("foo"))
	assert.True(t, pol.SkipTest(hints.MigrationItem{Name: "foo", Version: "1.0", Architecture: "amd64"}))
	assert.False(t, pol.SkipTest(hints.MigrationItem{Name: "foo", Version: "1.0", Architecture: "armhf"}))
	assert.True(t, pol.BadTest(hints.MigrationItem{Name: "bar", Version: "2.0"}))
	assert.False(t, pol.Forced("bar"))
}

func TestResolve_ForceCoverageHonorsArch(t *testing.T) {
	pol, _ := resolve(t, "force foo/1.0/amd64\nforce bar/2.0\nforce-hint qux/3.0\n")

	assert.True(t, pol.CoveredByForce(hints.MigrationItem{Name: "foo", Version: "1.0", Architecture: "amd64"}))
	assert.False(t, pol.CoveredByForce(hints.MigrationItem{Name: "foo", Version: "1.0", Architecture: "armhf"}))
	// Unqualified entries cover every architecture.
	assert.True(t, pol.CoveredByForce(hints.MigrationItem{Name: "bar", Version: "2.0", Architecture: "s390x"}))
	// A force-hint registration is not force coverage.
	assert.True(t, pol.ForceHinted("qux"))
	assert.False(t, pol.CoveredByForce(hints.MigrationItem{Name: "qux", Version: "3.0"}))
}

func TestResolve_UnknownKeywordHasNoPolicyEffect(t *testing.T) {
	withUnknown, diags := resolve(t, "frobnicate X\nunblock foo/1.0\n")
	without, _ := resolve(t, "unblock foo/1.0\n")

	parseWarnings := 0
	for _, d := range diags {
		if d.Class == hints.ParseWarning {
			parseWarnings++
		}
	}
	assert.Equal(t, 1, parseWarnings)
	assert.Equal(t, without.Snapshot(), withUnknown.Snapshot())
}

func TestResolve_PermissionScopesApply(t *testing.T) {
	files := []hints.File{
		{Path: "alice", Issuer: "alice", Text: "block foo\n"},
		{Path: "bob", Issuer: "bob", Text: "block bar\n"},
	}
	table := issuerTable{"alice": {hints.KindBlock}}

	pol, diags := policy.ResolveHints(files, table, policy.ResolveOptions{})

	assert.True(t, pol.Blocked("foo"))
	assert.False(t, pol.Blocked("bar"))
	require.Len(t, diags, 1)
	assert.Equal(t, hints.PermissionDenied, diags[0].Class)
	assert.Equal(t, "bob", diags[0].Issuer)
}

type issuerTable map[string][]hints.Kind

func (t issuerTable) Allows(issuer string, kind hints.Kind) bool {
	for _, k := range t[issuer] {
		if k == kind {
			return true
		}
	}
	return false
}

func TestResolve_UnblockVersionOverride(t *testing.T) {
	pol, diags := resolve(t, "unblock foo/1.0\nunblock foo/2.0\n")

	v, ok := pol.UnblockVersion("foo")
	require.True(t, ok)
	assert.Equal(t, "2.0", v)

	require.Len(t, diags, 1)
	assert.Equal(t, hints.DuplicateOverride, diags[0].Class)
}

func TestResolve_AllowUninst(t *testing.T) {
	pol, diags := resolve(t, "allow-uninst libfoo libbar/armel\n")
	require.Empty(t, diags)

	// Unqualified entries cover every architecture.
	assert.True(t, pol.AllowUninst("libfoo", "amd64"))
	assert.True(t, pol.AllowUninst("libbar", "armel"))
	assert.False(t, pol.AllowUninst("libbar", "amd64"))
	assert.False(t, pol.AllowUninst("libqux", "amd64"))
}

func TestResolve_SmoothUpdateAndArchAllUpload(t *testing.T) {
	pol, diags := resolve(t, "allow-smooth-update foo/1.0\nallow-archall-maintainer-upload bar/2.0\n")
	require.Empty(t, diags)
	assert.True(t, pol.AllowSmoothUpdate("foo"))
	assert.True(t, pol.AllowArchAllMaintainerUpload("bar"))
	assert.False(t, pol.AllowSmoothUpdate("bar"))
}

func TestResolve_TrialDirectivesKeepOrder(t *testing.T) {
	pol, _ := resolve(t, "easy a/1 b/2\nhint c/3\nforce-hint d/4\n")

	trials := pol.TrialDirectives()
	require.Len(t, trials, 3)
	assert.Equal(t, hints.KindEasy, trials[0].Kind)
	assert.Equal(t, hints.KindHint, trials[1].Kind)
	assert.Equal(t, hints.KindForceHint, trials[2].Kind)
}

func TestSnapshot_HashDeterministic(t *testing.T) {
	text := "block-all source\nunblock foo/1.0\nage-days 5 bar/2.0\nforce baz/3.0/amd64\n"

	first, _ := resolve(t, text)
	second, _ := resolve(t, text)

	h1, err := first.Hash()
	require.NoError(t, err)
	h2, err := second.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other, _ := resolve(t, text+"urgent extra/9\n")
	h3, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestResolve_RemoveRecorded(t *testing.T) {
	pol, diags := resolve(t, "remove foo/1.0\n")
	require.Empty(t, diags)

	v, ok := pol.Removal("foo")
	require.True(t, ok)
	assert.Equal(t, "1.0", v)
}
