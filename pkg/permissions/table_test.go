package permissions_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/permissions"
)

func TestNew_GrantsAreExact(t *testing.T) {
	table, err := permissions.New(map[string][]string{
		"alice": {"unblock", "age-days"},
	})
	require.NoError(t, err)

	assert.True(t, table.Allows("alice", hints.KindUnblock))
	assert.True(t, table.Allows("alice", hints.KindAgeDays))
	assert.False(t, table.Allows("alice", hints.KindRemove))
	assert.False(t, table.Allows("unknown", hints.KindUnblock))
}

func TestNew_WildcardGrantsEverything(t *testing.T) {
	table, err := permissions.New(map[string][]string{"release": {permissions.Wildcard}})
	require.NoError(t, err)

	for _, kind := range hints.AllKinds() {
		assert.True(t, table.Allows("release", kind), kind)
	}
}

func TestNew_UnknownKeywordRejected(t *testing.T) {
	_, err := permissions.New(map[string][]string{"bob": {"frobnicate"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
	assert.Contains(t, err.Error(), "bob")
}

func TestNew_ApproveGrantsUnblock(t *testing.T) {
	table, err := permissions.New(map[string][]string{"carol": {"approve"}})
	require.NoError(t, err)
	assert.True(t, table.Allows("carol", hints.KindUnblock))
}

func TestParse_ValidFile(t *testing.T) {
	table, err := permissions.Parse([]byte(`{
		"issuers": {
			"alice": ["unblock", "urgent"],
			"release": ["*"]
		}
	}`))
	require.NoError(t, err)

	assert.True(t, table.Allows("alice", hints.KindUrgent))
	assert.False(t, table.Allows("alice", hints.KindBlockAll))
	assert.True(t, table.Allows("release", hints.KindBlockAll))
}

func TestParse_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing issuers":     `{}`,
		"extra top-level key": `{"issuers": {}, "extra": true}`,
		"empty grant list":    `{"issuers": {"alice": []}}`,
		"non-string grant":    `{"issuers": {"alice": [42]}}`,
		"not json":            `issuers: alice`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := permissions.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"issuers": {"alice": ["block"]}}`), 0o600))

	table, err := permissions.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, table.Allows("alice", hints.KindBlock))

	_, err = permissions.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
