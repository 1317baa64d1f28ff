package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgflow/gatekeeper/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
hint_files:
  - path: hints/alice
    issuer: alice
  - path: hints/release
    issuer: release
permissions: permissions.json
audit_db: trail.db
log_level: DEBUG
telemetry:
  enabled: true
  endpoint: collector:4317
  insecure: true
baseline:
  - established
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.HintFiles, 2)
	assert.Equal(t, config.HintFile{Path: "hints/alice", Issuer: "alice"}, cfg.HintFiles[0])
	assert.Equal(t, "release", cfg.HintFiles[1].Issuer)
	assert.Equal(t, "permissions.json", cfg.Permissions)
	assert.Equal(t, "trail.db", cfg.AuditDB)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, []string{"established"}, cfg.Baseline)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
hint_files:
  - path: hints/alice
    issuer: alice
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.AuditDB)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEKEEPER_AUDIT_DB", "/var/lib/gatekeeper/trail.db")
	t.Setenv("GATEKEEPER_LOG_LEVEL", "ERROR")
	t.Setenv("GATEKEEPER_OTLP_ENDPOINT", "otel:4317")

	path := writeConfig(t, `
hint_files:
  - path: hints/alice
    issuer: alice
audit_db: trail.db
log_level: DEBUG
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gatekeeper/trail.db", cfg.AuditDB)
	assert.Equal(t, "ERROR", cfg.LogLevel)
	assert.Equal(t, "otel:4317", cfg.Telemetry.Endpoint)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no hint files":  `log_level: INFO`,
		"missing issuer": "hint_files:\n  - path: hints/alice\n",
		"missing path":   "hint_files:\n  - issuer: alice\n",
		"not yaml":       `{{{`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
