package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, "memory", c.Cache.Kind)
	require.Equal(t, 50, c.Audit.MaxEntries)
	require.Equal(t, LinkConflictKeepOwner, c.Federation.LinkConflict)
	require.False(t, c.Consent.RequirePriorAuthorization)
	require.Equal(t, time.Minute, c.CommitWindow())
	require.Equal(t, 10*time.Minute, c.MemoryTTL())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	p := writeYAML(t, `
storage:
  driver: sqlite
  dsn: /tmp/consent.db
audit:
  max_entries: 10
federation:
  link_conflict: reject
`)
	t.Setenv("AUDIT_MAX_ENTRIES", "7")
	t.Setenv("CONSENT_REQUIRE_PRIOR_AUTHORIZATION", "true")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "sqlite", c.Storage.Driver)
	require.Equal(t, "/tmp/consent.db", c.Storage.DSN)
	require.Equal(t, 7, c.Audit.MaxEntries)
	require.Equal(t, LinkConflictReject, c.Federation.LinkConflict)
	require.True(t, c.Consent.RequirePriorAuthorization)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"postgres sin dsn":    "storage:\n  driver: postgres\n",
		"driver desconocido":  "storage:\n  driver: mongo\n",
		"redis sin addr":      "cache:\n  kind: redis\n",
		"audit negativo":      "audit:\n  max_entries: -1\n",
		"link_conflict raro":  "federation:\n  link_conflict: merge\n",
		"window no parseable": "rate:\n  commit:\n    window: soon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("AUTH_PIPELINE_KEY", "pk")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", c.App.Env)
}
