package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript_sync/internal/domain"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, []string{"fireflies", "pocket"}, cfg.Sync.Sources)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.NotNil(t, cfg.Sources)
	assert.Equal(t, "host=localhost port=5432 user=tss password= dbname=tss sslmode=disable", cfg.Database.DSN())
}

func TestLoad_ExpandsEnvAndParsesSources(t *testing.T) {
	t.Setenv("TSS_TEST_KEY", "ff-secret-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
api:
  timeout: 5s
sync:
  interval: 1h
  sources: [pocket]
sources:
  fireflies:
    api_key: ${TSS_TEST_KEY}
  pocket:
    api_key_command: echo pk
    default_tag: Work
    base_url: http://localhost:9999
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Sync.RunTimeout)
	assert.Equal(t, []string{"pocket"}, cfg.Sync.Sources)
	assert.Equal(t, "ff-secret-from-env", cfg.Source("fireflies").APIKey)
	assert.Equal(t, "Work", cfg.Source("pocket").DefaultTag)
	assert.Equal(t, SourceConfig{}, cfg.Source("otter"))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unclosed"), 0o600))

	_, err := Load(path)

	assert.ErrorContains(t, err, "parse config")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "****", Redact("short"))
	assert.Equal(t, "****", Redact("12345678"))
	assert.Equal(t, "abcd...6789", Redact("abcdef0123456789"))
}

func TestRedacted_DoesNotMutateOriginal(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Password: "db-password-1"},
		Sources: map[string]SourceConfig{
			"fireflies": {APIKey: "ff-0123456789"},
		},
	}

	red := cfg.Redacted()

	assert.Equal(t, "ff-0...6789", red.Sources["fireflies"].APIKey)
	assert.Equal(t, "db-p...rd-1", red.Database.Password)
	assert.Equal(t, "ff-0123456789", cfg.Sources["fireflies"].APIKey)

	out, err := red.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "ff-0123456789")
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteTemplate(path))
	assert.Error(t, WriteTemplate(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Contains(t, cfg.Sources, "fireflies")
}

func TestResolveCredential(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		override string
		env      string
		src      SourceConfig
		expected string
		err      bool
	}{
		{name: "override wins", override: "flag", env: "env", src: SourceConfig{APIKey: "file"}, expected: "flag"},
		{name: "env beats file", env: "env", src: SourceConfig{APIKey: "file"}, expected: "env"},
		{name: "file beats command", src: SourceConfig{APIKey: "file", APIKeyCommand: "echo cmd"}, expected: "file"},
		{name: "command output trimmed", src: SourceConfig{APIKeyCommand: "printf '  cmd-key \\n'"}, expected: "cmd-key"},
		{name: "command failure", src: SourceConfig{APIKeyCommand: "exit 3"}, err: true},
		{name: "command empty output", src: SourceConfig{APIKeyCommand: "true"}, err: true},
		{name: "nothing configured", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FIREFLIES_API_KEY", tt.env)

			key, err := ResolveCredential(ctx, "fireflies", tt.override, tt.src)
			if tt.err {
				assert.ErrorIs(t, err, domain.ErrCredential)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "POCKET_API_KEY", EnvVar("pocket"))
}
