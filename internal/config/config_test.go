package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults are applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, BackendBleve, cfg.Index.Backend)
	assert.Equal(t, 100000, cfg.Index.QueueCapacity)
	assert.Equal(t, 10000, cfg.Index.CommitThreshold)
	assert.Equal(t, "2s", cfg.Index.CommitIdle)
	assert.Equal(t, "2s", cfg.Index.ShutdownGrace)
	assert.Equal(t, 20, cfg.Index.PageSize)
	assert.Equal(t, "1h", cfg.Crawler.Interval)
	assert.Contains(t, cfg.Crawler.SkipPatterns, "node_modules")
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".labsearch"), cfg.Index.DataDir)
	assert.Equal(t, filepath.Join(dir, ".labsearch", "labsearch.sock"), cfg.SocketPath())
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	// Given: a project config with a sqlite backend and extra skip patterns
	isolate(t)
	dir := t.TempDir()
	yaml := `
index:
  backend: sqlite
  commit_threshold: 50
  categories: [protocol, assay]
crawler:
  roots: ["dav:/"]
  skip_patterns: ["build"]
sources:
  dav_root: docs
watch:
  enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(yaml), 0o644))

	// When
	cfg, err := Load(dir)

	// Then
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, 50, cfg.Index.CommitThreshold)
	assert.Equal(t, 100000, cfg.Index.QueueCapacity, "unset values keep defaults")
	assert.Equal(t, []string{"dav:/"}, cfg.Crawler.Roots)
	assert.Contains(t, cfg.Crawler.SkipPatterns, "node_modules")
	assert.Contains(t, cfg.Crawler.SkipPatterns, "build")
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.Sources.DavRoot)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, []string{"protocol", "assay"}, cfg.Index.Categories)
}

func TestLoad_UserConfigBelowProjectConfig(t *testing.T) {
	// Given: the user config sets a log level and a backend, the project
	// config overrides only the backend
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "labsearch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "labsearch", "config.yaml"),
		[]byte("index:\n  backend: noop\nserver:\n  log_level: debug\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("index:\n  backend: sqlite\n"), 0o644))

	// When
	cfg, err := Load(dir)

	// Then
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("index:\n  backend: sqlite\n"), 0o644))

	t.Setenv("LABSEARCH_BACKEND", "noop")
	t.Setenv("LABSEARCH_QUEUE_CAPACITY", "10")
	t.Setenv("LABSEARCH_WATCH", "true")
	t.Setenv("LABSEARCH_CRAWL_RATE", "2.5")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, BackendNoop, cfg.Index.Backend)
	assert.Equal(t, 10, cfg.Index.QueueCapacity)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 2.5, cfg.Crawler.RateLimit)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("index: [unclosed"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Index.Backend = "lucene" }, "index.backend"},
		{"remote without url", func(c *Config) { c.Index.Backend = BackendRemote }, "remote.url"},
		{"remote with url", func(c *Config) { c.Index.Backend = BackendRemote; c.Remote.URL = "http://idx" }, ""},
		{"zero capacity", func(c *Config) { c.Index.QueueCapacity = 0 }, "queue_capacity"},
		{"zero threshold", func(c *Config) { c.Index.CommitThreshold = 0 }, "commit_threshold"},
		{"bad duration", func(c *Config) { c.Index.CommitIdle = "soon" }, "index.commit_idle"},
		{"zero interval ok", func(c *Config) { c.Crawler.Interval = "0" }, ""},
		{"s3 without bucket", func(c *Config) { c.Sources.S3.Endpoint = "localhost:9000" }, "bucket"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, Duration("2s", time.Minute))
	assert.Equal(t, time.Duration(0), Duration("0", time.Minute))
	assert.Equal(t, time.Duration(0), Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("nope", time.Minute))
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Index.Backend = BackendSQLite
	cfg.Crawler.Roots = []string{"dav:/reports"}

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, loaded.Index.Backend)
	assert.Equal(t, []string{"dav:/reports"}, loaded.Crawler.Roots)
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// Missing file is not an error
	backup, err := BackupFile(path)
	require.NoError(t, err)
	assert.Empty(t, backup)

	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	backup, err = BackupFile(path)
	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigName), []byte("version: 1\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, root, found)
}
