package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, FileConfig{}, cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release-images.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream_repo: acme/widget
registry_repo: acme/widget
min_version: 2.0.0
force_rebuild: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme/widget", cfg.UpstreamRepo)
	assert.Equal(t, "2.0.0", cfg.MinVersion)
	require.NotNil(t, cfg.ForceRebuild)
	assert.True(t, *cfg.ForceRebuild)
	assert.Nil(t, cfg.DryRun)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestFromStringRejectsBadYAML(t *testing.T) {
	_, err := FromString("upstream_repo: [unterminated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config YAML")
}

func TestDefaultTemplateParses(t *testing.T) {
	cfg, err := FromString(DefaultTemplate())
	require.NoError(t, err)
	assert.Equal(t, "hub", cfg.RegistryAPI)
	assert.Equal(t, "0.0.0", cfg.MinVersion)
	assert.Equal(t, "docker", cfg.Engine)
}
