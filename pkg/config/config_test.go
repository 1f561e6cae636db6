package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seeds:\n  - https://seed.example:443\nlog_level: debug\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://seed.example:443"}, cfg.Seeds)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Default().MetricsAddr, cfg.MetricsAddr, "unset fields keep their default")
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSigningKey_RejectsWrongLength(t *testing.T) {
	cfg := Default()
	cfg.Identity.SigningPrivateHex = "aabb"
	_, err := cfg.SigningKey()
	assert.Error(t, err)
}

func TestSigningKey_EmptyReturnsNil(t *testing.T) {
	cfg := Default()
	key, err := cfg.SigningKey()
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestChallengeKey_RejectsWrongLength(t *testing.T) {
	cfg := Default()
	cfg.Identity.ChallengePrivateHex = "aabb"
	_, err := cfg.ChallengeKey()
	assert.Error(t, err)
}
