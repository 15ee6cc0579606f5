package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reduce_fanout: 8\nshared_root: /data/shared\nlocal_mount: /data/local\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ReduceFanout)
	assert.Equal(t, "/data/shared", cfg.SharedRoot)
	assert.Equal(t, "/data/local", cfg.LocalMount)
	assert.Equal(t, Defaults().RetryBudget, cfg.RetryBudget)
}

func TestLoadOverlaysDurationFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"heartbeat_interval: 10s\nlost_threshold: 2m\ndispatch_timeout: 1500ms\n",
	), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Minute, cfg.LostThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.DispatchTimeout)
	assert.Equal(t, Defaults().PollInterval, cfg.PollInterval)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heartbeat_interval: not-a-duration\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidReduceFanout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reduce_fanout: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsIdenticalRoots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shared_root: /same\nlocal_mount: /same\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
