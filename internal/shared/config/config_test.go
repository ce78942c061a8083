package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOSTNAME", "build-host")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.App.Listen)
	assert.Equal(t, "release", cfg.App.Mode)
	assert.Equal(t, "bandwidth.monitor", cfg.Docker.MonitorLabel)
	assert.Equal(t, "/var/run/docker.sock", cfg.Docker.Socket)
	assert.Equal(t, 1000, cfg.Traffic.CollectInterval)
	assert.Equal(t, 30000, cfg.Traffic.PersistInterval)
	assert.Equal(t, 300, cfg.Traffic.SyncInterval)
	assert.Equal(t, 30, cfg.Traffic.TrafficRetentionDays)
	assert.Equal(t, 90, cfg.Traffic.AuditRetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessExpiry)
	assert.Empty(t, cfg.Docker.SelfContainerID)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("MONITOR_LABEL", "net.quota")
	t.Setenv("COLLECT_INTERVAL", "2000")
	t.Setenv("SYNC_INTERVAL", "60")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Listen)
	assert.Equal(t, "root", cfg.Auth.AdminUsername)
	assert.Equal(t, "net.quota", cfg.Docker.MonitorLabel)
	assert.Equal(t, 2000, cfg.Traffic.CollectInterval)
	assert.Equal(t, 60, cfg.Traffic.SyncInterval)
}

func TestLoadSelfContainerIDFromHostname(t *testing.T) {
	// 容器内HOSTNAME是容器ID前缀
	t.Setenv("HOSTNAME", "3f2c9a8b1d4e")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3f2c9a8b1d4e", cfg.Docker.SelfContainerID)
}

func TestLoadIgnoresNonIDHostname(t *testing.T) {
	t.Setenv("HOSTNAME", "my-laptop")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Docker.SelfContainerID)
}

func TestLoadRejectsInvalidIntervals(t *testing.T) {
	t.Setenv("COLLECT_INTERVAL", "-5")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadFromYAMLFile(t *testing.T) {
	t.Setenv("HOSTNAME", "build-host")

	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := `
app:
  listen: ":9090"
  mode: "debug"
docker:
  monitor_label: "custom.label"
traffic:
  collect_interval: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Listen)
	assert.Equal(t, "debug", cfg.App.Mode)
	assert.Equal(t, "custom.label", cfg.Docker.MonitorLabel)
	assert.Equal(t, 500, cfg.Traffic.CollectInterval)
	// 文件未覆盖的字段保持默认值
	assert.Equal(t, 30000, cfg.Traffic.PersistInterval)
}

func TestGlobalConfig(t *testing.T) {
	cfg := &Config{}
	cfg.App.Name = "test"

	SetGlobalConfig(cfg)
	got := GetGlobalConfig()
	require.NotNil(t, got)
	assert.Equal(t, "test", got.App.Name)
}
