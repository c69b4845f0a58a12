package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCalendar, cfg.Calendar)
	assert.Equal(t, DefaultTaskCommand, cfg.TaskCommand)
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	in := &Config{
		Calendar:    "Work",
		DataDir:     "/var/lib/twsync",
		TaskCommand: "/opt/bin/task",
		Schedule:    "*/5 * * * *",
		MetricsAddr: ":9464",
		LogLevel:    "debug",
	}
	require.NoError(t, SaveFile(path, in))

	out, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar: Personal\n"), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Personal", cfg.Calendar)
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar: [unclosed\n"), 0600))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/elsewhere.yaml")
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.yaml", path)
}

func TestUpdateFileWritesOnlyFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0600))

	require.NoError(t, UpdateFile(path, func(c *Config) { c.Calendar = "Work" }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "calendar: Work")
	assert.Contains(t, string(data), "log_level: warn")
	assert.NotContains(t, string(data), "data_dir")
	assert.NotContains(t, string(data), "schedule")
}

func TestUpdateFileCreatesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "config.yaml")
	require.NoError(t, UpdateFile(path, func(c *Config) { c.Calendar = "Home" }))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Home", cfg.Calendar)
}
