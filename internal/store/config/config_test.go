package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podvault/podvault/internal/store/constants"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podvault.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultWorkerURL, cfg.Worker.URL)
	assert.Equal(t, constants.ServerAPIPort, cfg.Server.Listen)
	assert.Equal(t, constants.PollInterval, cfg.PollInterval())
	assert.Equal(t, constants.ConflictBackoff, cfg.ConflictBackoff())
	assert.Equal(t, constants.JobTimeout, cfg.JobTimeout())

	// The defaults were written back so the user has a file to edit.
	_, err = os.Stat(path)
	require.NoError(t, err)

	reread, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Worker.URL, reread.Worker.URL)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podvault.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[worker]
url = "https://backup-host:9000"
token = "secret"

[engine]
poll_interval_ms = 100
job_timeout_minutes = 5

[[schedule]]
cron = "0 2 * * *"
kind = "backup"
targets = ["ct-101", "ct-102"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://backup-host:9000", cfg.Worker.URL)
	assert.Equal(t, "secret", cfg.Worker.Token)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout())

	// Knobs the file omits keep their stock values.
	assert.Equal(t, constants.ConflictBackoff, cfg.ConflictBackoff())
	assert.Equal(t, constants.ServerAPIPort, cfg.Server.Listen)

	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "0 2 * * *", cfg.Schedules[0].Cron)
	assert.Equal(t, []string{"ct-101", "ct-102"}, cfg.Schedules[0].Targets)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podvault.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
