package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "chorewheel.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval.Duration())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Empty(t, cfg.Sync.ServerURL)

	bc := cfg.BackupManagerConfig()
	assert.Equal(t, 3, bc.ScheduleHour)
	assert.Equal(t, 30, bc.RetentionDays)
	assert.Equal(t, "chorewheel", bc.S3.Prefix)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHOREWHEEL_PORT", "9090")
	t.Setenv("CHOREWHEEL_TIMEZONE", "America/Denver")
	t.Setenv("CHOREWHEEL_POLL_INTERVAL", "45")
	t.Setenv("CHOREWHEEL_SERVER_URL", "http://pantry.local:8080")
	t.Setenv("CHOREWHEEL_S3_BUCKET", "house")
	t.Setenv("CHOREWHEEL_BACKUP_PASSPHRASE", "hunter2")
	t.Setenv("CHOREWHEEL_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "America/Denver", cfg.Location().String())
	assert.Equal(t, 45*time.Second, cfg.Sync.PollInterval.Duration())
	assert.Equal(t, "http://pantry.local:8080", cfg.Sync.ServerURL)

	bc := cfg.BackupManagerConfig()
	assert.Equal(t, "house", bc.S3.Bucket)
	assert.Equal(t, "hunter2", bc.Passphrase)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CHOREWHEEL_TIMEZONE", "Mars/Olympus"},
		{"CHOREWHEEL_LOG_FORMAT", "xml"},
		{"CHOREWHEEL_POLL_INTERVAL", "soon"},
		{"CHOREWHEEL_POLL_INTERVAL", "0"},
		{"CHOREWHEEL_BACKUP_HOUR", "24"},
		{"CHOREWHEEL_SERVER_URL", "pantry.local"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDurationSetValue(t *testing.T) {
	var d Duration
	require.NoError(t, d.SetValue(`"2m"`))
	assert.Equal(t, 2*time.Minute, d.Duration())
	require.NoError(t, d.SetValue("10"))
	assert.Equal(t, 10*time.Second, d.Duration())
	assert.Error(t, d.SetValue(""))
}
