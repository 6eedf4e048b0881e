package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "json", cfg.Server.LogFormat)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "teachly", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "@hourly", cfg.Maintenance.DeletionSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.TokenSchedule)
}

func TestLoadConfigReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	contents := "server:\n  port: 9090\nauth:\n  jwt:\n    secret: file-secret\n    access_token_ttl: 2h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	t.Setenv("TEACHLY_SERVER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 2*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingSecretAndBadPort(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8000
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "secret"
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())
}
