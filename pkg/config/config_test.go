package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyspace/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "program", cfg.Database.User)
	assert.Equal(t, time.Hour, cfg.ExpirySweepInterval)

	statuses, err := cfg.ReassignStatuses()
	require.NoError(t, err)
	assert.Equal(t, []models.SubscriptionStatus{models.StatusActive}, statuses)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "branches")
	t.Setenv("RESERVATION_CONFLICT_STATUSES", "active, pending")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "15m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 15*time.Minute, cfg.ExpirySweepInterval)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Contains(t, cfg.Database.DSN(), "dbname=branches")

	statuses, err := cfg.ReassignStatuses()
	require.NoError(t, err)
	assert.Equal(t, []models.SubscriptionStatus{models.StatusActive, models.StatusPending}, statuses)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyspace.yaml")
	body := "http_addr: \":9090\"\ndb_driver: sqlite\nsqlite_path: /tmp/occupancy.db\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/occupancy.db", cfg.Database.SQLitePath)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("conflict status", func(t *testing.T) {
		t.Setenv("RESERVATION_CONFLICT_STATUSES", "expired")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
