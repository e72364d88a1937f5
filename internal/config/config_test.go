package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
	assert.Equal(t, "opportunity_portal", cfg.Database.DBName)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, 1500, cfg.AI.DailyLimit)
	assert.Equal(t, "@every 1h", cfg.Pipeline.CronSchedule)
	assert.True(t, cfg.Pipeline.ExecuteOnClose)
	assert.True(t, cfg.Storage.UseMock)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"port": 9090},
		"database": {"host": "db.internal", "db_name": "portal_test"},
		"pipeline": {"categories": ["electronics", "home_goods"], "max_concurrent": 8}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "portal_test", cfg.Database.DBName)
	assert.Equal(t, []string{"electronics", "home_goods"}, cfg.Pipeline.Categories)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrent)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7001")
	t.Setenv("DATABASE_PASSWORD", "hunter2")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("EXPORTS_BUCKET", "real-bucket")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, "real-bucket", cfg.Storage.Bucket)
	assert.False(t, cfg.Storage.UseMock)
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "portal", Password: "pw",
		DBName: "opportunity_portal", SSLMode: "disable",
	}
	assert.Equal(t,
		"postgres://portal:pw@localhost:5432/opportunity_portal?sslmode=disable",
		db.GetDatabaseURL())
}
