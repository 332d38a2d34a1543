package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.Source)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0, cfg.Layout.HeaderRow)
	assert.Equal(t, 1, cfg.Layout.FirstDataRow)
	assert.False(t, cfg.Lock.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
database:
  host: db.internal
  dbname: sap
server:
  addr: ":9090"
  allowed_origins:
    - https://ops.example.com
layout:
  sheet: ZMM_EXPORT
  header_row: 2
  legend_rows: [0, 1]
  first_data_row: 3
lock:
  enabled: true
  redis_addr: redis:6379
  wait: 5s
log:
  level: debug
`)
	t.Setenv("SAPINGEST_SERVER_ADDR", ":7070")
	t.Setenv("DB_PASSWORD", "s3cret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Source)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "sap", cfg.Database.DBName)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "ZMM_EXPORT", cfg.Layout.SheetName)
	assert.Equal(t, []int{0, 1}, cfg.Layout.LegendRows)
	assert.Equal(t, 3, cfg.Layout.FirstDataRow)
	assert.True(t, cfg.Lock.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Lock.Wait)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SAPINGEST_LOG_FORMAT=text\n")
	t.Cleanup(func() { os.Unsetenv("SAPINGEST_LOG_FORMAT") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadRejectsInvalidLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "layout:\n  header_row: 4\n  first_data_row: 2\n")

	_, err := Load(dir)
	assert.ErrorContains(t, err, "invalid grid layout")
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "database: [unclosed\n")

	_, err := Load(dir)
	assert.ErrorContains(t, err, "failed to read config file")
}
