package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join(".kin", "kinship.db"), cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.False(t, cfg.Index.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfigDir(t *testing.T) {
	result := ConfigDir("/home/user/project")
	assert.Equal(t, "/home/user/project/.kin", result)
}

func TestConfigFilePath(t *testing.T) {
	result := ConfigFilePath("/home/user/project")
	assert.Equal(t, "/home/user/project/.kin/config.yaml", result)
}

func TestLoad_DefaultFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, WriteDefault(tmpDir))
	assert.True(t, Exists(tmpDir))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "kin_relationships", cfg.Qdrant.Collection)
	assert.Equal(t, filepath.Join(tmpDir, ".kin", "kinship.db"), cfg.SQLite(tmpDir).Path)
}

func TestLoad_NotInitialized(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kin init")
}

func TestWriteDefault_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, WriteDefault(tmpDir))

	err := WriteDefault(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, WriteDefault(tmpDir))

	t.Setenv("KIN_DATABASE_DRIVER", "postgres")
	t.Setenv("KIN_DATABASE_DSN", "postgres://kin@localhost/kin")
	t.Setenv("KIN_LOG_LEVEL", "debug")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_API_KEY", "qd-test")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://kin@localhost/kin", cfg.Postgres().DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
	assert.Equal(t, "qd-test", cfg.Qdrant.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown driver",
			yaml:   "database:\n  driver: mysql\n",
			errMsg: "unsupported database.driver",
		},
		{
			name:   "postgres without dsn",
			yaml:   "database:\n  driver: postgres\n",
			errMsg: "database.dsn is required",
		},
		{
			name:   "bad log format",
			yaml:   "log:\n  format: xml\n",
			errMsg: "unsupported log.format",
		},
		{
			name:   "malformed yaml",
			yaml:   "database: [",
			errMsg: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			require.NoError(t, os.MkdirAll(ConfigDir(tmpDir), 0755))
			require.NoError(t, os.WriteFile(ConfigFilePath(tmpDir), []byte(tt.yaml), 0644))
			t.Setenv("KIN_DATABASE_DSN", "")

			_, err := Load(tmpDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.Index.Enabled = true
	cfg.Database.Path = ":memory:"

	require.NoError(t, Write(tmpDir, cfg))

	loaded, err := Load(tmpDir)
	require.NoError(t, err)
	assert.True(t, loaded.Index.Enabled)
	assert.Equal(t, ":memory:", loaded.SQLite(tmpDir).Path)
}
