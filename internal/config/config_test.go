package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, "studychat", cfg.SurrealDBNamespace)
	assert.Equal(t, "gemini-2.0-flash", cfg.DefaultModel)
	assert.Equal(t, "8585", cfg.ServerPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SURREALDB_URL", "ws://db.internal:8000/rpc")
	t.Setenv("STUDYCHAT_DEFAULT_MODEL", "gpt-4o")
	t.Setenv("STUDYCHAT_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "ws://db.internal:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_FileOverlayEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server_port: \"9000\"\ndefault_model: claude-3-5-haiku-20241022\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	t.Setenv("STUDYCHAT_CONFIG", path)
	t.Setenv("STUDYCHAT_DEFAULT_MODEL", "gemini-1.5-pro")

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort, "file value applies")
	assert.Equal(t, "gemini-1.5-pro", cfg.DefaultModel, "env beats file")
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	t.Setenv("STUDYCHAT_CONFIG", "/nonexistent/config.yaml")

	cfg := Load()
	assert.Equal(t, "8585", cfg.ServerPort)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), "input %q", tt.in)
	}
}

func TestSetupLoggerWithWriters_FansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("conversation saved", "conversation_id", "c1")

	assert.Contains(t, stderr.String(), "conversation saved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "conversation saved", entry["msg"])
	assert.Equal(t, "c1", entry["conversation_id"])
}
