package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiledger/internal/config"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug", "report")

	assert.Equal(t, "report", logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, logger.Logger, slog.Default())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TAXI_CLI_TEST=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("TAXI_CLI_TEST", "")
	require.NoError(t, os.Unsetenv("TAXI_CLI_TEST"))

	LoadEnvFile()

	assert.Equal(t, "from-dotenv", os.Getenv("TAXI_CLI_TEST"))
}

func TestInitBackendMemory(t *testing.T) {
	logger := SetupLogger("error", "test")
	cfg := &config.Config{DataBackend: "memory"}

	result := InitBackend(context.Background(), logger, cfg)

	require.NotNil(t, result.Repository)
	assert.NoError(t, result.Ready(context.Background()))
}
