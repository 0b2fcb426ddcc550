package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "forge.log")

	err := SetupLogger(&LogConfig{
		Level:      "debug",
		Format:     "json",
		OutputFile: logPath,
	})
	require.NoError(t, err)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := GetGeneratorLogger("infographic", "run-1")
	logger.Info().Str("outcome", OutcomeSkip).Msg("insufficient data")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, `"generator":"infographic"`))
	assert.True(t, strings.Contains(content, `"outcome":"skip"`))
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	err := SetupLogger(&LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.Empty(t, cfg.OutputFile)
}
