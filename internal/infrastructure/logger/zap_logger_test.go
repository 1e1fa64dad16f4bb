package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log, err := NewLogger("not-a-level")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewFileLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	log, err := NewFileLogger(path, "debug")
	require.NoError(t, err)

	log.Debug("hello")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")
}
