package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsInvalidLevel(t *testing.T) {
	assert.Error(t, Init("loud", "json", "stdout"))
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init("debug", "json", path))
	Info("hello from the logger", zap.String("key", "value"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the logger")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestInitConsoleFormat(t *testing.T) {
	require.NoError(t, Init("info", "console", "stdout"))
	assert.NotNil(t, Log)
}
