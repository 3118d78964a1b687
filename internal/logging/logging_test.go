package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatwidget/internal/config"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.log")

	logger, err := New(config.LogConfig{FilePath: path, Level: "info", Production: true})
	require.NoError(t, err)

	logger.Named("session").Info("message sent", zap.String("pending_id", "abc"))
	logger.Debug("filtered out")
	_ = logger.Sync()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"message":"message sent"`)
	assert.Contains(t, string(contents), `"pending_id":"abc"`)
	assert.Contains(t, string(contents), `"logger":"session"`)
	assert.NotContains(t, string(contents), "filtered out")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger))
}
