package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_FileOutput(t *testing.T) {
	t.Cleanup(func() {
		NewLogger(Options{Level: "info", Output: "console"})
	})

	path := filepath.Join(t.TempDir(), "bot.log")
	l := NewLogger(Options{Level: "info", Output: "file", File: path, MaxSize: 1})

	l.Infof("cycle %s finished", "abc")
	Debug("hidden at info level")
	Warnf("retrying in %s", "5m0s")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "cycle abc finished")
	assert.Contains(t, out, "retrying in 5m0s")
	assert.NotContains(t, out, "hidden at info level")
	assert.Contains(t, out, "logger_test.go", "caller must point at the call site")
}

func TestSetGlobalLogLevel(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogLevel("info") })

	SetGlobalLogLevel("debug")
	assert.True(t, Zap().Core().Enabled(zap.DebugLevel))

	SetGlobalLogLevel("error")
	assert.False(t, Zap().Core().Enabled(zap.WarnLevel))

	SetGlobalLogLevel("nonsense")
	assert.True(t, Zap().Core().Enabled(zap.InfoLevel))
	assert.False(t, Zap().Core().Enabled(zap.DebugLevel))
}
