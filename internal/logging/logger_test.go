package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type buffer struct {
	lines []string
}

func (b *buffer) Write(p []byte) (int, error) {
	b.lines = append(b.lines, string(p))
	return len(p), nil
}

func (b *buffer) Sync() error { return nil }

func TestInitializeConsoleAndFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "vemu.log")
	console := &buffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "test",
		LogFile:     logFile,
		MaxSize:     1,
	}, console)

	GetLogger().Debug("tick", zap.Float64("speed", 12.5))
	Sync()

	require.Len(t, console.lines, 1)
	assert.Contains(t, console.lines[0], "tick")
	assert.Contains(t, console.lines[0], "test.")

	f, err := os.Open(logFile)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "tick", entry["msg"])
	assert.Equal(t, 12.5, entry["speed"])
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first, second := &buffer{}, &buffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, second)
	GetLogger().Info("hello")

	assert.Len(t, first.lines, 1)
	assert.Empty(t, second.lines)
}

func TestLevelFiltersAndBadLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &buffer{}
	Initialize(config.LoggerConfig{Level: "loud", Format: "json"}, out)
	GetLogger().Debug("hidden")
	GetLogger().Info("shown")
	require.Len(t, out.lines, 1)
	assert.Contains(t, out.lines[0], "shown")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)
	OrNop(l).Info("kept")
	assert.Equal(t, 1, logs.Len())
}
