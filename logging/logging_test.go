package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chrisuehlinger/vquery/config"
)

func newBuffered(t *testing.T, cfg config.LoggerConfig) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	logger, err := NewWithWriter(cfg, zapcore.AddSync(buf))
	require.NoError(t, err)
	return logger, buf
}

func TestNewWithWriter_Console(t *testing.T) {
	logger, buf := newBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "vquery"})

	logger.Named("loop").Debug("task ran", zap.Int("pending", 2))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "vquery.loop")
	assert.Contains(t, out, "task ran")
	assert.Contains(t, out, `"pending": 2`)
}

func TestNewWithWriter_JSON(t *testing.T) {
	logger, buf := newBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "svc"})

	logger.Warn("slow request", zap.String("url", "/items"))
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one JSON entry expected")
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "svc", entry["logger"])
	assert.Equal(t, "slow request", entry["msg"])
	assert.Equal(t, "/items", entry["url"])
}

func TestNewWithWriter_AddSource(t *testing.T) {
	logger, buf := newBuffered(t, config.LoggerConfig{Level: "info", Format: "json", AddSource: true})

	logger.Info("with caller")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["caller"], "logging_test.go")
}

func TestNewWithWriter_InvalidLevel(t *testing.T) {
	_, err := NewWithWriter(config.LoggerConfig{Level: "loud"}, zapcore.AddSync(new(bytes.Buffer)))
	assert.Error(t, err)
}

func TestNewWithWriter_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vquery.log")
	logger, buf := newBuffered(t, config.LoggerConfig{
		Level:   "info",
		Format:  "console",
		LogFile: path,
		MaxSize: 1,
	})

	logger.Error("request failed", zap.String("kind", "timeout"))
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "request failed")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "log file should hold an entry")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "timeout", entry["kind"])
	assert.Contains(t, entry, "stacktrace")
}
