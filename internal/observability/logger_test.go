// -- internal/observability/logger_test.go --
package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mukuloli/browser-automation-1/internal/config"
)

func testLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "pilot-test",
	}
}

func TestInitialize_WritesToConsoleWriter(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &zaptest.Buffer{}
	Initialize(testLoggerConfig(), buf)

	GetLogger().Info("hello from the test")
	output := buf.String()
	assert.Contains(t, output, "hello from the test")
	assert.Contains(t, output, "pilot-test")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &zaptest.Buffer{}
	second := &zaptest.Buffer{}
	Initialize(testLoggerConfig(), first)
	Initialize(testLoggerConfig(), second)

	GetLogger().Info("routed to the first writer")
	assert.Contains(t, first.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Level = "chatty"
	buf := &zaptest.Buffer{}
	Initialize(cfg, buf)

	GetLogger().Debug("should be suppressed")
	GetLogger().Info("should appear")
	output := buf.String()
	assert.NotContains(t, output, "should be suppressed")
	assert.Contains(t, output, "should appear")
}

func TestInitialize_FileSinkIsJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "pilot.log")
	cfg := testLoggerConfig()
	cfg.Format = "console"
	cfg.LogFile = logFile

	Initialize(cfg, &zaptest.Buffer{})
	GetLogger().Info("persisted entry")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"persisted entry"`)
	assert.Contains(t, line, `"level":"INFO"`)
}

func TestGetLogger_FallbackBeforeInitialization(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// Must not panic even though Initialize never ran.
	logger.Info("fallback logger works")
}

func TestGetEncoder_ConsoleWithoutColors(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Format = "console"
	cfg.Colors = false
	buf := &zaptest.Buffer{}
	Initialize(cfg, buf)

	GetLogger().Warn("plain warning")
	output := buf.String()
	assert.Contains(t, output, "WARN")
	assert.NotContains(t, output, "\x1b[33m")
}

func TestGetEncoder_ConsoleWithColors(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Format = "console"
	cfg.Colors = true
	buf := &zaptest.Buffer{}
	Initialize(cfg, buf)

	GetLogger().Error("colored error")
	assert.Contains(t, buf.String(), colorRed)
}
