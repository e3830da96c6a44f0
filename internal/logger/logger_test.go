package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger("warn", format, "heartbeat-haptic", "")
		require.NoError(t, err, format)
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel), format)
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel), format)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l, err := NewLogger("info", "json", "heartbeat-haptic", path)
	require.NoError(t, err)
	l.Info("started")
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"started"`)
	assert.Contains(t, string(b), `"service_name":"heartbeat-haptic"`)
}
