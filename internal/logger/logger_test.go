package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Info("hello", "k", "v")

	l, err = New("", "console")
	require.NoError(t, err)
	l.With("component", "test").Debug("dropped at info level")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestRedact(t *testing.T) {
	out := redact([]interface{}{"id_number", "123456789", "name", "Dana", "dangling"})
	assert.Equal(t, []interface{}{"id_number", "*******89", "name", "Dana", "dangling"}, out)

	assert.Equal(t, "**", mask("12"))
	assert.Empty(t, redact(nil))
}
