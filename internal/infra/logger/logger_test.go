package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewStructured_BuildsBothFormats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "console"} {
		l, err := NewStructured("debug", format)
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}

func TestZapWrapper_FieldsAndErrorsPropagate(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core)).
		With(map[string]interface{}{"component": "diagnosis"}).
		WithError(errors.New("boom"))

	l.Warn("provider failed", map[string]interface{}{"mode": "text"})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "provider failed", entries[0].Message)
	assert.Equal(t, "diagnosis", ctx["component"])
	assert.Equal(t, "text", ctx["mode"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestNoOpLogger_DoesNotPanic(t *testing.T) {
	t.Parallel()

	l := NewNoOpLogger()
	l.Debug("d", nil)
	l.Info("i", nil)
	l.Error("e", map[string]interface{}{"k": 1})
}
