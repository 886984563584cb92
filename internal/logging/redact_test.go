package logging

import (
	"bytes"
	"testing"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRedactingLogger(t *testing.T, buf *bytes.Buffer) *zap.Logger {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel))
}

func TestRedactingEncoder_SensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	l := newRedactingLogger(t, &buf)

	l.Info("call", zap.String("authorization", "Bearer abc"), zap.String("Gateway_Key", "k-123"))

	out := buf.String()
	assert.NotContains(t, out, "abc")
	assert.NotContains(t, out, "k-123")
	assert.Contains(t, out, `"authorization":"[REDACTED]"`)
}

func TestRedactingEncoder_ValuePatterns(t *testing.T) {
	var buf bytes.Buffer
	l := newRedactingLogger(t, &buf)

	l.Info("connect", zap.String("target", "postgres://app:hunter2@db:5432/brain"))
	l.With(zap.String("header", "bearer xyz")).Info("forward")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "xyz")
	assert.Contains(t, out, redactedPattern)
}

func TestRedactingEncoder_Message(t *testing.T) {
	var buf bytes.Buffer
	l := newRedactingLogger(t, &buf)

	l.Warn("retrying with Bearer sk-live-1")
	assert.NotContains(t, buf.String(), "sk-live-1")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	var buf bytes.Buffer
	zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)).
		Info("x", zap.String("token", "visible"))
	assert.Contains(t, buf.String(), "visible")
}

func TestNewRedactingEncoder_BadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	require.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("admin_token", config.Secret("topsecret"))
	assert.Equal(t, "[REDACTED:9]", f.String)

	unset := Secret("admin_token", config.Secret(""))
	assert.Equal(t, "[UNSET]", unset.String)
}
