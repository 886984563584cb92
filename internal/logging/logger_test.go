package logging

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLogger_OTELOnlyWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_LevelsAndContextFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithConversation(ctx, "u1", "b1", "")

	tl.Trace(ctx, "payload", zap.Int("bytes", 42))
	tl.Debug(ctx, "retrieved")
	tl.Info(ctx, "reply generated")
	tl.Warn(ctx, "reply embedding failed")
	tl.Error(ctx, "append failed")

	require.Len(t, tl.All(), 5)
	tl.AssertLogged(t, TraceLevel, "payload")
	tl.AssertLogged(t, zapcore.WarnLevel, "reply embedding failed")
	tl.AssertField(t, "reply generated", "request.id", "req-1")
	tl.AssertField(t, "reply generated", "user.id", "u1")
	tl.AssertField(t, "reply generated", "business.id", "b1")

	for _, entry := range tl.All() {
		_, hasSession := entry.ContextMap()["session.id"]
		assert.False(t, hasSession, "empty session id must not be logged")
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.With(zap.String("component", "gateway")).Named("http")

	child.Info(context.Background(), "request")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "http", entries[0].LoggerName)
	assert.Equal(t, "gateway", entries[0].ContextMap()["component"])
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Info(context.Background(), "dropped")
		_ = l.Sync()
	})
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "trace", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace": TraceLevel,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSampledCore_ErrorsNeverDropped(t *testing.T) {
	tl := NewTestLogger()
	cfg := SamplingConfig{Enabled: true, Tick: config.Duration(60e9), Initial: 1, Thereafter: 0}
	core := newSampledCore(tl.Underlying().Core(), cfg)
	l := FromZap(zap.New(core))

	for i := 0; i < 5; i++ {
		l.Info(context.Background(), "noisy")
		l.Error(context.Background(), "failure")
	}

	assert.Equal(t, 1, tl.FilterMessage("noisy").Len())
	assert.Equal(t, 5, tl.FilterMessage("failure").Len())
}
