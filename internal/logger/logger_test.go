package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"beacon/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = NewWithOptions("info", "console")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetServiceName("trigger-worker")

	ctx := logging.WithEventID(context.Background(), "evt-9")
	l.InfowCtx(ctx, "event processed", "campaigns", 2)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-9", fields["event_id"])
	assert.Equal(t, "trigger-worker", fields["service_name"])
	assert.Equal(t, int64(2), fields["campaigns"])
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "consumer")

	l.Warnw("transport error")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "consumer", logs.All()[0].ContextMap()["component"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		l := NopLogger()
		l.ErrorwCtx(context.Background(), "ignored")
		_ = l.Sync()
	})
}
