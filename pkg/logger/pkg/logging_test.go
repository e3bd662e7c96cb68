package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(&Config{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestLoggerCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := _logger
	_logger = zap.New(core)
	defer func() { _logger = prev }()

	ctx := WithRequestID(context.Background(), "req-42")
	Logger(ctx).Info("hello")
	Logger(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["x_request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "x_request_id")
	assert.Equal(t, "req-42", RequestID(ctx))
}
