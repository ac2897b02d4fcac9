package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"WARN", zapcore.WarnLevel},
		{"", zapcore.InfoLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewDefaultAndNop(t *testing.T) {
	require.NotNil(t, NewDefault())
	require.NotNil(t, NewDevelopment())

	nop := NewNop()
	require.NotNil(t, nop)
	nop.Info("discarded", zap.Int("n", 1))
}

func TestWith(t *testing.T) {
	child := NewNop().With(zap.String("component", "kernel"))
	require.NotNil(t, child)
	child.Debug("still discarded")
}
