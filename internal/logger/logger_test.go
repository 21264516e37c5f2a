package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Console(t *testing.T) {
	l, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	l, err := New(Options{Verbose: true})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNew_JSON(t *testing.T) {
	l, err := New(Options{JSON: true})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l, err := New(Options{})
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
