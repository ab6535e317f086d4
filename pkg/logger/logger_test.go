package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	l := New(Config{})
	require.NotNil(t, l)

	zl, ok := l.(*zerologLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.InfoLevel, zl.z.GetLevel())
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	l := New(Config{Level: "error", Debug: true})

	zl, ok := l.(*zerologLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, zl.z.GetLevel())
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l := New(Config{Level: "not-a-level"})

	zl, ok := l.(*zerologLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.InfoLevel, zl.z.GetLevel())
}

func TestWithComponent_ReturnsLogger(t *testing.T) {
	l := NewNop().WithComponent("eventloop")
	require.NotNil(t, l)
}

func TestWithFields_ReturnsLogger(t *testing.T) {
	l := NewNop().WithFields(map[string]interface{}{"device": "AA:BB:CC", "sensor": 0})
	require.NotNil(t, l)
}
