package envcfg

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringPresent(t *testing.T) {
	t.Setenv("VMDBG_TEST_STR", "hello")

	v, err := String("VMDBG_TEST_STR").Value()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestMissingWithoutDefault(t *testing.T) {
	t.Parallel()

	_, err := String("VMDBG_TEST_DOES_NOT_EXIST").Value()
	require.ErrorIs(t, err, ErrMissing)
}

func TestDefaultApplies(t *testing.T) {
	t.Parallel()

	v, err := Int("VMDBG_TEST_DOES_NOT_EXIST", Default(42)).Value()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDefaultDoesNotMaskParseError(t *testing.T) {
	t.Setenv("VMDBG_TEST_BAD_INT", "nope")

	_, err := Int("VMDBG_TEST_BAD_INT", Default(42)).Value()
	require.ErrorIs(t, err, ErrParse)
}

func TestValueOrElse(t *testing.T) {
	t.Setenv("VMDBG_TEST_BOOL", "true")

	assert.True(t, Bool("VMDBG_TEST_BOOL").ValueOrElse(false))
	assert.False(t, Bool("VMDBG_TEST_OTHER_BOOL").ValueOrElse(false))
}

func TestDuration(t *testing.T) {
	t.Setenv("VMDBG_TEST_DUR", "1500ms")

	v, err := Duration("VMDBG_TEST_DUR").Value()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, v)
}

func TestPort(t *testing.T) {
	t.Setenv("VMDBG_TEST_PORT", "9000")

	v, err := Port("VMDBG_TEST_PORT").Value()
	require.NoError(t, err)
	assert.Equal(t, uint16(9000), v)

	t.Setenv("VMDBG_TEST_PORT", "70000")

	_, err = Port("VMDBG_TEST_PORT").Value()
	require.ErrorIs(t, err, ErrParse)
}

func TestSlogLevel(t *testing.T) {
	levels := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}

	for raw, want := range levels {
		t.Setenv("VMDBG_TEST_LEVEL", raw)

		v, err := SlogLevel("VMDBG_TEST_LEVEL").Value()
		require.NoError(t, err, "raw %q", raw)
		assert.Equal(t, want, v, "raw %q", raw)
	}

	t.Setenv("VMDBG_TEST_LEVEL", "loud")

	_, err := SlogLevel("VMDBG_TEST_LEVEL").Value()
	require.ErrorIs(t, err, ErrParse)
}
