package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configure points the default logger at a buffer for the duration of a
// test. Tests here cannot run in parallel because they share slog's
// process-wide default.
func configure(t *testing.T, opts Options) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	opts.Output = &buf
	ConfigureLoggingWithOptions(opts)

	return &buf
}

func TestGetIncludesSubsystem(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test"})

	Get().Info("hello")

	assert.Contains(t, buf.String(), "subsystem=vmdbg-test")
	assert.Contains(t, buf.String(), "hello")
}

func TestGetIncludesSessionId(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test"})

	ctx := WithSessionId(context.Background(), "abc-123")
	Get(ctx).Info("session message")

	assert.Contains(t, buf.String(), "session_id=abc-123")
}

func TestWithValues(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test"})

	ctx := With(context.Background(), "query", 240)
	ctx = With(ctx, "mode", "faithful")
	Get(ctx).Info("value message")

	out := buf.String()
	assert.Contains(t, out, "query=240")
	assert.Contains(t, out, "mode=faithful")
}

func TestMuted(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test"})

	ctx := WithMuted(context.Background(), true)
	Get(ctx).Error("should not appear")

	assert.Empty(t, buf.String())
}

func TestJSONFormat(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test", JSON: true})

	Get().Info("structured")

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON output, got %q", line)
	assert.Contains(t, line, `"subsystem":"vmdbg-test"`)
}

func TestMinLevelFilters(t *testing.T) {
	buf := configure(t, Options{Subsystem: "vmdbg-test", MinLevel: slog.LevelWarn})

	Get().Info("quiet")
	Get().Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

// recordingHandler captures records for the tee tests.
type recordingHandler struct {
	msgs *[]string
}

func (r recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (r recordingHandler) Handle(_ context.Context, record slog.Record) error {
	*r.msgs = append(*r.msgs, record.Message)

	return nil
}

func (r recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r recordingHandler) WithGroup(string) slog.Handler      { return r }

func TestExtraHandlerReceivesRecords(t *testing.T) {
	var captured []string

	buf := configure(t, Options{
		Subsystem: "vmdbg-test",
		Extra:     recordingHandler{msgs: &captured},
	})

	Get().Info("bridged")

	require.Len(t, captured, 1)
	assert.Equal(t, "bridged", captured[0])
	assert.Contains(t, buf.String(), "bridged")
}
