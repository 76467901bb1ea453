// Package logger configures slog for the module and carries logging
// context (subsystem, session id, extra attributes) through
// context.Context.
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpflab/vmdbg/envcfg"
	"github.com/bpflab/vmdbg/shutdown"
)

// subsystem is the default subsystem attribute, set at configure time.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes configuration, which mutates global slog state.
var configMutex sync.Mutex //nolint:gochecknoglobals

// Unexported context key type, so other packages cannot collide with ours.
type contextKey string

const (
	sessionKey contextKey = "session_id"
	valuesKey  contextKey = "values"
	mutedKey   contextKey = "muted"
)

// Options configures logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer

	// Extra receives a copy of every record, in addition to the primary
	// output. Used to bridge logs into OpenTelemetry.
	Extra slog.Handler
}

// Option is a functional option for ConfigureLogging.
type Option func(*Options)

// WithExtraHandler duplicates log records into the given handler.
func WithExtraHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.Extra = h
	}
}

// ConfigureLoggingWithOptions configures the default slog logger. Thread
// safe; concurrent calls are serialized.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{Level: opts.MinLevel})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{Level: opts.MinLevel})
	}

	if opts.Extra != nil {
		handler = &teeHandler{primary: handler, secondary: opts.Extra}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Redirect the legacy log package; third-party code may still use it.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, slog.LevelInfo)

	subsystem.Store(opts.Subsystem)

	return logger
}

// ConfigureLogging configures logging from the environment: LOG_JSON
// selects the format, LOG_LEVEL the minimum level.
func ConfigureLogging(app string, opts ...Option) *slog.Logger {
	options := Options{
		Subsystem: app,
		JSON:      envcfg.Bool("LOG_JSON", envcfg.Default(false)).ValueOrFatal(),
		MinLevel:  envcfg.SlogLevel("LOG_LEVEL", envcfg.Default(slog.LevelInfo)).ValueOrFatal(),
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options)
}

// Fatal logs an error message, runs shutdown hooks, and exits.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)

	shutdown.Shutdown()

	time.Sleep(time.Second)

	os.Exit(1)
}

// WithSessionId tags the context with a debug session id. Loggers from
// Get include it on every record.
func WithSessionId(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, sessionKey, id)
}

// GetSessionId returns the session id from the context, if present.
func GetSessionId(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	id, ok := ctx.Value(sessionKey).(string)

	return id, ok && id != ""
}

// With adds key-value pairs to the context; loggers from Get carry them.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	return context.WithValue(ctx, valuesKey, append(getValues(ctx), values...))
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(valuesKey).([]any)

	return vals
}

// WithMuted suppresses all log output for loggers derived from the
// context. Useful for high-frequency paths such as packet polling.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, mutedKey, muted)
}

func isMuted(ctx context.Context) bool {
	muted, _ := ctx.Value(mutedKey).(bool)

	return muted
}

// Get returns a logger annotated from the context: subsystem, session id
// and any values added via With. A muted context yields a logger that
// discards everything.
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default()

	if sub, ok := subsystem.Load().(string); ok && sub != "" {
		logger = logger.With("subsystem", sub)
	}

	if id, ok := GetSessionId(realCtx); ok {
		logger = logger.With("session_id", id)
	}

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// nullHandler discards everything.
type nullHandler struct{}

func (nullHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nullHandler) Handle(context.Context, slog.Record) error { return nil }
func (n nullHandler) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n nullHandler) WithGroup(string) slog.Handler           { return n }

var nullLogger = slog.New(nullHandler{}) //nolint:gochecknoglobals

// teeHandler duplicates records into a secondary handler. Failures on the
// secondary are dropped so an unreachable collector never breaks local
// logging.
type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

var _ slog.Handler = (*teeHandler)(nil)

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level) || t.secondary.Enabled(ctx, level)
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if t.secondary.Enabled(ctx, record.Level) {
		_ = t.secondary.Handle(ctx, record.Clone())
	}

	if !t.primary.Enabled(ctx, record.Level) {
		return nil
	}

	return t.primary.Handle(ctx, record)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{
		primary:   t.primary.WithAttrs(attrs),
		secondary: t.secondary.WithAttrs(attrs),
	}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{
		primary:   t.primary.WithGroup(name),
		secondary: t.secondary.WithGroup(name),
	}
}
