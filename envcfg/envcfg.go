// Package envcfg reads typed configuration values from the environment.
// Each accessor returns a Reader describing the lookup; callers choose how
// strictly to resolve it (Value, ValueOrElse, ValueOrFatal).
package envcfg

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissing is returned when a variable is unset and no default was
	// provided.
	ErrMissing = errors.New("environment variable not set")

	// ErrParse is returned when a variable is set but cannot be converted
	// to the requested type.
	ErrParse = errors.New("environment variable has invalid value")
)

// Reader is the outcome of an environment lookup for a value of type T.
type Reader[T any] struct {
	key     string
	present bool
	value   T
	err     error
}

// Option adjusts a Reader, e.g. by supplying a default.
type Option[T any] func(Reader[T]) Reader[T]

// Default supplies a fallback used when the variable is unset. Parse
// failures on a set variable still surface as errors.
func Default[T any](fallback T) Option[T] {
	return func(r Reader[T]) Reader[T] {
		if !r.present && r.err == nil {
			r.value = fallback
			r.present = true
		}

		return r
	}
}

// Value resolves the lookup, returning ErrMissing or a parse error when
// the value is unavailable.
func (r Reader[T]) Value() (T, error) {
	if r.err != nil {
		var zero T

		return zero, r.err
	}

	if !r.present {
		var zero T

		return zero, fmt.Errorf("%w: %s", ErrMissing, r.key)
	}

	return r.value, nil
}

// ValueOrElse resolves the lookup, substituting fallback for any failure.
func (r Reader[T]) ValueOrElse(fallback T) T {
	v, err := r.Value()
	if err != nil {
		return fallback
	}

	return v
}

// ValueOrFatal resolves the lookup or exits the process. Meant for
// process startup where a bad environment is unrecoverable.
func (r Reader[T]) ValueOrFatal() T {
	v, err := r.Value()
	if err != nil {
		slog.Error("Unable to read required environment variable", "key", r.key, "error", err)
		os.Exit(1)
	}

	return v
}

func lookup[T any](key string, parse func(string) (T, error), opts []Option[T]) Reader[T] {
	rdr := Reader[T]{key: key}

	if raw, ok := os.LookupEnv(key); ok {
		v, err := parse(raw)
		if err != nil {
			rdr.err = fmt.Errorf("%w: %s=%q: %s", ErrParse, key, raw, err.Error())
		} else {
			rdr.present = true
			rdr.value = v
		}
	}

	for _, opt := range opts {
		rdr = opt(rdr)
	}

	return rdr
}

// String reads a string variable.
func String(key string, opts ...Option[string]) Reader[string] {
	return lookup(key, func(raw string) (string, error) {
		return raw, nil
	}, opts)
}

// Bool reads a boolean variable in strconv.ParseBool syntax.
func Bool(key string, opts ...Option[bool]) Reader[bool] {
	return lookup(key, strconv.ParseBool, opts)
}

// Int reads a decimal integer variable.
func Int(key string, opts ...Option[int]) Reader[int] {
	return lookup(key, strconv.Atoi, opts)
}

// Duration reads a time.ParseDuration variable (e.g. "5s").
func Duration(key string, opts ...Option[time.Duration]) Reader[time.Duration] {
	return lookup(key, time.ParseDuration, opts)
}

// Port reads a TCP/UDP port number.
func Port(key string, opts ...Option[uint16]) Reader[uint16] {
	return lookup(key, func(raw string) (uint16, error) {
		v, err := strconv.ParseUint(raw, 10, 16)

		return uint16(v), err
	}, opts)
}

// SlogLevel reads a log level: debug, info, warn or error.
func SlogLevel(key string, opts ...Option[slog.Level]) Reader[slog.Level] {
	return lookup(key, func(raw string) (slog.Level, error) {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "debug":
			return slog.LevelDebug, nil
		case "info":
			return slog.LevelInfo, nil
		case "warn", "warning":
			return slog.LevelWarn, nil
		case "error":
			return slog.LevelError, nil
		default:
			return 0, fmt.Errorf("unknown log level %q", raw)
		}
	}, opts)
}
