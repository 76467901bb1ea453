// Package shutdown coordinates process teardown: hooks registered here run
// once, either when a termination signal arrives or when Shutdown is called
// programmatically.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mut     sync.Mutex //nolint:gochecknoglobals
	hooks   []func()   //nolint:gochecknoglobals
	trigger func()     //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook to run before the process exits. Hooks
// run in registration order. Registration after shutdown has begun is a
// no-op.
func BeforeShutdown(hook func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, hook)
}

// Shutdown starts the teardown programmatically, as if a signal had
// arrived. Safe to call multiple times and before SetupHandler.
func Shutdown() {
	mut.Lock()
	t := trigger
	mut.Unlock()

	if t != nil {
		t()
	} else {
		runHooks()
	}
}

// SetupHandler installs a SIGINT/SIGTERM handler and returns a context
// that is canceled once teardown begins. Hooks run before the context is
// canceled so they still observe a live process.
func SetupHandler() context.Context {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once

	fire := func() {
		once.Do(func() {
			slog.Warn("Shutting down")

			stop()
			runHooks()
			cancel()
		})
	}

	mut.Lock()
	trigger = fire
	mut.Unlock()

	go func() {
		<-sigCtx.Done()
		fire()
	}()

	return ctx
}

func runHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	for _, hook := range pending {
		hook()
	}
}
