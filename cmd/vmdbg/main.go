// Command vmdbg hosts the searcher fixture behind a GDB remote debug
// server, and offers direct query and repl modes for poking at it without
// a debugger attached.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bpflab/vmdbg/config"
	"github.com/bpflab/vmdbg/fixture"
	"github.com/bpflab/vmdbg/gdbserver"
	"github.com/bpflab/vmdbg/logger"
	"github.com/bpflab/vmdbg/machine"
	"github.com/bpflab/vmdbg/shutdown"
	"github.com/bpflab/vmdbg/telemetry"
)

const appName = "vmdbg"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "repl":
		runRepl(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags]

commands:
  serve   host the debug target behind a GDB remote server
  query   run the searcher once for a given input byte
  repl    interactive query loop
`, appName)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	_ = fs.Parse(args)

	log := logger.ConfigureLogging(appName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx := shutdown.SetupHandler()

	otelCfg, err := telemetry.LoadConfigFromEnv(appName, "production")
	if err != nil {
		logger.Fatal("Invalid telemetry configuration", "error", err)
	}

	if err := telemetry.Initialize(ctx, otelCfg); err != nil {
		logger.Fatal("Unable to initialize telemetry", "error", err)
	}

	shutdown.BeforeShutdown(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			log.Warn("Telemetry shutdown failed", "error", err)
		}
	})

	// Bridge log records into the OTLP pipeline when it is live.
	if h := telemetry.LogHandler(appName); h != nil {
		log = logger.ConfigureLogging(appName, logger.WithExtraHandler(h))
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	srv := gdbserver.New(gdbserver.Config{
		Network: cfg.Listen.Network,
		Addr:    cfg.Listen.Addr,
		Workers: cfg.Workers,
	}, machine.Factory(
		machine.WithMode(cfg.Mode()),
		machine.WithInput(cfg.InputByte()),
	))

	shutdown.BeforeShutdown(func() {
		if err := srv.Close(); err != nil {
			log.Warn("Server shutdown failed", "error", err)
		}
	})

	// The fingerprint pins the exact table revision for anyone comparing a
	// debug trace against an external harness.
	log.Info("Starting debug server",
		"mode", cfg.Mode().String(),
		"input", cfg.Input,
		"table_fingerprint", fmt.Sprintf("%016x", fixture.Canonical().Fingerprint()))

	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}
}

// serveMetrics exposes Prometheus metrics on its own listener.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown.BeforeShutdown(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(closeCtx)
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Warn("Metrics endpoint failed", "error", err)
		}
	}()
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	input := fs.Uint("input", 0, "query byte (0-255)")
	corrected := fs.Bool("corrected", false, "use the corrected searcher")
	_ = fs.Parse(args)

	logger.ConfigureLogging(appName)

	if *input > 255 {
		logger.Fatal("Input must fit in a byte", "input", *input)
	}

	fmt.Println(runOnce(byte(*input), *corrected))
}

func runRepl(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	corrected := fs.Bool("corrected", false, "use the corrected searcher")
	_ = fs.Parse(args)

	logger.ConfigureLogging(appName)

	prompt := promptui.Prompt{
		Label: "query",
		Validate: func(s string) error {
			if s == "quit" || s == "exit" {
				return nil
			}

			if _, err := strconv.ParseUint(s, 10, 8); err != nil {
				return errors.New("enter a byte value (0-255), quit or exit")
			}

			return nil
		},
	}

	for {
		line, err := prompt.Run()
		if err != nil {
			// Interrupt or EOF ends the loop.
			return
		}

		if line == "quit" || line == "exit" {
			return
		}

		v, err := strconv.ParseUint(line, 10, 8)
		if err != nil {
			continue
		}

		fmt.Println(runOnce(byte(v), *corrected))
	}
}

// runOnce executes the searcher to completion for one input byte and
// renders the outcome the way the machine reports it to a debugger.
func runOnce(input byte, corrected bool) string {
	mode := machine.ModeFaithful
	if corrected {
		mode = machine.ModeCorrected
	}

	m := machine.New(machine.WithMode(mode), machine.WithInput(input))

	stop, err := m.Run(context.Background())
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}

	switch stop.Kind {
	case gdbserver.StopHalted:
		if stop.Status == 255 {
			return fmt.Sprintf("query %d: not found (status 255)", input)
		}

		return fmt.Sprintf("query %d: found %d", input, stop.Status)
	case gdbserver.StopFault:
		return fmt.Sprintf("query %d: program aborted (signal %d); the probe never narrows", input, stop.Signal)
	default:
		return fmt.Sprintf("query %d: stopped at pc %#x", input, stop.PC)
	}
}
