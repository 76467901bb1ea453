// Package config loads the server configuration: defaults, then an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bpflab/vmdbg/envcfg"
	errs "github.com/bpflab/vmdbg/errors"
	"github.com/bpflab/vmdbg/machine"
)

// Environment variables recognized by FromEnv.
const (
	EnvListenNetwork = "VMDBG_LISTEN_NETWORK"
	EnvListenAddr    = "VMDBG_LISTEN_ADDR"
	EnvMetricsAddr   = "VMDBG_METRICS_ADDR"
	EnvSearchMode    = "VMDBG_SEARCH_MODE"
	EnvInput         = "VMDBG_INPUT"
	EnvWorkers       = "VMDBG_WORKERS"
)

// Listen describes where the debug server accepts connections.
type Listen struct {
	// Network is "tcp" or "unix".
	Network string `yaml:"network"`

	// Addr is host:port for tcp, a socket path for unix.
	Addr string `yaml:"addr"`
}

// Config is the full server configuration.
type Config struct {
	Listen Listen `yaml:"listen"`

	// MetricsAddr serves Prometheus metrics over HTTP; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// SearchMode is "faithful" or "corrected".
	SearchMode string `yaml:"search_mode"`

	// Input is the query byte the debuggee reads on startup. Held as an
	// int so out-of-range values fail validation instead of truncating.
	Input int `yaml:"input"`

	// Workers bounds concurrent debug sessions.
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Listen: Listen{
			Network: "tcp",
			Addr:    "127.0.0.1:1234",
		},
		MetricsAddr: "",
		SearchMode:  machine.ModeFaithful.String(),
		Input:       0,
		Workers:     8,
	}
}

// Load reads cfg from the YAML file at path, over the defaults. An empty
// path yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.FromEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// FromEnv overrides any fields set in the environment.
func (c *Config) FromEnv() {
	c.Listen.Network = envcfg.String(EnvListenNetwork).ValueOrElse(c.Listen.Network)
	c.Listen.Addr = envcfg.String(EnvListenAddr).ValueOrElse(c.Listen.Addr)
	c.MetricsAddr = envcfg.String(EnvMetricsAddr).ValueOrElse(c.MetricsAddr)
	c.SearchMode = envcfg.String(EnvSearchMode).ValueOrElse(c.SearchMode)
	c.Input = envcfg.Int(EnvInput).ValueOrElse(c.Input)
	c.Workers = envcfg.Int(EnvWorkers).ValueOrElse(c.Workers)
}

// Validate reports every problem at once rather than the first one.
func (c *Config) Validate() error {
	var collected errs.Collection

	switch c.Listen.Network {
	case "tcp", "unix":
	default:
		collected.Add(fmt.Errorf("listen.network must be tcp or unix, got %q", c.Listen.Network))
	}

	if c.Listen.Addr == "" {
		collected.Add(errors.New("listen.addr must not be empty"))
	}

	if _, err := machine.ParseMode(c.SearchMode); err != nil {
		collected.Add(err)
	}

	if c.Input < 0 || c.Input > 255 {
		collected.Add(fmt.Errorf("input must be a byte value (0-255), got %d", c.Input))
	}

	if c.Workers <= 0 {
		collected.Add(fmt.Errorf("workers must be positive, got %d", c.Workers))
	}

	return collected.GetError()
}

// InputByte returns the input as a byte. Call Validate first.
func (c *Config) InputByte() byte {
	return byte(c.Input)
}

// Mode returns the parsed search mode. Call Validate first.
func (c *Config) Mode() machine.Mode {
	mode, _ := machine.ParseMode(c.SearchMode)

	return mode
}
