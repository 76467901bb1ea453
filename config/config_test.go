package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpflab/vmdbg/config"
	"github.com/bpflab/vmdbg/machine"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Listen.Network)
	assert.Equal(t, "127.0.0.1:1234", cfg.Listen.Addr)
	assert.Equal(t, machine.ModeFaithful, cfg.Mode())
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen:
  network: unix
  addr: /tmp/vmdbg.sock
metrics_addr: 127.0.0.1:9090
search_mode: corrected
input: 42
workers: 2
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "unix", cfg.Listen.Network)
	assert.Equal(t, "/tmp/vmdbg.sock", cfg.Listen.Addr)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.Equal(t, machine.ModeCorrected, cfg.Mode())
	assert.Equal(t, byte(42), cfg.InputByte())
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search_mode: corrected\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, machine.ModeCorrected, cfg.Mode())
	assert.Equal(t, "tcp", cfg.Listen.Network)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [not a mapping"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvListenAddr, "0.0.0.0:7777")
	t.Setenv(config.EnvSearchMode, "corrected")
	t.Setenv(config.EnvInput, "240")
	t.Setenv(config.EnvWorkers, "3")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7777", cfg.Listen.Addr)
	assert.Equal(t, machine.ModeCorrected, cfg.Mode())
	assert.Equal(t, byte(240), cfg.InputByte())
	assert.Equal(t, 3, cfg.Workers)
}

func TestEnvInputOutOfRangeIsRejected(t *testing.T) {
	t.Setenv(config.EnvInput, "300")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input must be a byte value")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := config.Config{
		Listen:     config.Listen{Network: "udp", Addr: ""},
		SearchMode: "fancy",
		Input:      300,
		Workers:    0,
	}

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "listen.network")
	assert.Contains(t, msg, "listen.addr")
	assert.Contains(t, msg, "search mode")
	assert.Contains(t, msg, "input must be")
	assert.Contains(t, msg, "workers")
}
