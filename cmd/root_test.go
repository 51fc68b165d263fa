package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/buildinfo"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := RootCommand(buildinfo.NewContext("1.2.3", "2026-10-01", "abcdef123456"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pysdr 1.2.3")
	assert.Contains(t, out, "abcdef123456")
	assert.Contains(t, out, "cpu:")
}

func TestConfigDumpAppliesFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  console:
    enabled: false
input:
  kind: synthetic
mqtt:
  password: hunter2
`), 0o644))

	out, err := execute(t, "--config", path, "--bins", "2048", "config", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: synthetic")
	assert.Contains(t, out, "bins: 2048")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  console:\n    enabled: false\n"), 0o644))
	target := filepath.Join(dir, "nested", "pysdr.yaml")

	out, err := execute(t, "--config", cfg, "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "spectral:")
}

func TestInvalidConfigStopsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spectral:\n  bins: 1000\n"), 0o644))

	_, err := execute(t, "--config", path, "config", "dump")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spectral.bins")
}
