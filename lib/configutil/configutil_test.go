package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ServerURL string `json:"serverUrl"`
	Display   int    `json:"display"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	require.NoError(t, os.WriteFile(name,
		[]byte(`{serverUrl: "http://localhost:4723", display: 0}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"),
		[]byte(`{display: 2}`), 0o644))

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:4723", cfg.ServerURL)
	require.Equal(t, 2, cfg.Display)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"),
		[]byte(`{serverUrl: "http://device:4723"}`), 0o644))

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "http://device:4723", cfg.ServerURL)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
