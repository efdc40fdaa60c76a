// Package configutil reads the scraper's json5 configuration files. A
// config may carry a sibling ".local" override file that is merged on top,
// keeping device-specific settings (appium server url, display id) out of
// the committed config.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// readInto unmarshals one json5 file into out. A missing or empty file is
// reported through the bool, not the error.
func readInto(path string, out any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json5.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

// localPath derives "<name>.local.<ext>" from "<name>.<ext>".
func localPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// ReadConfig reads <name> and, when present, merges <name>.local.<ext> over
// it. os.ErrNotExist is returned when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var cfg T

	found, err := readInto(name, &cfg)
	if err != nil {
		return cfg, err
	}

	local := localPath(name)
	var override T
	foundLocal, err := readInto(local, &override)
	if err != nil {
		return cfg, err
	}
	if foundLocal {
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, err
		}
		slog.Info("merged local config overrides", "local", local)
	}

	if !found && !foundLocal {
		return cfg, os.ErrNotExist
	}
	return cfg, nil
}

// ReadRecursively walks from the working directory up to the filesystem
// root looking for the named config. Telemetry setup uses it so a crawl
// started from any subdirectory still finds telemetry.json5.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
