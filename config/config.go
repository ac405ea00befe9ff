// Package config loads the small set of process-configuration values the
// core consumes but does not itself parse: whether to auto-load the mod
// database on startup, the minimum acceptable frame rate, and which input
// profile's key table to bind.
//
// No config-file library is wired in here (this process has no on-disk
// settings format to match), so this package uses only the standard
// library: a plain JSON document decoded with encoding/json. Fields the
// document omits keep their defaults, and a malformed document yields the
// defaults in full; field values are not otherwise validated.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the values the core needs at bootstrap.
type Config struct {
	LoadModsOnStart bool   `json:"loadModsOnStart"`
	MinimumFPS      int    `json:"minimumFPS"`
	InputProfile    string `json:"inputProfile"`
}

// Default returns the configuration used when no file is present or the
// file fails to parse: mods load automatically, the minimum frame rate is
// 30, and the input profile is function keys.
func Default() Config {
	return Config{
		LoadModsOnStart: true,
		MinimumFPS:      30,
		InputProfile:    "fk",
	}
}

// Load reads and parses a JSON configuration file at path. A missing file is
// not an error: Default is returned unchanged, since the core must still
// function (in its default configuration) when the host never placed a
// config file at the expected root. A malformed file is reported as an
// error so the caller can log it; Default is also returned in that case so
// the core can still initialize with its default configuration rather than
// fail bootstrap entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
