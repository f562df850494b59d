// Package config loads the optional bvr config file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config captures the tunables of the data plane and the viewer.
type Config struct {
	// CacheSegments bounds resident segments for file-backed buffers.
	CacheSegments int `toml:"cache_segments"`
	// SegmentSize in bytes; leave 0 for the 1 MiB default.
	SegmentSize uint64 `toml:"segment_size"`
	// Follow starts the viewer in follow-tail mode.
	Follow bool `toml:"follow"`
	// IngestRate caps stream capture in bytes per second; 0 is unlimited.
	IngestRate int64 `toml:"ingest_rate"`

	Theme Theme `toml:"theme"`
}

// Theme holds the viewer colors as lipgloss-compatible values.
type Theme struct {
	Accent    string `toml:"accent"`
	StatusBg  string `toml:"status_bg"`
	StatusFg  string `toml:"status_fg"`
	LineNoFg  string `toml:"lineno_fg"`
	MatchFg   string `toml:"match_fg"`
	ErrorFg   string `toml:"error_fg"`
}

const defaultConfigPath = "~/.config/bvr/config.toml"

func defaults() Config {
	return Config{
		CacheSegments: 8,
		Theme: Theme{
			Accent:   "205",
			StatusBg: "236",
			StatusFg: "252",
			LineNoFg: "242",
			MatchFg:  "214",
			ErrorFg:  "196",
		},
	}
}

// Load parses the config at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, errors.Wrap(err, "open config")
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse %s", resolved)
	}
	if cfg.CacheSegments <= 0 {
		cfg.CacheSegments = defaults().CacheSegments
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path == "" {
		path = defaultConfigPath
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home dir")
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
