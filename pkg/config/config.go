// Package config loads the icepak YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"icepak/pkg/core"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Zero values fall back to Default.
type Config struct {
	// DataRoot is the game data directory scanned by "scan".
	DataRoot string `yaml:"data_root"`
	// CachePath is the SQLite file holding scan results.
	CachePath string `yaml:"cache_path"`
	// Group1 lists the base names packed into group 1, one per entry.
	Group1 []string `yaml:"group1"`
	// Codec is the compression codec used when packing: lz4 or zstd.
	Codec string `yaml:"codec"`
	// Scope limits scans to pso, ngs or all.
	Scope string `yaml:"scope"`
	// ExcludeGlobs are doublestar patterns, relative to DataRoot, skipped by
	// scans.
	ExcludeGlobs []string `yaml:"exclude_globs"`
	Log          Log      `yaml:"log"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
	// File, when set, receives JSON logs with rotation instead of stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		CachePath: filepath.Join(dir, "icepak", "cache.db"),
		Codec:     core.CodecLZ4.String(),
		Scope:     core.ScopeAll.String(),
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "icepak.yaml"
	}
	return filepath.Join(dir, "icepak", "config.yaml")
}

// Load reads path on top of Default. A missing file is not an error when
// path is the default location.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated fields and glob syntax.
func (c Config) Validate() error {
	if _, err := c.PackCodec(); err != nil {
		return err
	}
	if _, err := core.ParseScope(c.Scope); err != nil {
		return err
	}
	for _, g := range c.ExcludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("malformed exclude glob %q", g)
		}
	}
	return nil
}

// AllowList returns Group1 as a classifier allow list.
func (c Config) AllowList() core.AllowList {
	return core.NewAllowList(c.Group1...)
}

// PackCodec parses Codec.
func (c Config) PackCodec() (core.Codec, error) {
	return ParseCodec(c.Codec)
}

// ParseCodec accepts "lz4" and "zstd"; empty means lz4.
func ParseCodec(s string) (core.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lz4":
		return core.CodecLZ4, nil
	case "zstd":
		return core.CodecZstd, nil
	}
	return core.CodecNone, fmt.Errorf("unknown codec %q", s)
}

// LoadAllowListFile reads a newline delimited allow list file and merges it
// after the configured names.
func (c *Config) LoadAllowListFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read allow list: %w", err)
	}
	c.Group1 = append(c.Group1, core.ParseAllowList(string(data)).Names()...)
	return nil
}
