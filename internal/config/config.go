// Package config loads gitobj settings from TOML with GITOBJ_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Backends lists the accepted storage backends.
var Backends = []string{"loose", "gogit", "sqlite", "memory"}

// Defaults applied when a setting is absent.
const (
	DefaultBackend       = "loose"
	DefaultBranch        = "master"
	DefaultSymbolicDepth = 1
	DefaultCacheSize     = 1024
	DefaultListenAddr    = "127.0.0.1:8418"
)

// Logging configures the process logger.
type Logging struct {
	Level  string `toml:"level,omitempty"`
	Format string `toml:"format,omitempty"`
}

// Server configures the HTTP API.
type Server struct {
	ListenAddr string `toml:"listen_addr" split_words:"true"`
}

// Cfg is everything derived from the config file and environment.
type Cfg struct {
	Backend       string  `toml:"backend"`
	Path          string  `toml:"path"`
	DefaultBranch string  `toml:"default_branch" split_words:"true"`
	SymbolicDepth int     `toml:"symbolic_depth" split_words:"true"`
	CacheSize     int     `toml:"cache_size" split_words:"true"`
	Logging       Logging `toml:"logging" envconfig:"logging"`
	Server        Server  `toml:"server" envconfig:"server"`
}

// Load decodes TOML from r, applies environment overrides and defaults, and
// validates the result.
func Load(r io.Reader) (Cfg, error) {
	var cfg Cfg
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Cfg{}, fmt.Errorf("load toml: %w", err)
	}
	if err := envconfig.Process("gitobj", &cfg); err != nil {
		return Cfg{}, fmt.Errorf("envconfig: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Cfg{}, err
	}
	return cfg, nil
}

// LoadFile is Load on the file at path. A missing file yields the defaults
// plus environment overrides.
func LoadFile(path string) (Cfg, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Load(strings.NewReader(""))
	}
	if err != nil {
		return Cfg{}, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (cfg *Cfg) setDefaults() {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.Path == "" && cfg.Backend != "memory" {
		cfg.Path = "."
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = DefaultBranch
	}
	if cfg.SymbolicDepth == 0 {
		cfg.SymbolicDepth = DefaultSymbolicDepth
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
}

// Validate checks the configuration for sanity.
func (cfg *Cfg) Validate() error {
	known := false
	for _, b := range Backends {
		if cfg.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("config: unknown backend %q, want one of %v", cfg.Backend, Backends)
	}
	if cfg.SymbolicDepth < 1 {
		return fmt.Errorf("config: symbolic_depth must be at least 1, got %d", cfg.SymbolicDepth)
	}
	if cfg.CacheSize < 0 {
		return fmt.Errorf("config: cache_size must not be negative, got %d", cfg.CacheSize)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", cfg.Logging.Format)
	}
	return nil
}

// WriteFile atomically writes cfg as TOML to path.
func WriteFile(path string, cfg Cfg) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
