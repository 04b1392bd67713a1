// Package config loads the host-supplied runtime configuration for the
// render core. Parsing a CLI or environment variables is explicitly out
// of scope (spec.md §6 "no CLI or env vars in the core") — this package
// only turns a TOML document into a validated Config value; wiring that
// up to flags/env lives in the host application, not here.
package config

import (
	"fmt"
	"os"
	"runtime"

	toml "github.com/pelletier/go-toml/v2"
)

// MSAA is the multisample anti-aliasing level, expressed as samples per
// pixel (spec.md glossary: "1/2/4/8 samples per pixel").
type MSAA uint8

const (
	MSAAX1 MSAA = 1
	MSAAX2 MSAA = 2
	MSAAX4 MSAA = 4
	MSAAX8 MSAA = 8
)

func (m MSAA) Valid() bool {
	switch m {
	case MSAAX1, MSAAX2, MSAAX4, MSAAX8:
		return true
	default:
		return false
	}
}

// VSync selects present-mode preference ordering (spec.md §4.F).
type VSync string

const (
	VSyncOn  VSync = "on"
	VSyncOff VSync = "off"
)

// Config is the render core's full set of tunables. Every field has a
// zero-value-safe default applied by Default() so a host may populate
// only the fields it cares about.
type Config struct {
	// RenderWorkers is N in "UpdateWorker pool (15%)"; 0 means
	// runtime.NumCPU().
	RenderWorkers int `toml:"render_workers"`

	MSAA             MSAA `toml:"msaa"`
	VSync            VSync `toml:"vsync"`
	ConservativeDraw bool  `toml:"conservative_draw"`

	MetricsLevel string `toml:"metrics_level"`

	// AtlasDefaultSize overrides the §4.D default atlas size; zero means
	// 2048. AtlasSmallThreshold and AtlasLargeThreshold (zero means 16 /
	// 512) are loaded and defaulted but nothing reads them: render/worker
	// always uses its own SmallThreshold and LargeThreshold constants.
	AtlasSmallThreshold uint32 `toml:"atlas_small_threshold"`
	AtlasLargeThreshold uint32 `toml:"atlas_large_threshold"`
	AtlasDefaultSize    uint32 `toml:"atlas_default_size"`

	// ImageCacheGraceSeconds is loaded and defaulted to 0, but nothing
	// reads it: the image cache keeps an obtained-but-never-used image
	// indefinitely whatever its value.
	ImageCacheGraceSeconds uint64 `toml:"image_cache_grace_seconds"`

	// Dev enables the fsnotify-backed asset watcher and debug logging.
	Dev bool `toml:"dev"`
}

// Default returns a Config with every field set to the render core's
// documented defaults.
func Default() Config {
	return Config{
		RenderWorkers:          runtime.NumCPU(),
		MSAA:                   MSAAX1,
		VSync:                  VSyncOn,
		ConservativeDraw:       true,
		MetricsLevel:           "none",
		AtlasSmallThreshold:    16,
		AtlasLargeThreshold:    512,
		AtlasDefaultSize:       2048,
		ImageCacheGraceSeconds: 0,
		Dev:                    false,
	}
}

// Load reads a TOML document from path and merges it on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.normalize(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) normalize() error {
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = runtime.NumCPU()
	}

	if !c.MSAA.Valid() {
		return fmt.Errorf("config: invalid msaa level %d", c.MSAA)
	}

	if c.VSync != VSyncOn && c.VSync != VSyncOff {
		return fmt.Errorf("config: invalid vsync mode %q", c.VSync)
	}

	if c.AtlasSmallThreshold == 0 {
		c.AtlasSmallThreshold = 16
	}

	if c.AtlasLargeThreshold == 0 {
		c.AtlasLargeThreshold = 512
	}

	if c.AtlasDefaultSize == 0 {
		c.AtlasDefaultSize = 2048
	}

	return nil
}
