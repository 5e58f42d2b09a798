// Package config loads dispatchz command settings.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// TOML file, then DISPATCHZ_* environment variables (DISPATCHZ_PLUGINS_DIR
// sets plugins.dir).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/zoobzio/dispatchz"
	"github.com/zoobzio/dispatchz/plugin"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "DISPATCHZ_"

// Config holds the settings of the dispatchz command.
type Config struct {
	Plugins Plugins `koanf:"plugins"`
	Debug   Debug   `koanf:"debug"`
}

// Plugins configures the plugin loader.
type Plugins struct {
	Dir      string   `koanf:"dir"`
	Entry    string   `koanf:"entry"`
	Manifest string   `koanf:"manifest"`
	Disabled []string `koanf:"disabled"`
}

// Debug configures engine tracing.
type Debug struct {
	// Level is a numeric mask or category names, see dispatchz.ParseLevel.
	Level string `koanf:"level"`
}

// DebugLevel parses Debug.Level.
func (c *Config) DebugLevel() (dispatchz.Level, error) {
	return dispatchz.ParseLevel(c.Debug.Level)
}

// LoaderOptions translates the plugin settings into loader options.
func (c *Config) LoaderOptions() []plugin.Option {
	return []plugin.Option{
		plugin.WithEntryPoint(c.Plugins.Entry),
		plugin.WithManifestName(c.Plugins.Manifest),
		plugin.WithDisabledPrefixes(c.Plugins.Disabled...),
	}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"plugins.dir":      "plugins",
		"plugins.entry":    plugin.DefaultEntryPoint,
		"plugins.manifest": plugin.DefaultManifest,
		"plugins.disabled": append([]string(nil), plugin.DefaultDisabledPrefixes...),
		"debug.level":      "none",
	}
}

// Load builds the configuration. path names a TOML file; it may be empty,
// in which case only defaults and the environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if _, err := cfg.DebugLevel(); err != nil {
		return nil, fmt.Errorf("invalid debug.level: %w", err)
	}
	return &cfg, nil
}
