// Package plugin loads plugins from a directory into a dispatchz engine.
//
// Every subdirectory holding an entry point (init.lua by default) is a
// plugin, unless its name starts with a disabled prefix ("~" or "." by
// default). Loading is observable and adjustable through the engine:
//
//	load-plugins                                   before the scan
//	filter plugin-name (name)                      false skips the entry
//	filter plugin-path (entry point path)          false skips the entry
//	load-plugin, load-plugin-<name>                before executing the entry point
//	load-plugin-done, load-plugin-<name>-done      after executing it
//	load-plugins-done                              after the scan
//
// The per plugin events receive map[string]any{"name": name, "path": path}.
package plugin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zoobzio/dispatchz"
)

// Hook keys used by the loader.
const (
	EventLoadPlugins     dispatchz.Key = "load-plugins"
	EventLoadPluginsDone dispatchz.Key = "load-plugins-done"
	EventLoadPlugin      dispatchz.Key = "load-plugin"
	EventLoadPluginDone  dispatchz.Key = "load-plugin-done"
	FilterPluginName     dispatchz.Key = "plugin-name"
	FilterPluginPath     dispatchz.Key = "plugin-path"
)

// Defaults used by NewLoader.
const (
	DefaultEntryPoint = "init.lua"
	DefaultManifest   = "plugin.yaml"
)

// DefaultDisabledPrefixes mark directories that are never loaded.
var DefaultDisabledPrefixes = []string{"~", "."}

// LoadEvent is fired before the plugin called name is loaded.
func LoadEvent(name string) dispatchz.Key {
	return "load-plugin-" + name
}

// LoadDoneEvent is fired after the plugin called name is loaded.
func LoadDoneEvent(name string) dispatchz.Key {
	return "load-plugin-" + name + "-done"
}

// Hooks is the part of the engine the loader dispatches through.
type Hooks interface {
	Run(key any, params ...any) (int, error)
	Filter(key any, value any, params ...any) (any, error)
}

// Runtime executes a plugin entry point.
type Runtime interface {
	Exec(info Info) error
}

// RuntimeFunc adapts a function to a Runtime.
type RuntimeFunc func(info Info) error

// Exec calls f(info).
func (f RuntimeFunc) Exec(info Info) error {
	return f(info)
}

// Info describes a plugin the loader attempted to execute.
type Info struct {
	Name     string
	Dir      string
	Path     string // entry point
	Manifest *Manifest
	Err      error
}

// Loaded reports whether the entry point ran without error.
func (i Info) Loaded() bool {
	return i.Err == nil
}

// Option configures a Loader.
type Option func(*Loader)

// WithDisabledPrefixes replaces the prefixes marking disabled plugins.
func WithDisabledPrefixes(prefixes ...string) Option {
	return func(l *Loader) {
		l.disabled = prefixes
	}
}

// WithEntryPoint sets the file name looked up in each plugin directory.
func WithEntryPoint(name string) Option {
	return func(l *Loader) {
		l.entry = name
	}
}

// WithManifestName sets the manifest file name looked up in each plugin
// directory.
func WithManifestName(name string) Option {
	return func(l *Loader) {
		l.manifest = name
	}
}

// WithLogger sets the logger. Default is a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithRuntime replaces the Lua runtime.
func WithRuntime(rt Runtime) Option {
	return func(l *Loader) {
		l.runtime = rt
	}
}

// Loader discovers and loads plugins from a directory.
type Loader struct {
	hooks    Hooks
	runtime  Runtime
	disabled []string
	entry    string
	manifest string
	logger   zerolog.Logger
}

// NewLoader creates a loader dispatching through engine. Unless WithRuntime
// is given, entry points are executed by a LuaRuntime bound to engine.
func NewLoader(engine *dispatchz.Engine, opts ...Option) *Loader {
	l := &Loader{
		hooks:    engine,
		disabled: DefaultDisabledPrefixes,
		entry:    DefaultEntryPoint,
		manifest: DefaultManifest,
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.runtime == nil {
		l.runtime = NewLuaRuntime(engine, l.logger)
	}
	return l
}

// Load scans dir and loads every eligible plugin in name order. A plugin
// whose entry point fails is reported in its Info and does not stop the
// scan. The only error is an unreadable dir.
func (l *Loader) Load(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPluginDir, err)
	}

	l.logger.Debug().Str("dir", dir).Int("entries", len(entries)).Msg("Scanning plugins")
	l.run(EventLoadPlugins)

	var loaded []Info
	for _, entry := range entries {
		info, ok := l.candidate(dir, entry.Name())
		if !ok {
			continue
		}

		payload := map[string]any{"name": info.Name, "path": info.Path}
		l.run([]dispatchz.Key{EventLoadPlugin, LoadEvent(info.Name)}, payload)

		if err := l.runtime.Exec(info); err != nil {
			info.Err = err
			l.logger.Warn().Err(err).Str("plugin", info.Name).Msg("Plugin failed to load")
		} else {
			l.logger.Info().Str("plugin", info.Name).Str("path", info.Path).Msg("Plugin loaded")
		}

		l.run([]dispatchz.Key{EventLoadPluginDone, LoadDoneEvent(info.Name)}, payload)
		loaded = append(loaded, info)
	}

	l.run(EventLoadPluginsDone)
	return loaded, nil
}

// candidate applies the name and path filters and the eligibility rules.
func (l *Loader) candidate(dir, entryName string) (Info, bool) {
	name, ok := l.filterString(FilterPluginName, entryName)
	if !ok {
		l.logger.Debug().Str("entry", entryName).Msg("Plugin name vetoed")
		return Info{}, false
	}

	if l.isDisabled(name) {
		l.logger.Debug().Str("plugin", name).Msg("Plugin disabled by prefix")
		return Info{}, false
	}

	pluginDir := filepath.Join(dir, name)
	path, ok := l.filterString(FilterPluginPath, filepath.Join(pluginDir, l.entry))
	if !ok {
		l.logger.Debug().Str("plugin", name).Msg("Plugin path vetoed")
		return Info{}, false
	}

	if stat, err := os.Stat(path); err != nil || stat.IsDir() {
		return Info{}, false
	}

	info := Info{Name: name, Dir: pluginDir, Path: path}

	m, err := LoadManifest(filepath.Join(pluginDir, l.manifest))
	if err != nil {
		l.logger.Warn().Err(err).Str("plugin", name).Msg("Skipping plugin with invalid manifest")
		return Info{}, false
	}
	if m != nil && m.Disabled {
		l.logger.Debug().Str("plugin", name).Msg("Plugin disabled by manifest")
		return Info{}, false
	}
	info.Manifest = m

	return info, true
}

func (l *Loader) isDisabled(name string) bool {
	for _, prefix := range l.disabled {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// filterString filters value through key. Anything but a non-empty string
// coming back counts as a veto.
func (l *Loader) filterString(key dispatchz.Key, value string) (string, bool) {
	out, err := l.hooks.Filter(key, value)
	if err != nil {
		return "", false
	}
	s, ok := out.(string)
	return s, ok && s != ""
}

func (l *Loader) run(key any, params ...any) {
	if _, err := l.hooks.Run(key, params...); err != nil {
		l.logger.Error().Err(err).Msg("Plugin lifecycle event failed")
	}
}

// Close releases the runtime if it holds resources.
func (l *Loader) Close() error {
	if c, ok := l.runtime.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
