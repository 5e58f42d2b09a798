package plugin

import "errors"

// Plugin loading errors.
var (
	// ErrPluginDir is returned when the plugin directory cannot be read.
	ErrPluginDir = errors.New("plugin directory unreadable")

	// ErrEntryPoint wraps a failure while executing a plugin entry point.
	ErrEntryPoint = errors.New("plugin entry point failed")

	// ErrManifest is returned when a plugin manifest cannot be parsed.
	ErrManifest = errors.New("invalid plugin manifest")
)
