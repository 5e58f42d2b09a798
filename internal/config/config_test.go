package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/dispatchz"
	"github.com/zoobzio/dispatchz/plugin"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatchz.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "plugins", cfg.Plugins.Dir)
	assert.Equal(t, plugin.DefaultEntryPoint, cfg.Plugins.Entry)
	assert.Equal(t, plugin.DefaultManifest, cfg.Plugins.Manifest)
	assert.Equal(t, plugin.DefaultDisabledPrefixes, cfg.Plugins.Disabled)

	level, err := cfg.DebugLevel()
	require.NoError(t, err)
	assert.Equal(t, dispatchz.DebugNone, level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[plugins]
dir = "/opt/dispatchz/plugins"
entry = "main.lua"
disabled = ["_"]

[debug]
level = "events,calls"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/dispatchz/plugins", cfg.Plugins.Dir)
	assert.Equal(t, "main.lua", cfg.Plugins.Entry)
	assert.Equal(t, plugin.DefaultManifest, cfg.Plugins.Manifest, "unset keys keep defaults")
	assert.Equal(t, []string{"_"}, cfg.Plugins.Disabled)

	level, err := cfg.DebugLevel()
	require.NoError(t, err)
	assert.Equal(t, dispatchz.DebugEvents|dispatchz.DebugCalls, level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[plugins]
dir = "from-file"
`)
	t.Setenv("DISPATCHZ_PLUGINS_DIR", "from-env")
	t.Setenv("DISPATCHZ_PLUGINS_DISABLED", "~,_")
	t.Setenv("DISPATCHZ_DEBUG_LEVEL", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Plugins.Dir)
	assert.Equal(t, []string{"~", "_"}, cfg.Plugins.Disabled)

	level, err := cfg.DebugLevel()
	require.NoError(t, err)
	assert.Equal(t, dispatchz.DebugAll, level)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[plugins\ndir ="))
		assert.Error(t, err)
	})

	t.Run("unknown debug category", func(t *testing.T) {
		t.Setenv("DISPATCHZ_DEBUG_LEVEL", "verbose")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid debug.level")
	})
}

func TestLoaderOptions(t *testing.T) {
	cfg := &Config{Plugins: Plugins{Entry: "main.lua", Manifest: "meta.yaml", Disabled: []string{"_"}}}
	assert.Len(t, cfg.LoaderOptions(), 3)
}
