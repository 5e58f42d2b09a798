package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zoobzio/dispatchz"
	"github.com/zoobzio/dispatchz/internal/config"
	"github.com/zoobzio/dispatchz/internal/logging"
	"github.com/zoobzio/dispatchz/plugin"
)

type rootOptions struct {
	verbosity  int
	configFile string
	pluginDir  string
	debug      string
}

// NewRootCmd builds the dispatchz command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dispatchz",
		Short: "Dispatch hooks through Lua plugins",
		Long: `dispatchz loads the Lua plugins of a directory into a hook engine and
runs or filters hooks through them.

Each plugin is a directory holding an init.lua that binds callbacks with
hooks.bind(key, fn [, priority]).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	flags.StringVar(&opts.configFile, "config", "", "TOML config file")
	flags.StringVar(&opts.pluginDir, "plugins", "", "Plugin directory (overrides plugins.dir)")
	flags.StringVar(&opts.debug, "debug", "", "Engine trace categories, e.g. events,calls or 15 (overrides debug.level)")

	cmd.AddCommand(
		newPluginsCmd(opts),
		newRunCmd(opts),
		newFilterCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// session is an engine with the configured plugins loaded.
type session struct {
	engine *dispatchz.Engine
	loader *plugin.Loader
	infos  []plugin.Info
}

func (s *session) Close() error {
	return s.loader.Close()
}

// open loads the configuration, builds the engine and loads plugins.
func (o *rootOptions) open() (*session, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.pluginDir != "" {
		cfg.Plugins.Dir = o.pluginDir
	}
	if o.debug != "" {
		cfg.Debug.Level = o.debug
	}

	level, err := cfg.DebugLevel()
	if err != nil {
		return nil, err
	}

	engine := dispatchz.New(dispatchz.WithDebug(level, dispatchz.NewZerologSink(logging.GetLogger("engine"))))

	loaderOpts := append(cfg.LoaderOptions(), plugin.WithLogger(logging.GetLogger("plugins")))
	loader := plugin.NewLoader(engine, loaderOpts...)

	infos, err := loader.Load(cfg.Plugins.Dir)
	if err != nil {
		_ = loader.Close()
		return nil, err
	}

	return &session{engine: engine, loader: loader, infos: infos}, nil
}
