package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/livecode/livecode"
	"github.com/ZanzyTHEbar/livecode/livecode/config"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "Incremental live-coding toolchain for s-expression programs",
		Long: `livecode bundles a source tree into a materialized snapshot, writes the
difference to the previous snapshot as a patch artifact, and applies such
patches to a running program.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./livecode.yaml or ~/.config/livecode/livecode.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides log.level")

	rootCmd.AddCommand(
		newBundleCmd(a),
		newDiffCmd(a),
		newWatchCmd(a),
		newEditCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = internal.GetLevelLogger(level)
	return nil
}
