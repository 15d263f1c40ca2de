package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astrokit/projector/internal/config"
	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/runner"
)

var (
	version      = "dev"
	cfgFile      string
	debug        bool
	traceEnabled bool
	cfg          config.Config

	// exitStatus accumulates per-combination command statuses bitwise, so
	// one failing flavor/selection pair does not mask the others.
	exitStatus int
)

var rootCmd = &cobra.Command{
	Use:     "projector",
	Short:   "Drive declarative photo-z analysis projects",
	Long: `Resolve declarative analysis-project configurations into concrete
pipeline runs: build pipeline definitions, run them through ceci, reduce and
subsample catalogs, and render diagnostic plots.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The configured default applies unless --run-mode was given.
		if !cmd.Flags().Changed("run-mode") {
			if err := runMode.Set(cfg.RunMode); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/projector/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs to the configured log file")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false,
		"emit command execution traces to stdout")
	rootCmd.PersistentFlags().String("ceci-bin", "",
		"pipeline runner executable")

	_ = viper.BindPFlag("ceci_bin", rootCmd.PersistentFlags().Lookup("ceci-bin"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("ceci_bin", defaults.CeciBin)
	viper.SetDefault("run_mode", defaults.RunMode)
	viper.SetDefault("site", defaults.Site)
	viper.SetDefault("log_file", defaults.LogFile)
	viper.SetDefault("sites", defaults.Sites)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .projector/config.yaml (current directory)
		// 2. ~/.config/projector/config.yaml (user config)
		if _, err := os.Stat(".projector/config.yaml"); err == nil {
			viper.SetConfigFile(".projector/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "projector"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "reading config:", err)
		}
	}
	_ = viper.Unmarshal(&cfg)

	if debug {
		log.SetEnabled(true)
		log.SetMinLevel(log.LevelDebug)
		if cleanup, err := log.Init(cfg.LogFile); err == nil {
			logCleanup = cleanup
		}
	}
}

var logCleanup func()

// newRunner builds the command runner and its tracer. The returned shutdown
// flushes pending trace spans.
func newRunner(cmd *cobra.Command) (*runner.Runner, func() error, error) {
	tracer, shutdown, err := runner.NewTracer(traceEnabled)
	if err != nil {
		return nil, nil, err
	}
	return runner.New(tracer), func() error { return shutdown(cmd.Context()) }, nil
}

// Execute runs the root command. The int result is the accumulated exit
// status of the per-combination operations.
func Execute() (int, error) {
	defer func() {
		if logCleanup != nil {
			logCleanup()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		return 1, err
	}
	return exitStatus, nil
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
