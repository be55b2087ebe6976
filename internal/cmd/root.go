package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"icepak/pkg/config"
	"icepak/pkg/logging"
	"icepak/pkg/progress"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

// state shared by subcommands, filled in by the root PersistentPreRunE.
var (
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "icepak",
	Short:         "Pack, unpack and inspect ICE archives",
	Long:          "icepak packs directories into two-group ICE archives, extracts them, lists their entries and records content hashes of game data files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		l, closer, err := logging.New(loaded.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg, logger, logCloser = loaded, l, closer
		slog.SetDefault(l)
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("progress", true, "Print progress while processing")
}

// Execute runs the CLI.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// newTracker starts a progress tracker on stderr when --progress is set.
// The returned tracker may be nil.
func newTracker(cmd *cobra.Command) *progress.Tracker {
	if on, _ := cmd.Flags().GetBool("progress"); !on {
		return nil
	}
	t := progress.New(cmd.ErrOrStderr(), time.Second)
	t.Start()
	return t
}
