package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"icepak/pkg/cache"
	"icepak/pkg/core"
	"icepak/pkg/scan"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Hash game data files and record them in the cache",
	Long:  "Walk the data root, hash every file selected by the scope and store the hashes, plus per-entry hashes for ICE archives, in the cache database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, _ := cmd.Flags().GetString("root")
		if root == "" {
			root = cfg.DataRoot
		}
		if root == "" {
			return errors.New("no data root: set data_root in the config or pass --root")
		}
		scopeName := cfg.Scope
		if cmd.Flags().Changed("scope") {
			scopeName, _ = cmd.Flags().GetString("scope")
		}
		scope, err := core.ParseScope(scopeName)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
		store, err := cache.Open(cmd.Context(), cfg.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()

		tracker := newTracker(cmd)
		defer tracker.Stop()

		s := scan.New(store, scan.Options{
			Root:         root,
			ExcludeGlobs: cfg.ExcludeGlobs,
			Logger:       logger,
			Progress:     tracker,
		})
		rep, err := s.ScanFiles(cmd.Context(), scope, force)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, updated %d, skipped %d, archives %d, failed %d\n",
			rep.Scanned, rep.Updated, rep.Skipped, rep.Archives, rep.Failed)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("root", "", "Data root to scan (default from config)")
	scanCmd.Flags().String("scope", "all", "Scope: pso, ngs or all")
	scanCmd.Flags().Bool("force", false, "Rehash files even when unchanged")

	rootCmd.AddCommand(scanCmd)
}
