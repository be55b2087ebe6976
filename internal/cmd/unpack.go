package cmd

import (
	"errors"

	"icepak/pkg/core"

	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive>",
	Short: "Extract the entries of an ICE archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		subdir, _ := cmd.Flags().GetBool("subdir")
		separate, _ := cmd.Flags().GetBool("separate")

		tracker := newTracker(cmd)
		defer tracker.Stop()

		res, err := core.UnpackFile(cmd.Context(), args[0], output, core.UnpackOptions{
			CreateSubdir:    subdir,
			SeparateByGroup: separate,
			Progress:        tracker,
		})
		if errors.Is(err, core.ErrNoEntries) {
			logger.Warn("Archive has no entries, nothing extracted", "archive", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("Unpacked archive", "archive", args[0], "output", res.OutputDir,
			"group1", res.Group1, "group2", res.Group2, "bytes", res.Bytes)
		return nil
	},
}

func init() {
	unpackCmd.Flags().StringP("output", "o", ".", "Output directory")
	unpackCmd.Flags().Bool("subdir", false, "Extract into a subdirectory named after the archive")
	unpackCmd.Flags().Bool("separate", false, "Extract each group into its own group1/ or group2/ directory")

	rootCmd.AddCommand(unpackCmd)
}
