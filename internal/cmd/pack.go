package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"icepak/pkg/config"
	"icepak/pkg/core"
	"icepak/pkg/progress"

	"github.com/spf13/cobra"
)

var packCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "Pack a directory into an ICE archive",
	Long:  "Pack the files of a directory into an ICE archive. Files whose base name is in the group 1 allow list go to group 1, everything else to group 2.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadPackOptions(cmd)
		if err != nil {
			return err
		}
		input := args[0]
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = determineOutputPath(input)
		}

		tracker := newTracker(cmd)
		defer tracker.Stop()
		opts.Progress = tracker

		data, err := core.PackDir(cmd.Context(), input, opts)
		if err != nil {
			return err
		}
		if err := writeArchive(output, data, tracker); err != nil {
			return err
		}
		logger.Info("Packed archive", "input", input, "output", output, "bytes", len(data),
			"compress", opts.Compress, "encrypt", opts.Encrypt)
		return nil
	},
}

func init() {
	packCmd.Flags().StringP("output", "o", "", "Output archive path (default: <dir>.ice)")
	packCmd.Flags().BoolP("recursive", "r", false, "Include files in subdirectories")
	packCmd.Flags().Bool("compress", false, "Compress each group")
	packCmd.Flags().Bool("encrypt", false, "Encrypt each group")
	packCmd.Flags().String("codec", "", "Compression codec: lz4 or zstd (default from config)")
	packCmd.Flags().String("allow-list", "", "File with group 1 base names, one per line")
	packCmd.Flags().Bool("require-entries", false, "Fail when the directory has no files")

	rootCmd.AddCommand(packCmd)
}

func loadPackOptions(cmd *cobra.Command) (core.DirPackOptions, error) {
	recursive, _ := cmd.Flags().GetBool("recursive")
	compress, _ := cmd.Flags().GetBool("compress")
	encrypt, _ := cmd.Flags().GetBool("encrypt")
	requireEntries, _ := cmd.Flags().GetBool("require-entries")
	codecName, _ := cmd.Flags().GetString("codec")
	allowFile, _ := cmd.Flags().GetString("allow-list")

	c := cfg
	if allowFile != "" {
		if err := c.LoadAllowListFile(allowFile); err != nil {
			return core.DirPackOptions{}, err
		}
	}
	codec, err := c.PackCodec()
	if codecName != "" {
		codec, err = config.ParseCodec(codecName)
	}
	if err != nil {
		return core.DirPackOptions{}, err
	}

	return core.DirPackOptions{
		PackOptions: core.PackOptions{
			Compress:       compress,
			Encrypt:        encrypt,
			Codec:          codec,
			RequireEntries: requireEntries,
		},
		Recursive: recursive,
		AllowList: c.AllowList(),
	}, nil
}

// determineOutputPath determines the output path for packing
func determineOutputPath(input string) string {
	autoName := filepath.Base(filepath.Clean(input)) + ".ice"
	if _, err := os.Stat(autoName); os.IsNotExist(err) {
		return autoName
	}

	// Default fallback
	return "output.ice"
}

func writeArchive(output string, data []byte, tracker *progress.Tracker) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	tracker.SetTotal(tracker.Processed() + uint64(len(data)))
	if _, err := io.Copy(&progress.Writer{W: f, Tracker: tracker}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
