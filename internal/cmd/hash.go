package cmd

import (
	"fmt"
	"os"

	"icepak/pkg/core"

	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the content hash of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			sum, err := core.HashReader(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
