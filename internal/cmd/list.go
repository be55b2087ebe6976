package cmd

import (
	"fmt"

	"icepak/pkg/core"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <archive|dir>",
	Short: "List archive entries as filename,format,group,entry rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := core.ListPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
