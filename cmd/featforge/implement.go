package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	implementCommit string
	implementFiles  []string
)

var implementCmd = &cobra.Command{
	Use:   "implement <feature-id>",
	Short: "Record a feature's implementation commit",
	Long: `Record that a feature has been implemented outside the pipeline,
with the commit hash and changed files.

The feature must be awaiting implementation (its plan was approved).
This moves it to awaiting_validation; run 'featforge advance' for the
final validation gate.

Example:
  featforge implement PJ-003 --commit abc1234 --files src/inventory.lua,src/ui.lua`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.MarkImplemented(cmd.Context(), args[0], implementCommit, implementFiles, actor()); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s marked implemented (commit %s, %d file(s))\n",
			green("✓"), args[0], implementCommit, len(implementFiles))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(implementCmd)
	implementCmd.Flags().StringVar(&implementCommit, "commit", "", "Commit hash of the implementation (required)")
	implementCmd.Flags().StringSliceVar(&implementFiles, "files", nil, "Comma-separated changed files")
	_ = implementCmd.MarkFlagRequired("commit")
}
