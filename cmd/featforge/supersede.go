package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/types"
)

var supersedeCmd = &cobra.Command{
	Use:   "supersede <new-feature-id> <old-feature-id>",
	Short: "Mark a validated feature as replaced by another",
	Long: `Mark an old feature as superseded by a new one.

The old feature must be validated (only shipped features can be
replaced), and may be superseded by at most one feature. The supersedes
relation is recorded first, so a superseded feature always references
its replacement.

Example:
  featforge supersede PJ-007 PJ-003`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		newID, oldID := args[0], args[1]

		// Relation before status: a superseded feature must always point at
		// its replacement, and the exclusivity check happens here.
		if err := store.AddRelation(ctx, newID, types.RelSupersedes, oldID, actor()); err != nil {
			return err
		}
		if err := store.UpdateStatus(ctx, oldID, types.StatusSuperseded, actor()); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s %s superseded by %s\n", green("✓"), cyan(oldID), cyan(newID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(supersedeCmd)
}
