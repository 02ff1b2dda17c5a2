package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/types"
)

var (
	listStatus  string
	listType    string
	listKeyword string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List features in the ledger",
	Long: `List features, optionally filtered by status, type, or keyword.

Example:
  featforge list
  featforge list --status awaiting_implementation
  featforge list --type bug_fix --keyword inventory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.FeatureFilter{
			Keyword: listKeyword,
			Limit:   listLimit,
		}
		if listStatus != "" {
			status := types.Status(listStatus)
			if !status.IsValid() {
				return &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", listStatus)}
			}
			filter.Status = &status
		}
		if listType != "" {
			featureType := types.FeatureType(listType)
			if !featureType.IsValid() {
				return &types.ValidationError{Field: "type", Reason: fmt.Sprintf("invalid feature type: %s", listType)}
			}
			filter.Type = &featureType
		}

		features, err := store.QueryFeatures(cmd.Context(), filter)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(features) == 0 {
			fmt.Printf("%s\n", gray("No features match"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, f := range features {
			fmt.Printf("%s  %s %s\n", cyan(f.ID), statusBadge(f.Status), f.Title)
		}
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("%d feature(s)", len(features))))
		return nil
	},
}

// statusBadge renders a fixed-width colored status tag
func statusBadge(status types.Status) string {
	c := color.New(color.FgHiBlack)
	switch status {
	case types.StatusRequested:
		c = color.New(color.FgWhite)
	case types.StatusInReview:
		c = color.New(color.FgYellow)
	case types.StatusAwaitingImplementation, types.StatusAwaitingValidation:
		c = color.New(color.FgCyan)
	case types.StatusValidated:
		c = color.New(color.FgGreen)
	case types.StatusCancelled, types.StatusSuperseded:
		c = color.New(color.FgHiBlack)
	}
	return c.Sprintf("[%-23s]", status)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by feature type")
	listCmd.Flags().StringVar(&listKeyword, "keyword", "", "Filter by free-text keyword")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum results (0 = no limit)")
}
