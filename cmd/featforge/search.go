package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>...",
	Short: "Search features by keyword",
	Long: `Search feature titles, descriptions, and keywords.

Results are ranked: a term matching the title scores highest, then a
registered keyword, then the description. Matching is case-insensitive
substring matching.

Example:
  featforge search inventory grid`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hits, err := store.KeywordSearch(cmd.Context(), args)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(hits) == 0 {
			fmt.Printf("%s\n", gray("No matches"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, hit := range hits {
			fmt.Printf("%s %s  %s %s\n",
				gray(fmt.Sprintf("%3d", hit.Score)),
				cyan(hit.Feature.ID),
				statusBadge(hit.Feature.Status),
				hit.Feature.Title)
		}
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("%d match(es)", len(hits))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
