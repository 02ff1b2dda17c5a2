package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := store.GetStatistics(cmd.Context())
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s ===", projectCfg.ProjectName)))
		fmt.Printf("Total features: %d\n\n", stats.TotalFeatures)

		fmt.Printf("%s\n", yellow("By status:"))
		for _, status := range []types.Status{
			types.StatusRequested, types.StatusInReview, types.StatusAwaitingImplementation,
			types.StatusAwaitingValidation, types.StatusValidated, types.StatusSuperseded,
			types.StatusCancelled,
		} {
			if count := stats.ByStatus[status]; count > 0 {
				fmt.Printf("  %-24s %d\n", status, count)
			}
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("By type:"))
		for _, featureType := range []types.FeatureType{
			types.TypeNewFeature, types.TypeBugFix, types.TypeRefactor, types.TypeEnhancement,
		} {
			if count := stats.ByType[featureType]; count > 0 {
				fmt.Printf("  %-24s %d\n", featureType, count)
			}
		}
		fmt.Println()
		fmt.Printf("%s\n\n", gray(fmt.Sprintf("Ledger: %s", projectCfg.DatabasePath)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
