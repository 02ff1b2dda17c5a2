package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/ai"
	"github.com/featforge/featforge/internal/types"
)

var (
	createType        string
	createTitle       string
	createDescription string
	createKeywords    []string
	createConfirm     bool
	createNoScreening bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new feature request in the ledger",
	Long: `Register a new feature request.

Before inserting, the description is screened against existing features
for duplicates and conflicts. A match at or above the project's
similarity threshold blocks creation; pass --confirm to create anyway
(the detected relations are then recorded on the new feature).

Screening needs ANTHROPIC_API_KEY; without it, or with --no-screening,
the feature is created unscreened.

Example:
  featforge create --title "Grid inventory" \
    --description "Players arrange items on a spatial grid" \
    --keywords inventory,items,ui`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		feature := &types.Feature{
			Type:        types.FeatureType(createType),
			Title:       createTitle,
			Description: createDescription,
			Keywords:    createKeywords,
		}

		matches, err := screenForDuplicates(ctx, createDescription)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: similarity screening failed: %v\n", err)
			fmt.Fprintf(os.Stderr, "Creating unscreened. Re-check with 'featforge search' if in doubt.\n")
			matches = nil
		}

		var blocking []types.SimilarFeature
		for _, m := range matches {
			if m.Confidence >= projectCfg.SimilarityThreshold {
				blocking = append(blocking, m)
			}
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		if len(blocking) > 0 && !createConfirm {
			fmt.Printf("%s Creation blocked: existing features look too similar\n\n", yellow("⚠"))
			printMatches(blocking)
			fmt.Println("Re-run with --confirm to create anyway (relations will be recorded).")
			os.Exit(5)
		}

		if err := store.CreateFeature(ctx, feature, actor()); err != nil {
			return err
		}

		if _, err := store.AddDocument(ctx, feature.ID, types.DocRequest, createDescription, actor()); err != nil {
			return err
		}

		for _, m := range blocking {
			if err := store.AddRelation(ctx, feature.ID, m.Relation, m.FeatureID, actor()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not record %s relation to %s: %v\n", m.Relation, m.FeatureID, err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Created %s\n\n", green("✓"), cyan(feature.ID))
		fmt.Printf("  Title:  %s\n", feature.Title)
		fmt.Printf("  Type:   %s\n", feature.Type)
		fmt.Printf("  Status: %s\n", feature.Status)
		if len(matches) > 0 && len(blocking) == 0 {
			fmt.Printf("\n%s Related features detected below the block threshold:\n\n", yellow("⚠"))
			printMatches(matches)
		}
		fmt.Println()
		return nil
	},
}

// screenForDuplicates classifies the description against existing features
func screenForDuplicates(ctx context.Context, description string) ([]types.SimilarFeature, error) {
	if createNoScreening {
		return nil, nil
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Warning: ANTHROPIC_API_KEY not set, skipping similarity screening")
		return nil, nil
	}

	engine, err := ai.NewEngine(&ai.Config{Model: projectCfg.SimpleModel})
	if err != nil {
		return nil, err
	}
	resolver := ai.NewSimilarityResolver(engine, store, projectCfg.SimpleModel)
	return resolver.FindSimilar(ctx, description)
}

func printMatches(matches []types.SimilarFeature) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, m := range matches {
		fmt.Printf("  %s  %s (confidence %.2f)\n", cyan(m.FeatureID), m.Relation, m.Confidence)
		if m.Reasoning != "" {
			fmt.Printf("    %s\n", gray(m.Reasoning))
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createType, "type", string(types.TypeNewFeature), "Feature type: new_feature, bug_fix, refactor, or enhancement")
	createCmd.Flags().StringVar(&createTitle, "title", "", "Feature title (required)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "What the feature should do (required)")
	createCmd.Flags().StringSliceVar(&createKeywords, "keywords", nil, "Comma-separated search keywords")
	createCmd.Flags().BoolVar(&createConfirm, "confirm", false, "Create even when a near-duplicate is detected")
	createCmd.Flags().BoolVar(&createNoScreening, "no-screening", false, "Skip duplicate screening")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("description")
}
