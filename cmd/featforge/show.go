package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/types"
)

var (
	showDocuments bool
	showEvents    int
)

var showCmd = &cobra.Command{
	Use:   "show <feature-id>",
	Short: "Show a feature's details, relations, and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		feature, err := store.GetFeature(ctx, args[0])
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s %s\n\n", cyan(feature.ID), feature.Title)
		fmt.Printf("  Type:    %s\n", feature.Type)
		fmt.Printf("  Status:  %s\n", statusBadge(feature.Status))
		fmt.Printf("  Created: %s\n", feature.CreatedAt.Format("2006-01-02 15:04:05"))
		printMilestone("Plan approved", feature.FIPApprovedAt)
		printMilestone("Implemented", feature.ImplementedAt)
		printMilestone("Validated", feature.ValidatedAt)
		printMilestone("Superseded", feature.SupersededAt)
		if feature.CommitHash != "" {
			fmt.Printf("  Commit:  %s\n", feature.CommitHash)
		}
		if len(feature.Keywords) > 0 {
			fmt.Printf("  Keywords: %v\n", feature.Keywords)
		}
		fmt.Println()
		fmt.Printf("  %s\n\n", feature.Description)

		// Active pipeline, if any
		if state, err := store.GetPipelineState(ctx, feature.ID); err == nil {
			fmt.Printf("%s\n", cyan("Pipeline"))
			fmt.Printf("  Stage:   %s\n", state.CurrentStage)
			fmt.Printf("  Started: %s\n", state.StartedAt.Format("2006-01-02 15:04:05"))
			for stage, count := range state.RevisionCounts {
				if count > 0 {
					fmt.Printf("  Revisions at %s: %d\n", stage, count)
				}
			}
			fmt.Println()
		} else {
			var notFound *types.NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
		}

		relations, err := store.GetRelations(ctx, feature.ID)
		if err != nil {
			return err
		}
		if len(relations) > 0 {
			fmt.Printf("%s\n", cyan("Relations"))
			for _, rel := range relations {
				fmt.Printf("  %s %s %s\n", rel.FeatureID, gray(string(rel.Type)), rel.TargetID)
			}
			fmt.Println()
		}

		documents, err := store.GetDocuments(ctx, feature.ID)
		if err != nil {
			return err
		}
		if len(documents) > 0 {
			fmt.Printf("%s\n", cyan("Documents"))
			for _, doc := range documents {
				fmt.Printf("  #%d %s %s (%d bytes)\n", doc.ID, doc.Type,
					gray(doc.CreatedAt.Format("2006-01-02 15:04")), len(doc.Content))
				if showDocuments {
					fmt.Printf("\n%s\n\n", doc.Content)
				}
			}
			fmt.Println()
		}

		if showEvents > 0 {
			events, err := store.GetEvents(ctx, feature.ID, showEvents)
			if err != nil {
				return err
			}
			if len(events) > 0 {
				fmt.Printf("%s\n", cyan("History"))
				for _, ev := range events {
					line := fmt.Sprintf("  %s %s by %s",
						ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.EventType, ev.Actor)
					if ev.Comment != nil {
						line += gray(" — " + *ev.Comment)
					}
					fmt.Println(line)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func printMilestone(label string, at *time.Time) {
	if at == nil {
		return
	}
	fmt.Printf("  %-8s %s\n", label+":", at.Format("2006-01-02 15:04:05"))
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showDocuments, "documents", false, "Print full document contents")
	showCmd.Flags().IntVar(&showEvents, "events", 10, "Number of history events to show (0 = none)")
}
