package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/ai"
	"github.com/featforge/featforge/internal/gate"
	"github.com/featforge/featforge/internal/pipeline"
	"github.com/featforge/featforge/internal/review"
	"github.com/featforge/featforge/internal/types"
)

var (
	advanceAuto   bool
	advanceCancel bool
)

var advanceCmd = &cobra.Command{
	Use:   "advance <feature-id>",
	Short: "Run a feature through its implementation pipeline",
	Long: `Run a feature through the staged pipeline: architecture design,
implementation plan, code change, and final validation. Each stage is
drafted and reviewed automatically, then presented at an interactive
approval gate.

If the feature already has a checkpoint (a previous run was interrupted
or stopped at a gate), the pipeline resumes where it left off.

With --auto every gate is approved without prompting; an exhausted
revision budget then fails the run instead of waiting for a human.

With --cancel the feature's pipeline is aborted and the feature is
cancelled.

Requires ANTHROPIC_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		featureID := args[0]

		// Resume when a live checkpoint exists, otherwise start fresh
		_, stateErr := store.GetPipelineState(ctx, featureID)
		resuming := stateErr == nil
		if stateErr != nil {
			var notFound *types.NotFoundError
			if !errors.As(stateErr, &notFound) {
				return stateErr
			}
		}

		if advanceCancel {
			if !resuming {
				return fmt.Errorf("no active pipeline for %s", featureID)
			}
			if err := pipeline.Cancel(ctx, store, featureID, actor()); err != nil {
				return err
			}
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s Cancelled %s\n", yellow("✗"), featureID)
			return nil
		}

		var approvalGate gate.Gate
		if advanceAuto {
			approvalGate = &unattendedGate{inner: gate.NewAutoGate()}
		} else {
			interactive, err := gate.NewInteractiveGate()
			if err != nil {
				return fmt.Errorf("failed to open approval prompt: %w", err)
			}
			approvalGate = interactive
		}

		orch, err := buildOrchestrator(approvalGate)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if resuming {
			fmt.Printf("%s Resuming pipeline for %s\n\n", gray("→"), featureID)
			err = orch.Resume(ctx, featureID)
		} else {
			fmt.Printf("%s Starting pipeline for %s\n\n", gray("→"), featureID)
			err = orch.Start(ctx, featureID)
		}
		if err != nil {
			return err
		}

		feature, err := store.GetFeature(ctx, featureID)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		switch feature.Status {
		case types.StatusValidated:
			fmt.Printf("\n%s %s validated\n", green("✓"), featureID)
		case types.StatusCancelled:
			fmt.Printf("\n%s %s cancelled\n", yellow("✗"), featureID)
		default:
			fmt.Printf("\n%s %s stopped at %s; run 'featforge advance %s' to continue\n",
				gray("→"), featureID, feature.Status, featureID)
		}
		return nil
	},
}

// buildOrchestrator wires the model engine, review loop, and gate
func buildOrchestrator(approvalGate gate.Gate) (*pipeline.Orchestrator, error) {
	engine, err := ai.NewEngine(&ai.Config{Model: projectCfg.Model})
	if err != nil {
		return nil, err
	}

	loop, err := review.NewController(&review.Config{
		Writer:       ai.NewStageWriter(engine, projectCfg.Model),
		Reviewer:     ai.NewStageReviewer(engine, projectCfg.Model),
		MaxRevisions: projectCfg.MaxRevisions,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.NewOrchestrator(&pipeline.Config{
		Store: store,
		Loop:  loop,
		Gate:  approvalGate,
		Actor: actor(),
	})
}

// unattendedGate approves every gate but refuses to absorb an exhausted
// revision budget: unattended runs must fail loudly, not silently cancel
// or silently accept a draft the reviewer kept rejecting.
type unattendedGate struct {
	inner gate.Gate
}

func (g *unattendedGate) RequestApproval(ctx context.Context, req *gate.ApprovalRequest) (*gate.Decision, error) {
	return g.inner.RequestApproval(ctx, req)
}

func (g *unattendedGate) Escalate(ctx context.Context, req *gate.EscalationRequest) (*gate.EscalationDecision, error) {
	return nil, &types.RevisionLimitError{
		Stage:    string(req.Stage),
		Limit:    projectCfg.MaxRevisions,
		Feedback: req.FeedbackHistory,
	}
}

func init() {
	rootCmd.AddCommand(advanceCmd)
	advanceCmd.Flags().BoolVar(&advanceAuto, "auto", false, "Approve all gates without prompting")
	advanceCmd.Flags().BoolVar(&advanceCancel, "cancel", false, "Abort the feature's pipeline")
}
