// Package pipeline orchestrates a feature through its staged
// implementation: drafting, automated review, human gates, and ledger
// milestones, with a durable checkpoint after every step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/featforge/featforge/internal/gate"
	"github.com/featforge/featforge/internal/review"
	"github.com/featforge/featforge/internal/storage"
	"github.com/featforge/featforge/internal/types"
)

// Orchestrator drives one feature at a time through the stage machine.
// The ledger write always lands before the checkpoint, so a crash between
// the two replays at most one completed step on resume.
type Orchestrator struct {
	store storage.Storage
	loop  *review.Controller
	gate  gate.Gate
	actor string
	owner string
}

// Config holds orchestrator configuration
type Config struct {
	Store storage.Storage
	Loop  *review.Controller
	Gate  gate.Gate
	Actor string // Recorded on ledger events (default: "pipeline")
}

// NewOrchestrator creates a pipeline orchestrator
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Loop == nil {
		return nil, fmt.Errorf("review controller is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	actor := cfg.Actor
	if actor == "" {
		actor = "pipeline"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Orchestrator{
		store: cfg.Store,
		loop:  cfg.Loop,
		gate:  cfg.Gate,
		actor: actor,
		owner: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}, nil
}

// Start enters a feature into the pipeline and runs it to a stopping
// point. The feature must be in requested status.
func (o *Orchestrator) Start(ctx context.Context, featureID string) error {
	feature, err := o.store.GetFeature(ctx, featureID)
	if err != nil {
		return err
	}
	if feature.Status != types.StatusRequested {
		return &types.InvalidTransitionError{ID: featureID, From: string(feature.Status), To: string(types.StatusInReview)}
	}

	if err := o.store.AcquirePipeline(ctx, featureID, o.owner); err != nil {
		return err
	}
	defer o.store.ReleasePipeline(ctx, featureID)

	now := time.Now().UTC()
	state := &types.PipelineState{
		FeatureID:      featureID,
		CurrentStage:   types.StageSelected,
		RevisionCounts: map[types.Stage]int{},
		Approvals:      map[types.Stage]types.ApprovalStatus{},
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.SavePipelineState(ctx, state); err != nil {
		return err
	}

	return o.run(ctx, state)
}

// Resume continues a previously checkpointed pipeline. Completed work is
// never redone: the run picks up at the checkpointed stage.
func (o *Orchestrator) Resume(ctx context.Context, featureID string) error {
	state, err := o.store.GetPipelineState(ctx, featureID)
	if err != nil {
		return err
	}
	if state.CurrentStage.IsTerminal() {
		return fmt.Errorf("pipeline for %s already finished at %s", featureID, state.CurrentStage)
	}

	if err := o.store.AcquirePipeline(ctx, featureID, o.owner); err != nil {
		return err
	}
	defer o.store.ReleasePipeline(ctx, featureID)

	return o.run(ctx, state)
}

// Cancel aborts a feature's pipeline from any non-terminal stage
func (o *Orchestrator) Cancel(ctx context.Context, featureID string) error {
	return Cancel(ctx, o.store, featureID, o.actor)
}

// Cancel aborts a feature's pipeline without a running orchestrator.
// Needs only the ledger, so a CLI can cancel without model credentials.
func Cancel(ctx context.Context, store storage.Storage, featureID, actor string) error {
	state, err := store.GetPipelineState(ctx, featureID)
	if err != nil {
		return err
	}
	o := &Orchestrator{store: store, actor: actor}
	return o.cancel(ctx, state)
}

// run advances the pipeline until it reaches validated, a terminal
// stage, or an error.
func (o *Orchestrator) run(ctx context.Context, state *types.PipelineState) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline interrupted at %s: %w", state.CurrentStage, err)
		}

		switch {
		case state.CurrentStage == types.StageValidated:
			// Checkpoint no longer needed once validated
			return o.store.ArchivePipelineState(ctx, state.FeatureID)

		case state.CurrentStage.IsTerminal():
			return nil

		default:
			if err := o.advance(ctx, state); err != nil {
				return err
			}
		}
	}
}

// advance performs exactly one pipeline step
func (o *Orchestrator) advance(ctx context.Context, state *types.PipelineState) error {
	switch state.CurrentStage {
	case types.StageSelected:
		// Ledger first, then checkpoint. Guarded so a resume from a bare
		// lock claim (crash before the first checkpoint) repeats safely.
		feature, err := o.store.GetFeature(ctx, state.FeatureID)
		if err != nil {
			return err
		}
		if feature.Status == types.StatusRequested {
			if err := o.store.UpdateStatus(ctx, state.FeatureID, types.StatusInReview, o.actor); err != nil {
				return err
			}
		}
		return o.transition(ctx, state, types.StageArchitectureDraft, "entering pipeline")

	case types.StageArchitectureDraft, types.StagePlanDraft, types.StageCodeDraft:
		return o.runDraftStage(ctx, state, "")

	case types.StageArchitectureReview, types.StagePlanReview, types.StageCodeReview, types.StageHumanFinalApproval:
		return o.runGateStage(ctx, state)

	default:
		return fmt.Errorf("pipeline cannot advance from stage %s", state.CurrentStage)
	}
}

// runDraftStage runs the bounded draft-review loop for the current draft
// stage. seedFeedback carries human guidance (gate rejection or
// escalation override); human feedback never counts against the budget.
func (o *Orchestrator) runDraftStage(ctx context.Context, state *types.PipelineState, seedFeedback string) error {
	stage := state.CurrentStage
	feature, err := o.store.GetFeature(ctx, state.FeatureID)
	if err != nil {
		return err
	}

	stageContext, err := o.buildStageContext(ctx, state.FeatureID, stage)
	if err != nil {
		return err
	}

	result, err := o.loop.Run(ctx, &types.StageInput{
		Feature:  feature,
		Stage:    stage,
		Context:  stageContext,
		Feedback: seedFeedback,
	}, state.RevisionCounts[stage])
	if err != nil {
		var stageErr *types.StageExecutionError
		if !errors.As(err, &stageErr) {
			return err
		}
		// The capability failed even after the engine's retries. That
		// disposition belongs to a human, same as an exhausted budget.
		if err := o.store.SavePipelineState(ctx, state); err != nil {
			return err
		}
		return o.escalate(ctx, state, feature, &review.Result{
			FeedbackHistory: []string{stageErr.Error()},
		})
	}

	state.RevisionCounts[stage] += result.Revisions

	if !result.Converged {
		// Revision budget exhausted: checkpoint the consumed budget, then
		// hand the decision to a human.
		if err := o.store.SavePipelineState(ctx, state); err != nil {
			return err
		}
		return o.escalate(ctx, state, feature, result)
	}

	return o.acceptDraft(ctx, state, result.Document)
}

// acceptDraft persists an approved-by-reviewer draft and moves to the
// matching gate stage.
func (o *Orchestrator) acceptDraft(ctx context.Context, state *types.PipelineState, document string) error {
	stage := state.CurrentStage
	docType, ok := stage.DocumentType()
	if !ok {
		return fmt.Errorf("stage %s produces no document", stage)
	}

	if _, err := o.store.AddDocument(ctx, state.FeatureID, docType, document, o.actor); err != nil {
		return err
	}

	next := gateStageFor(stage)
	state.Approvals[next] = types.ApprovalPending
	return o.transition(ctx, state, next, "draft accepted by reviewer")
}

// escalate asks the human gate what to do about an exhausted budget
func (o *Orchestrator) escalate(ctx context.Context, state *types.PipelineState, feature *types.Feature, result *review.Result) error {
	stage := state.CurrentStage
	decision, err := o.gate.Escalate(ctx, &gate.EscalationRequest{
		Feature:         feature,
		Stage:           stage,
		Document:        result.Document,
		FeedbackHistory: result.FeedbackHistory,
	})
	if err != nil {
		return err
	}

	switch decision.Action {
	case gate.EscalationRetry:
		// Human override grants a fresh budget, steered by their guidance
		state.RevisionCounts[stage] = 0
		if err := o.store.SavePipelineState(ctx, state); err != nil {
			return err
		}
		guidance := decision.Guidance
		if len(result.FeedbackHistory) > 0 {
			guidance = fmt.Sprintf("%s\n\nEarlier reviewer feedback:\n%s",
				decision.Guidance, strings.Join(result.FeedbackHistory, "\n"))
		}
		return o.runDraftStage(ctx, state, guidance)

	case gate.EscalationAbandon:
		// Human accepts the last draft despite the reviewer's objections
		if result.Document == "" {
			return fmt.Errorf("no draft to keep for %s: %s", stage,
				strings.Join(result.FeedbackHistory, "; "))
		}
		return o.acceptDraft(ctx, state, result.Document)

	case gate.EscalationCancel:
		// Keep the rejected draft for audit before tearing down
		if result.Document != "" {
			if docType, ok := stage.DocumentType(); ok {
				if _, err := o.store.AddDocument(ctx, state.FeatureID, docType, result.Document, o.actor); err != nil {
					return err
				}
			}
		}
		return o.cancel(ctx, state)

	default:
		return fmt.Errorf("unknown escalation action: %s", decision.Action)
	}
}

// runGateStage presents the gated document to a human and applies their
// decision.
func (o *Orchestrator) runGateStage(ctx context.Context, state *types.PipelineState) error {
	stage := state.CurrentStage
	feature, err := o.store.GetFeature(ctx, state.FeatureID)
	if err != nil {
		return err
	}

	draftStage := draftStageFor(stage)
	docType, _ := draftStage.DocumentType()
	doc, err := o.store.GetCurrentDocument(ctx, state.FeatureID, docType)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("no %s document to gate for %s", docType, state.FeatureID)
	}

	decision, err := o.gate.RequestApproval(ctx, &gate.ApprovalRequest{
		Feature:   feature,
		Stage:     stage,
		Document:  doc.Content,
		Revisions: state.RevisionCounts[draftStage],
	})
	if err != nil {
		return err
	}

	switch decision.Action {
	case gate.ActionApprove:
		state.Approvals[stage] = types.ApprovalApproved
		if err := o.applyGateMilestone(ctx, state, stage); err != nil {
			return err
		}
		return o.transition(ctx, state, nextStageAfterGate(stage), "approved at gate")

	case gate.ActionRequestChanges:
		// Human-requested revision: redo the draft inline without
		// consuming revision budget, then re-present this gate.
		saved := state.CurrentStage
		state.CurrentStage = draftStage
		if err := o.runDraftStage(ctx, state, decision.Feedback); err != nil {
			state.CurrentStage = saved
			return err
		}
		// acceptDraft restored the gate stage via transition; nothing more
		// to do here. The run loop re-presents the gate.
		return nil

	case gate.ActionCancel:
		state.Approvals[stage] = types.ApprovalCancelled
		return o.cancel(ctx, state)

	default:
		return fmt.Errorf("unknown gate action: %s", decision.Action)
	}
}

// applyGateMilestone maps gate approvals onto ledger status milestones
func (o *Orchestrator) applyGateMilestone(ctx context.Context, state *types.PipelineState, stage types.Stage) error {
	switch stage {
	case types.StagePlanReview:
		// Approved plan means the feature is ready to implement
		return o.store.UpdateStatus(ctx, state.FeatureID, types.StatusAwaitingImplementation, o.actor)
	case types.StageCodeReview:
		// Approved code change means implemented, pending final validation.
		// A redo requested at the final gate re-passes this gate with the
		// milestone already recorded; don't record it twice.
		feature, err := o.store.GetFeature(ctx, state.FeatureID)
		if err != nil {
			return err
		}
		if feature.Status == types.StatusAwaitingValidation {
			return nil
		}
		return o.store.MarkImplemented(ctx, state.FeatureID, "", nil, o.actor)
	case types.StageHumanFinalApproval:
		return o.store.UpdateStatus(ctx, state.FeatureID, types.StatusValidated, o.actor)
	}
	// architecture_review has no ledger milestone
	return nil
}

// cancel moves both the ledger and the pipeline to their cancelled
// states and retires the checkpoint.
func (o *Orchestrator) cancel(ctx context.Context, state *types.PipelineState) error {
	feature, err := o.store.GetFeature(ctx, state.FeatureID)
	if err != nil {
		return err
	}
	if !feature.Status.IsTerminal() {
		if err := o.store.UpdateStatus(ctx, state.FeatureID, types.StatusCancelled, o.actor); err != nil {
			return err
		}
	}
	if err := o.transition(ctx, state, types.StageCancelled, "cancelled"); err != nil {
		return err
	}
	return o.store.ArchivePipelineState(ctx, state.FeatureID)
}

// transition moves the stage machine forward and checkpoints
func (o *Orchestrator) transition(ctx context.Context, state *types.PipelineState, to types.Stage, note string) error {
	from := state.CurrentStage
	if !from.CanTransitionTo(to) {
		return &types.InvalidTransitionError{ID: state.FeatureID, From: string(from), To: string(to)}
	}

	state.CurrentStage = to
	state.History = append(state.History, types.StageTransition{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Note:      note,
	})
	return o.store.SavePipelineState(ctx, state)
}

// buildStageContext assembles the prior artifacts a draft stage builds on
func (o *Orchestrator) buildStageContext(ctx context.Context, featureID string, stage types.Stage) (string, error) {
	var wanted []types.DocumentType
	switch stage {
	case types.StageArchitectureDraft:
		wanted = []types.DocumentType{types.DocRequest}
	case types.StagePlanDraft:
		wanted = []types.DocumentType{types.DocRequest, types.DocArchitecture}
	case types.StageCodeDraft:
		wanted = []types.DocumentType{types.DocArchitecture, types.DocImplementationPlan}
	default:
		return "", nil
	}

	var sections []string
	for _, docType := range wanted {
		doc, err := o.store.GetCurrentDocument(ctx, featureID, docType)
		if err != nil {
			return "", err
		}
		if doc == nil {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", docType, doc.Content))
	}
	return strings.Join(sections, "\n\n"), nil
}

// gateStageFor maps a draft stage to the gate that reviews its output
func gateStageFor(draft types.Stage) types.Stage {
	switch draft {
	case types.StageArchitectureDraft:
		return types.StageArchitectureReview
	case types.StagePlanDraft:
		return types.StagePlanReview
	case types.StageCodeDraft:
		return types.StageCodeReview
	}
	return ""
}

// draftStageFor maps a gate stage back to the draft stage it reviews
func draftStageFor(gateStage types.Stage) types.Stage {
	switch gateStage {
	case types.StageArchitectureReview:
		return types.StageArchitectureDraft
	case types.StagePlanReview:
		return types.StagePlanDraft
	case types.StageCodeReview, types.StageHumanFinalApproval:
		return types.StageCodeDraft
	}
	return ""
}

// nextStageAfterGate maps an approved gate to the following stage
func nextStageAfterGate(gateStage types.Stage) types.Stage {
	switch gateStage {
	case types.StageArchitectureReview:
		return types.StagePlanDraft
	case types.StagePlanReview:
		return types.StageCodeDraft
	case types.StageCodeReview:
		return types.StageHumanFinalApproval
	case types.StageHumanFinalApproval:
		return types.StageValidated
	}
	return ""
}
