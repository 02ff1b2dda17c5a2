package types

import (
	"context"
	"fmt"
	"time"
)

// Stage represents one state of the implementation pipeline state machine
type Stage string

const (
	StageSelected           Stage = "selected"
	StageArchitectureDraft  Stage = "architecture_draft"
	StageArchitectureReview Stage = "architecture_review"
	StagePlanDraft          Stage = "plan_draft"
	StagePlanReview         Stage = "plan_review"
	StageCodeDraft          Stage = "code_draft"
	StageCodeReview         Stage = "code_review"
	StageHumanFinalApproval Stage = "human_final_approval"
	StageValidated          Stage = "validated"
	StageCancelled          Stage = "cancelled"
	StageSuperseded         Stage = "superseded"
)

// IsValid checks if the stage value is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageSelected, StageArchitectureDraft, StageArchitectureReview,
		StagePlanDraft, StagePlanReview, StageCodeDraft, StageCodeReview,
		StageHumanFinalApproval, StageValidated, StageCancelled, StageSuperseded:
		return true
	}
	return false
}

// IsTerminal reports whether the pipeline is finished at this stage.
func (s Stage) IsTerminal() bool {
	return s == StageCancelled || s == StageSuperseded
}

// ValidTransitions defines the valid transitions of the pipeline state machine.
//
// State Machine Diagram:
//
//	selected → architecture_draft → architecture_review → plan_draft → plan_review
//	    → code_draft → code_review → human_final_approval → validated → superseded
//
// Cancelled is reachable from every stage except validated and superseded.
// Superseded is reachable only from validated.
func (s Stage) ValidTransitions() []Stage {
	switch s {
	case StageSelected:
		return []Stage{StageArchitectureDraft, StageCancelled}
	case StageArchitectureDraft:
		return []Stage{StageArchitectureReview, StageCancelled}
	case StageArchitectureReview:
		return []Stage{StagePlanDraft, StageCancelled}
	case StagePlanDraft:
		return []Stage{StagePlanReview, StageCancelled}
	case StagePlanReview:
		return []Stage{StageCodeDraft, StageCancelled}
	case StageCodeDraft:
		return []Stage{StageCodeReview, StageCancelled}
	case StageCodeReview:
		return []Stage{StageHumanFinalApproval, StageCancelled}
	case StageHumanFinalApproval:
		return []Stage{StageValidated, StageCancelled}
	case StageValidated:
		return []Stage{StageSuperseded}
	case StageCancelled, StageSuperseded:
		return []Stage{} // Terminal
	default:
		return []Stage{}
	}
}

// CanTransitionTo checks if a transition from this stage to the target is valid
func (s Stage) CanTransitionTo(target Stage) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// DocumentType maps a draft stage to the artifact type it produces.
// Review stages and gates produce no ledger artifact of their own.
func (s Stage) DocumentType() (DocumentType, bool) {
	switch s {
	case StageArchitectureDraft:
		return DocArchitecture, true
	case StagePlanDraft:
		return DocImplementationPlan, true
	case StageCodeDraft:
		return DocCodeChange, true
	}
	return "", false
}

// ApprovalStatus records the human gate disposition for a stage
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// IsValid checks if the approval status value is valid
func (a ApprovalStatus) IsValid() bool {
	switch a {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalCancelled:
		return true
	}
	return false
}

// StageTransition is one entry in the pipeline history
type StageTransition struct {
	ID        string    `json:"id"` // uuid
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// PipelineState is the orchestrator checkpoint for one feature's pipeline
// run. It is owned exclusively by the pipeline orchestrator: created when a
// feature enters the pipeline, mutated only by the orchestrator, archived on
// terminal status.
type PipelineState struct {
	FeatureID    string `json:"feature_id"`
	CurrentStage Stage  `json:"current_stage"`

	// RevisionCounts is keyed by the draft stage: each draft/review pair
	// shares one counter, counting the reviewer's rejections of that draft.
	RevisionCounts map[Stage]int            `json:"revision_counts"`
	Approvals      map[Stage]ApprovalStatus `json:"approvals"`
	History        []StageTransition        `json:"history"`
	StartedAt      time.Time                `json:"started_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// Validate checks if the pipeline state has valid field values
func (p *PipelineState) Validate() error {
	if p.FeatureID == "" {
		return &ValidationError{Field: "feature_id", Reason: "feature_id is required"}
	}
	if !p.CurrentStage.IsValid() {
		return &ValidationError{Field: "current_stage", Reason: fmt.Sprintf("invalid stage: %s", p.CurrentStage)}
	}
	for stage, count := range p.RevisionCounts {
		if !stage.IsValid() {
			return &ValidationError{Field: "revision_counts", Reason: fmt.Sprintf("invalid stage key: %s", stage)}
		}
		if count < 0 {
			return &ValidationError{Field: "revision_counts", Reason: fmt.Sprintf("revision count for %s cannot be negative", stage)}
		}
	}
	for stage, approval := range p.Approvals {
		if !stage.IsValid() {
			return &ValidationError{Field: "approvals", Reason: fmt.Sprintf("invalid stage key: %s", stage)}
		}
		if !approval.IsValid() {
			return &ValidationError{Field: "approvals", Reason: fmt.Sprintf("invalid approval status: %s", approval)}
		}
	}
	return nil
}

// StageInput is the input handed to the writer capability for one stage
type StageInput struct {
	Feature  *Feature
	Stage    Stage
	Context  string // prior-stage artifacts and project context
	Feedback string // accumulated reviewer/human feedback, empty on first pass
}

// ReviewStatus is the reviewer capability's verdict on a document
type ReviewStatus string

const (
	ReviewApproved      ReviewStatus = "approved"
	ReviewNeedsRevision ReviewStatus = "needs_revision"
)

// ReviewResult is the normalized output of the reviewer capability
type ReviewResult struct {
	Status   ReviewStatus       `json:"status"`
	Feedback string             `json:"feedback"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

// Writer produces a document for one pipeline stage. Implementations must
// be idempotent-safe to retry.
type Writer interface {
	Write(ctx context.Context, input *StageInput) (string, error)
}

// Reviewer evaluates a stage document and reports whether it is acceptable
// or needs another revision pass.
type Reviewer interface {
	Review(ctx context.Context, stage Stage, document string) (*ReviewResult, error)
}

// SimilarFeature is one relationship candidate returned by the resolver
type SimilarFeature struct {
	FeatureID  string       `json:"feature_id"`
	Relation   RelationType `json:"relation_type"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
}

// Resolver classifies a candidate feature description against existing
// features. It is a pure query and performs no writes. Results are ordered
// by confidence descending.
type Resolver interface {
	FindSimilar(ctx context.Context, description string) ([]SimilarFeature, error)
}
