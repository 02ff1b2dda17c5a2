package types

import (
	"errors"
	"testing"
	"time"
)

func TestFeatureValidate(t *testing.T) {
	now := time.Now()
	valid := &Feature{
		ID:        "PJ-001",
		Type:      TypeNewFeature,
		Status:    StatusRequested,
		Title:     "Player Movement",
		CreatedAt: now,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid feature, got: %v", err)
	}

	missing := &Feature{Type: TypeNewFeature, Status: StatusRequested}
	var verr *ValidationError
	if err := missing.Validate(); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for missing title, got: %v", err)
	}

	badType := &Feature{Title: "x", Type: "epic", Status: StatusRequested}
	if err := badType.Validate(); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for bad type, got: %v", err)
	}

	superseded := &Feature{Title: "x", Type: TypeNewFeature, Status: StatusSuperseded, CreatedAt: now}
	if err := superseded.Validate(); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for superseded without timestamp, got: %v", err)
	}
}

func TestFeatureValidateMonotonicMilestones(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	approved := created.Add(time.Hour)
	implemented := approved.Add(time.Hour)

	f := &Feature{
		ID:            "PJ-001",
		Type:          TypeNewFeature,
		Status:        StatusAwaitingValidation,
		Title:         "Player Movement",
		CreatedAt:     created,
		FIPApprovedAt: &approved,
		ImplementedAt: &implemented,
	}
	if err := f.Validate(); err != nil {
		t.Errorf("expected monotonic milestones to validate, got: %v", err)
	}

	// implemented before approval must fail
	backwards := created.Add(-time.Hour)
	f.ImplementedAt = &backwards
	if err := f.Validate(); err == nil {
		t.Error("expected error for non-monotonic milestones")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusRequested, StatusInReview, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusValidated, false},
		{StatusInReview, StatusAwaitingImplementation, true},
		{StatusInReview, StatusRequested, false},
		{StatusAwaitingImplementation, StatusAwaitingValidation, true},
		{StatusAwaitingValidation, StatusValidated, true},
		{StatusValidated, StatusSuperseded, true},
		{StatusValidated, StatusCancelled, false},
		{StatusSuperseded, StatusRequested, false},
		{StatusCancelled, StatusInReview, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSuperseded, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if len(s.ValidTransitions()) != 0 {
			t.Errorf("%s should have no successors", s)
		}
	}
	if StatusValidated.IsTerminal() {
		t.Error("validated is not terminal (superseded is reachable)")
	}
}

func TestStageTransitions(t *testing.T) {
	// The happy path must chain through every stage in order.
	order := []Stage{
		StageSelected, StageArchitectureDraft, StageArchitectureReview,
		StagePlanDraft, StagePlanReview, StageCodeDraft, StageCodeReview,
		StageHumanFinalApproval, StageValidated,
	}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].CanTransitionTo(order[i+1]) {
			t.Errorf("%s should advance to %s", order[i], order[i+1])
		}
	}

	// Cancellation is reachable from every in-flight stage.
	for _, s := range order[:len(order)-1] {
		if !s.CanTransitionTo(StageCancelled) {
			t.Errorf("%s should be cancellable", s)
		}
	}

	// Skipping stages is illegal.
	if StageSelected.CanTransitionTo(StageCodeDraft) {
		t.Error("selected must not skip to code_draft")
	}
	if StageArchitectureDraft.CanTransitionTo(StagePlanDraft) {
		t.Error("architecture_draft must not skip its review")
	}

	// Superseded is reachable only from validated.
	if !StageValidated.CanTransitionTo(StageSuperseded) {
		t.Error("validated should supersede")
	}
	if StageCodeReview.CanTransitionTo(StageSuperseded) {
		t.Error("code_review must not supersede")
	}
}

func TestStageDocumentType(t *testing.T) {
	tests := []struct {
		stage Stage
		doc   DocumentType
		ok    bool
	}{
		{StageArchitectureDraft, DocArchitecture, true},
		{StagePlanDraft, DocImplementationPlan, true},
		{StageCodeDraft, DocCodeChange, true},
		{StageArchitectureReview, "", false},
		{StageHumanFinalApproval, "", false},
	}
	for _, tt := range tests {
		doc, ok := tt.stage.DocumentType()
		if ok != tt.ok || doc != tt.doc {
			t.Errorf("%s: got (%s, %v), want (%s, %v)", tt.stage, doc, ok, tt.doc, tt.ok)
		}
	}
}

func TestPipelineStateValidate(t *testing.T) {
	state := &PipelineState{
		FeatureID:      "PJ-001",
		CurrentStage:   StageArchitectureReview,
		RevisionCounts: map[Stage]int{StageArchitectureReview: 2},
		Approvals:      map[Stage]ApprovalStatus{StageArchitectureReview: ApprovalPending},
	}
	if err := state.Validate(); err != nil {
		t.Errorf("expected valid state, got: %v", err)
	}

	state.RevisionCounts[StageArchitectureReview] = -1
	if err := state.Validate(); err == nil {
		t.Error("expected error for negative revision count")
	}
	state.RevisionCounts[StageArchitectureReview] = 0

	state.CurrentStage = "shipping"
	if err := state.Validate(); err == nil {
		t.Error("expected error for unknown stage")
	}
}
