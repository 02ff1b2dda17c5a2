package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/featforge/featforge/internal/types"
)

func TestSaveAndGetPipelineState(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	feature := createTestFeature(t, store, "Piped")

	state := &types.PipelineState{
		FeatureID:    feature.ID,
		CurrentStage: types.StageArchitectureDraft,
		RevisionCounts: map[types.Stage]int{
			types.StageArchitectureReview: 1,
		},
		Approvals: map[types.Stage]types.ApprovalStatus{
			types.StagePlanReview: types.ApprovalPending,
		},
		History: []types.StageTransition{
			{ID: "t1", From: types.StageSelected, To: types.StageArchitectureDraft, Timestamp: time.Now().UTC()},
		},
		StartedAt: time.Now().UTC(),
	}
	if err := store.SavePipelineState(ctx, state); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	got, err := store.GetPipelineState(ctx, feature.ID)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if got.CurrentStage != types.StageArchitectureDraft {
		t.Errorf("stage not preserved: %s", got.CurrentStage)
	}
	if got.RevisionCounts[types.StageArchitectureReview] != 1 {
		t.Errorf("revision counts not preserved: %v", got.RevisionCounts)
	}
	if got.Approvals[types.StagePlanReview] != types.ApprovalPending {
		t.Errorf("approvals not preserved: %v", got.Approvals)
	}
	if len(got.History) != 1 || got.History[0].To != types.StageArchitectureDraft {
		t.Errorf("history not preserved: %v", got.History)
	}

	// Upsert replaces the checkpoint
	state.CurrentStage = types.StagePlanDraft
	if err := store.SavePipelineState(ctx, state); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetPipelineState(ctx, feature.ID)
	if got.CurrentStage != types.StagePlanDraft {
		t.Errorf("upsert did not advance stage: %s", got.CurrentStage)
	}
}

func TestGetPipelineStateMissing(t *testing.T) {
	store := newTestStorage(t)
	feature := createTestFeature(t, store, "No pipeline")

	_, err := store.GetPipelineState(context.Background(), feature.ID)
	var nfErr *types.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestArchivePipelineState(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	feature := createTestFeature(t, store, "Finished")

	state := &types.PipelineState{
		FeatureID:    feature.ID,
		CurrentStage: types.StageValidated,
		StartedAt:    time.Now().UTC(),
	}
	if err := store.SavePipelineState(ctx, state); err != nil {
		t.Fatal(err)
	}
	if err := store.ArchivePipelineState(ctx, feature.ID); err != nil {
		t.Fatalf("failed to archive: %v", err)
	}

	// Archived checkpoints are invisible to resume
	_, err := store.GetPipelineState(ctx, feature.ID)
	var nfErr *types.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError after archive, got %v", err)
	}

	// Archiving twice fails
	err = store.ArchivePipelineState(ctx, feature.ID)
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError on double archive, got %v", err)
	}
}

func TestAcquirePipelineExclusivity(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	feature := createTestFeature(t, store, "Contended")

	if err := store.AcquirePipeline(ctx, feature.ID, "owner-a"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// The claim holds before any checkpoint is saved
	if err := store.AcquirePipeline(ctx, feature.ID, "owner-b"); err == nil {
		t.Fatal("expected acquire to fail against a bare claim")
	}

	// ...and survives the first checkpoint write unchanged
	state := &types.PipelineState{
		FeatureID:    feature.ID,
		CurrentStage: types.StageSelected,
		StartedAt:    time.Now().UTC(),
	}
	if err := store.SavePipelineState(ctx, state); err != nil {
		t.Fatal(err)
	}
	if err := store.AcquirePipeline(ctx, feature.ID, "owner-b"); err == nil {
		t.Fatal("expected second acquire to fail while lock is held")
	}

	// Re-acquire by the holder is allowed
	if err := store.AcquirePipeline(ctx, feature.ID, "owner-a"); err != nil {
		t.Fatalf("re-acquire by holder failed: %v", err)
	}

	if err := store.ReleasePipeline(ctx, feature.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := store.AcquirePipeline(ctx, feature.ID, "owner-b"); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
}

func TestAcquirePipelineClaimIsResumable(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	feature := createTestFeature(t, store, "Claimed")

	// A bare claim (crash before the first checkpoint) loads as a
	// pipeline still at the entry stage.
	if err := store.AcquirePipeline(ctx, feature.ID, "owner-a"); err != nil {
		t.Fatal(err)
	}
	state, err := store.GetPipelineState(ctx, feature.ID)
	if err != nil {
		t.Fatalf("claim row not loadable: %v", err)
	}
	if state.CurrentStage != types.StageSelected {
		t.Errorf("expected claim at selected, got %s", state.CurrentStage)
	}
}

func TestAcquirePipelineUnknownFeature(t *testing.T) {
	store := newTestStorage(t)

	err := store.AcquirePipeline(context.Background(), "TS-404", "owner")
	var nfErr *types.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
