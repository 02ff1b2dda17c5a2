package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/featforge/featforge/internal/config"
	"github.com/featforge/featforge/internal/storage"
	"github.com/featforge/featforge/internal/types"
)

// withTestProject swaps the command globals for a temp-dir project
func withTestProject(t *testing.T) storage.Storage {
	t.Helper()

	testStore, err := storage.NewStorage(context.Background(), &storage.Config{
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
		Prefix: "TS",
	})
	if err != nil {
		t.Fatal(err)
	}

	originalStore := store
	originalCfg := projectCfg
	store = testStore
	projectCfg = config.Default("Test Project", "TS")
	t.Cleanup(func() {
		store = originalStore
		projectCfg = originalCfg
		_ = testStore.Close()
	})
	return testStore
}

func TestCreateCommandRegistersFeature(t *testing.T) {
	testStore := withTestProject(t)

	createType = string(types.TypeNewFeature)
	createTitle = "Grid inventory"
	createDescription = "Players arrange items on a spatial grid"
	createKeywords = []string{"inventory", "ui"}
	createConfirm = false
	createNoScreening = true

	createCmd.SetContext(context.Background())
	if err := createCmd.RunE(createCmd, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	feature, err := testStore.GetFeature(context.Background(), "TS-001")
	if err != nil {
		t.Fatalf("feature not created: %v", err)
	}
	if feature.Status != types.StatusRequested {
		t.Errorf("expected requested, got %s", feature.Status)
	}
	if len(feature.Keywords) != 2 {
		t.Errorf("keywords not stored: %v", feature.Keywords)
	}

	// The request text is captured as the first document
	doc, err := testStore.GetCurrentDocument(context.Background(), "TS-001", types.DocRequest)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil || doc.Content != createDescription {
		t.Errorf("request document not captured: %+v", doc)
	}
}

func TestCreateCommandRejectsInvalidType(t *testing.T) {
	withTestProject(t)

	createType = "epic"
	createTitle = "Some feature"
	createDescription = "Description"
	createKeywords = nil
	createNoScreening = true

	createCmd.SetContext(context.Background())
	err := createCmd.RunE(createCmd, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if exitCode(err) != 2 {
		t.Errorf("expected exit code 2, got %d", exitCode(err))
	}
}

func TestImplementCommandRecordsCommit(t *testing.T) {
	testStore := withTestProject(t)
	ctx := context.Background()

	feature := &types.Feature{Type: types.TypeNewFeature, Title: "Save slots", Description: "Three save slots"}
	if err := testStore.CreateFeature(ctx, feature, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := testStore.UpdateStatus(ctx, feature.ID, types.StatusInReview, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := testStore.UpdateStatus(ctx, feature.ID, types.StatusAwaitingImplementation, "tester"); err != nil {
		t.Fatal(err)
	}

	implementCommit = "abc1234"
	implementFiles = []string{"src/save.lua"}
	implementCmd.SetContext(ctx)
	if err := implementCmd.RunE(implementCmd, []string{feature.ID}); err != nil {
		t.Fatalf("implement failed: %v", err)
	}

	got, err := testStore.GetFeature(ctx, feature.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusAwaitingValidation {
		t.Errorf("expected awaiting_validation, got %s", got.Status)
	}
	if got.CommitHash != "abc1234" {
		t.Errorf("commit hash not recorded: %q", got.CommitHash)
	}
}
