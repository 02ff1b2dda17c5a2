package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/featforge/featforge/internal/types"
)

func TestAddRelationSelfReference(t *testing.T) {
	store := newTestStorage(t)
	feature := createTestFeature(t, store, "Loner")

	err := store.AddRelation(context.Background(), feature.ID, types.RelBuildsOn, feature.ID, "tester")
	var selfErr *types.SelfReferenceError
	if !errors.As(err, &selfErr) {
		t.Fatalf("expected SelfReferenceError, got %v", err)
	}
}

func TestAddRelationMissingEndpoint(t *testing.T) {
	store := newTestStorage(t)
	feature := createTestFeature(t, store, "Half an edge")

	err := store.AddRelation(context.Background(), feature.ID, types.RelFixes, "TS-404", "tester")
	var nfErr *types.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSupersedesExclusivity(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	old := createTestFeature(t, store, "Old approach")
	a := createTestFeature(t, store, "Replacement A")
	b := createTestFeature(t, store, "Replacement B")

	if err := store.AddRelation(ctx, a.ID, types.RelSupersedes, old.ID, "tester"); err != nil {
		t.Fatalf("first supersedes edge failed: %v", err)
	}

	err := store.AddRelation(ctx, b.ID, types.RelSupersedes, old.ID, "tester")
	var exclErr *types.ExclusivityError
	if !errors.As(err, &exclErr) {
		t.Fatalf("expected ExclusivityError, got %v", err)
	}
	if exclErr.SupersededBy != a.ID {
		t.Errorf("expected superseded by %s, got %s", a.ID, exclErr.SupersededBy)
	}

	// B may still supersede something else
	other := createTestFeature(t, store, "Another target")
	if err := store.AddRelation(ctx, b.ID, types.RelSupersedes, other.ID, "tester"); err != nil {
		t.Errorf("unrelated supersedes edge rejected: %v", err)
	}
}

func TestGetRelationsBothDirections(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := createTestFeature(t, store, "Base")
	ext := createTestFeature(t, store, "Extension")
	fix := createTestFeature(t, store, "Fix")

	if err := store.AddRelation(ctx, ext.ID, types.RelBuildsOn, base.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddRelation(ctx, base.ID, types.RelFixes, fix.ID, "tester"); err != nil {
		t.Fatal(err)
	}

	rels, err := store.GetRelations(ctx, base.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected both incoming and outgoing edges, got %d", len(rels))
	}
}
