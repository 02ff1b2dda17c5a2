package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/featforge/featforge/internal/types"
)

func TestAddDocumentAppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	feature := createTestFeature(t, store, "Documented")

	first, err := store.AddDocument(ctx, feature.ID, types.DocArchitecture, "draft one", "writer")
	if err != nil {
		t.Fatalf("failed to add document: %v", err)
	}
	second, err := store.AddDocument(ctx, feature.ID, types.DocArchitecture, "draft two", "writer")
	if err != nil {
		t.Fatalf("failed to add document: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected increasing document IDs, got %d then %d", first.ID, second.ID)
	}

	// Current document is the latest of its type
	current, err := store.GetCurrentDocument(ctx, feature.ID, types.DocArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if current == nil || current.Content != "draft two" {
		t.Errorf("expected latest draft as current, got %+v", current)
	}

	// Both versions remain
	docs, err := store.GetDocuments(ctx, feature.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Content != "draft one" {
		t.Errorf("documents not ordered oldest first: %s", docs[0].Content)
	}
}

func TestGetCurrentDocumentMissing(t *testing.T) {
	store := newTestStorage(t)
	feature := createTestFeature(t, store, "Empty")

	doc, err := store.GetCurrentDocument(context.Background(), feature.ID, types.DocReview)
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Errorf("expected nil for missing document, got %+v", doc)
	}
}

func TestAddDocumentUnknownFeature(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.AddDocument(context.Background(), "TS-404", types.DocRequest, "content", "writer")
	var nfErr *types.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAddDocumentInvalidType(t *testing.T) {
	store := newTestStorage(t)
	feature := createTestFeature(t, store, "Typed")

	_, err := store.AddDocument(context.Background(), feature.ID, types.DocumentType("scribble"), "x", "writer")
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
