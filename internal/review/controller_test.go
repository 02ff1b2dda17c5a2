package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/featforge/featforge/internal/types"
)

// mockWriter returns canned drafts and records received feedback
type mockWriter struct {
	writeFunc func(ctx context.Context, input *types.StageInput) (string, error)
	calls     int
	feedbacks []string
}

func (m *mockWriter) Write(ctx context.Context, input *types.StageInput) (string, error) {
	m.calls++
	m.feedbacks = append(m.feedbacks, input.Feedback)
	if m.writeFunc != nil {
		return m.writeFunc(ctx, input)
	}
	return fmt.Sprintf("draft %d", m.calls), nil
}

// mockReviewer approves after a fixed number of rejections
type mockReviewer struct {
	approveAfter int // number of needs_revision verdicts before approving
	calls        int
	reviewFunc   func(ctx context.Context, stage types.Stage, document string) (*types.ReviewResult, error)
}

func (m *mockReviewer) Review(ctx context.Context, stage types.Stage, document string) (*types.ReviewResult, error) {
	m.calls++
	if m.reviewFunc != nil {
		return m.reviewFunc(ctx, stage, document)
	}
	if m.calls <= m.approveAfter {
		return &types.ReviewResult{
			Status:   types.ReviewNeedsRevision,
			Feedback: fmt.Sprintf("fix issue %d", m.calls),
		}, nil
	}
	return &types.ReviewResult{Status: types.ReviewApproved}, nil
}

func newController(t *testing.T, writer types.Writer, reviewer types.Reviewer, maxRevisions int) *Controller {
	t.Helper()
	c, err := NewController(&Config{Writer: writer, Reviewer: reviewer, MaxRevisions: maxRevisions})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testInput() *types.StageInput {
	return &types.StageInput{
		Feature: &types.Feature{ID: "TS-001", Type: types.TypeNewFeature, Title: "Test"},
		Stage:   types.StageArchitectureDraft,
	}
}

func TestRunApprovesFirstDraft(t *testing.T) {
	writer := &mockWriter{}
	reviewer := &mockReviewer{approveAfter: 0}
	c := newController(t, writer, reviewer, 3)

	result, err := c.Run(context.Background(), testInput(), 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Converged {
		t.Error("expected convergence on first draft")
	}
	if result.Revisions != 0 {
		t.Errorf("expected 0 revisions, got %d", result.Revisions)
	}
	if result.Document != "draft 1" {
		t.Errorf("unexpected document: %q", result.Document)
	}
}

func TestRunConvergesAfterRevisions(t *testing.T) {
	writer := &mockWriter{}
	reviewer := &mockReviewer{approveAfter: 2}
	c := newController(t, writer, reviewer, 3)

	result, err := c.Run(context.Background(), testInput(), 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Converged {
		t.Error("expected convergence")
	}
	if result.Revisions != 2 {
		t.Errorf("expected 2 revisions, got %d", result.Revisions)
	}
	if len(result.FeedbackHistory) != 2 {
		t.Errorf("expected 2 feedback entries, got %d", len(result.FeedbackHistory))
	}

	// The second draft must have seen the first feedback
	if !strings.Contains(writer.feedbacks[1], "fix issue 1") {
		t.Errorf("second draft missing first feedback: %q", writer.feedbacks[1])
	}
	// The third draft must carry the full history
	if !strings.Contains(writer.feedbacks[2], "fix issue 1") || !strings.Contains(writer.feedbacks[2], "fix issue 2") {
		t.Errorf("third draft missing accumulated feedback: %q", writer.feedbacks[2])
	}
}

func TestRunStopsAtRevisionLimit(t *testing.T) {
	writer := &mockWriter{}
	reviewer := &mockReviewer{approveAfter: 100} // never approves
	c := newController(t, writer, reviewer, 3)

	result, err := c.Run(context.Background(), testInput(), 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Converged {
		t.Error("expected non-convergence")
	}
	if !result.LimitExceeded() {
		t.Error("expected limit exceeded")
	}
	if result.Revisions != 3 {
		t.Errorf("expected 3 revisions, got %d", result.Revisions)
	}
	if writer.calls != 3 {
		t.Errorf("expected 3 drafts, got %d", writer.calls)
	}
	if len(result.FeedbackHistory) != 3 {
		t.Errorf("expected full feedback history, got %d entries", len(result.FeedbackHistory))
	}
}

func TestRunPriorRevisionsCountAgainstLimit(t *testing.T) {
	writer := &mockWriter{}
	reviewer := &mockReviewer{approveAfter: 100}
	c := newController(t, writer, reviewer, 3)

	// Two revisions already consumed before a crash: only one draft left
	result, err := c.Run(context.Background(), testInput(), 2)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Converged {
		t.Error("expected non-convergence")
	}
	if result.Revisions != 1 {
		t.Errorf("expected 1 revision this run, got %d", result.Revisions)
	}
	if writer.calls != 1 {
		t.Errorf("expected 1 draft, got %d", writer.calls)
	}
}

func TestRunSeedFeedbackReachesWriter(t *testing.T) {
	writer := &mockWriter{}
	reviewer := &mockReviewer{approveAfter: 0}
	c := newController(t, writer, reviewer, 3)

	input := testInput()
	input.Feedback = "human: tighten the scope"
	if _, err := c.Run(context.Background(), input, 0); err != nil {
		t.Fatal(err)
	}
	if writer.feedbacks[0] != "human: tighten the scope" {
		t.Errorf("seed feedback not passed to writer: %q", writer.feedbacks[0])
	}
}

func TestRunWriterFailureWrapped(t *testing.T) {
	writer := &mockWriter{writeFunc: func(ctx context.Context, input *types.StageInput) (string, error) {
		return "", errors.New("model exploded")
	}}
	c := newController(t, writer, &mockReviewer{}, 3)

	_, err := c.Run(context.Background(), testInput(), 0)
	var stageErr *types.StageExecutionError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageExecutionError, got %v", err)
	}
	if stageErr.Stage != types.StageArchitectureDraft {
		t.Errorf("wrong stage in error: %s", stageErr.Stage)
	}
}

func TestRunReviewerFailureWrapped(t *testing.T) {
	reviewer := &mockReviewer{reviewFunc: func(ctx context.Context, stage types.Stage, document string) (*types.ReviewResult, error) {
		return nil, errors.New("review timed out")
	}}
	c := newController(t, &mockWriter{}, reviewer, 3)

	_, err := c.Run(context.Background(), testInput(), 0)
	var stageErr *types.StageExecutionError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageExecutionError, got %v", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newController(t, &mockWriter{}, &mockReviewer{approveAfter: 100}, 3)
	_, err := c.Run(ctx, testInput(), 0)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
