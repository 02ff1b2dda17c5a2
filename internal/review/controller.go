// Package review runs the bounded draft-review loop for one pipeline
// stage: the writer drafts, the reviewer judges, and feedback feeds the
// next revision until approval or the revision limit.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/featforge/featforge/internal/types"
)

// DefaultMaxRevisions bounds reviewer-requested revisions per stage
const DefaultMaxRevisions = 3

// Controller drives the write/review loop for draft stages
type Controller struct {
	writer       types.Writer
	reviewer     types.Reviewer
	maxRevisions int
}

// Config holds controller configuration
type Config struct {
	Writer       types.Writer
	Reviewer     types.Reviewer
	MaxRevisions int // Reviewer-requested revisions allowed per stage (default: 3)
}

// NewController creates a review loop controller
func NewController(cfg *Config) (*Controller, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if cfg.Reviewer == nil {
		return nil, fmt.Errorf("reviewer is required")
	}
	maxRevisions := cfg.MaxRevisions
	if maxRevisions == 0 {
		maxRevisions = DefaultMaxRevisions
	}
	if maxRevisions < 0 {
		return nil, fmt.Errorf("MaxRevisions cannot be negative: %d", maxRevisions)
	}
	return &Controller{
		writer:       cfg.Writer,
		reviewer:     cfg.Reviewer,
		maxRevisions: maxRevisions,
	}, nil
}

// Result is the outcome of one stage's draft-review loop
type Result struct {
	Document        string              // Final document (last draft, approved or not)
	Review          *types.ReviewResult // Verdict on the final document
	Revisions       int                 // Reviewer-requested revisions consumed this run
	Converged       bool                // True when the reviewer approved
	FeedbackHistory []string            // Every feedback message, oldest first
}

// Run executes the draft-review loop for a stage. priorRevisions carries
// revisions already consumed in earlier runs of this stage (crash resume),
// so the limit holds across process restarts.
//
// A non-converged result with LimitExceeded means the reviewer kept
// requesting changes past the budget; the caller escalates to a human
// rather than looping forever.
func (c *Controller) Run(ctx context.Context, input *types.StageInput, priorRevisions int) (*Result, error) {
	if priorRevisions < 0 {
		return nil, fmt.Errorf("priorRevisions cannot be negative: %d", priorRevisions)
	}

	result := &Result{}
	revisions := priorRevisions
	feedback := input.Feedback

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("review loop canceled after %d revisions: %w", result.Revisions, err)
		}

		draft, err := c.writer.Write(ctx, &types.StageInput{
			Feature:  input.Feature,
			Stage:    input.Stage,
			Context:  input.Context,
			Feedback: feedback,
		})
		if err != nil {
			return nil, &types.StageExecutionError{Stage: input.Stage, Err: err}
		}
		result.Document = draft

		verdict, err := c.reviewer.Review(ctx, input.Stage, draft)
		if err != nil {
			return nil, &types.StageExecutionError{Stage: input.Stage, Err: err}
		}
		result.Review = verdict

		if verdict.Status == types.ReviewApproved {
			result.Converged = true
			return result, nil
		}

		result.FeedbackHistory = append(result.FeedbackHistory, verdict.Feedback)
		revisions++
		result.Revisions++

		if revisions >= c.maxRevisions {
			// Budget exhausted; surface the accumulated feedback so a
			// human can decide how to proceed.
			return result, nil
		}

		// Feed the full history forward so the writer does not undo
		// earlier fixes while addressing the newest complaint.
		feedback = joinFeedback(result.FeedbackHistory, input.Feedback)
	}
}

// LimitExceeded reports whether a non-converged result ran out of its
// revision budget (as opposed to failing outright).
func (r *Result) LimitExceeded() bool {
	return !r.Converged && r.Review != nil
}

func joinFeedback(history []string, seed string) string {
	var parts []string
	if seed != "" {
		parts = append(parts, seed)
	}
	for i, fb := range history {
		parts = append(parts, fmt.Sprintf("Revision %d feedback: %s", i+1, fb))
	}
	return strings.Join(parts, "\n\n")
}
