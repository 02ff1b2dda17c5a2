package ai

import (
	"context"
	"fmt"

	"github.com/featforge/featforge/internal/types"
)

// reviewResponse is the wire format the reviewer model is asked to emit
type reviewResponse struct {
	Status   string             `json:"status"`   // "approved" or "needs_revision"
	Feedback string             `json:"feedback"` // Required when status is needs_revision
	Scores   map[string]float64 `json:"scores"`   // Per-dimension quality scores (0.0-1.0)
}

// StageReviewer evaluates stage documents and decides whether they are
// ready for the next stage or need another revision pass.
type StageReviewer struct {
	caller ModelCaller
	model  string
}

var _ types.Reviewer = (*StageReviewer)(nil)

// NewStageReviewer creates a reviewer backed by the given model caller
func NewStageReviewer(caller ModelCaller, model string) *StageReviewer {
	if model == "" {
		model = GetDefaultModel()
	}
	return &StageReviewer{caller: caller, model: model}
}

// Review evaluates a document produced at the given draft stage
func (r *StageReviewer) Review(ctx context.Context, stage types.Stage, document string) (*types.ReviewResult, error) {
	prompt := buildReviewPrompt(stage, document)

	operation := fmt.Sprintf("review_%s", stage)
	responseText, err := r.caller.CallModel(ctx, prompt, operation, r.model, 2048)
	if err != nil {
		return nil, fmt.Errorf("reviewing %s document failed: %w", stage, err)
	}

	parseResult := Parse[reviewResponse](responseText, "review response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse review response: %s %s", parseResult.Error, errPreview(responseText))
	}
	response := parseResult.Data

	status := types.ReviewStatus(response.Status)
	if status != types.ReviewApproved && status != types.ReviewNeedsRevision {
		return nil, fmt.Errorf("invalid review status: %q (must be approved or needs_revision)", response.Status)
	}
	if status == types.ReviewNeedsRevision && response.Feedback == "" {
		return nil, fmt.Errorf("review requested revision without feedback")
	}
	for dimension, score := range response.Scores {
		if score < 0.0 || score > 1.0 {
			return nil, fmt.Errorf("invalid score for %s: %.2f (must be 0.0-1.0)", dimension, score)
		}
	}

	return &types.ReviewResult{
		Status:   status,
		Feedback: response.Feedback,
		Scores:   response.Scores,
	}, nil
}

func buildReviewPrompt(stage types.Stage, document string) string {
	var criteria string
	switch stage {
	case types.StageArchitectureDraft:
		criteria = `- Completeness: are all affected systems and data flows covered?
- Soundness: does the design avoid known pitfalls (tight coupling, hidden state)?
- Integration: are interactions with existing features identified?
- Risks: are technical risks named with mitigations?`
	case types.StagePlanDraft:
		criteria = `- Fidelity: does the plan follow the approved architecture?
- Granularity: is every step small enough to verify independently?
- Coverage: does each step name its files and tests?
- Ordering: can the steps be executed in the given order?`
	case types.StageCodeDraft:
		criteria = `- Fidelity: does the change follow the approved plan?
- Correctness: are there bugs, missing error handling, or race conditions?
- Tests: does the change include adequate tests?
- Style: is the code consistent with the conventions it shows?`
	default:
		criteria = `- Completeness, correctness, and internal consistency`
	}

	return fmt.Sprintf(`You are reviewing a document produced at the %s stage of a
feature implementation pipeline.

DOCUMENT:
%s

REVIEW CRITERIA:
%s

TASK:
Decide whether this document is ready for the next stage or needs another
revision. Be specific in feedback: name sections and the concrete change
needed. Approve only when every criterion is met.

OUTPUT FORMAT (JSON only, no markdown):
{
  "status": "approved" | "needs_revision",
  "feedback": "Specific, actionable feedback (required when needs_revision, empty when approved)",
  "scores": {
    "completeness": float (0.0-1.0),
    "soundness": float (0.0-1.0),
    "clarity": float (0.0-1.0)
  }
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		stage, document, criteria)
}
