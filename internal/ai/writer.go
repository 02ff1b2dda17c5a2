package ai

import (
	"context"
	"fmt"

	"github.com/featforge/featforge/internal/types"
)

// StageWriter drafts pipeline documents (architecture, implementation
// plan, code change) for a feature.
type StageWriter struct {
	caller ModelCaller
	model  string
}

var _ types.Writer = (*StageWriter)(nil)

// NewStageWriter creates a writer backed by the given model caller
func NewStageWriter(caller ModelCaller, model string) *StageWriter {
	if model == "" {
		model = GetDefaultModel()
	}
	return &StageWriter{caller: caller, model: model}
}

// Write drafts the document for the given stage. The returned string is
// the raw document content; persisting it is the caller's job.
func (w *StageWriter) Write(ctx context.Context, input *types.StageInput) (string, error) {
	prompt, err := buildStagePrompt(input)
	if err != nil {
		return "", err
	}

	operation := fmt.Sprintf("write_%s", input.Stage)
	document, err := w.caller.CallModel(ctx, prompt, operation, w.model, 8192)
	if err != nil {
		return "", fmt.Errorf("drafting %s for %s failed: %w", input.Stage, input.Feature.ID, err)
	}
	if document == "" {
		return "", fmt.Errorf("drafting %s for %s produced an empty document", input.Stage, input.Feature.ID)
	}
	return document, nil
}

func buildStagePrompt(input *types.StageInput) (string, error) {
	var task string
	switch input.Stage {
	case types.StageArchitectureDraft:
		task = `Write an architecture document for this feature. Cover:
1. How the feature fits into the existing game systems
2. New components/modules and their responsibilities
3. Data structures and ownership
4. Interactions with existing features (list feature IDs where relevant)
5. Technical risks and how the design mitigates them

Format as markdown with clear section headings.`
	case types.StagePlanDraft:
		task = `Write an implementation plan (FIP) for this feature based on the
approved architecture. Cover:
1. Ordered implementation steps, each small enough to verify independently
2. Files/modules to create or modify per step
3. Test strategy per step
4. Rollback considerations

Format as markdown with a numbered step list.`
	case types.StageCodeDraft:
		task = `Write the code change for this feature following the approved
implementation plan. For each file, give the complete new content or a
clearly marked diff. Include tests. Format as markdown with one section
per file.`
	default:
		return "", fmt.Errorf("stage %s does not produce a document", input.Stage)
	}

	prompt := fmt.Sprintf(`You are implementing a game feature through a staged pipeline.

FEATURE:
ID: %s
Type: %s
Title: %s
Description: %s

PRIOR CONTEXT:
%s
`, input.Feature.ID, input.Feature.Type, input.Feature.Title, input.Feature.Description,
		orPlaceholder(input.Context, "(none — this is the first stage)"))

	if input.Feedback != "" {
		prompt += fmt.Sprintf(`
REVIEWER FEEDBACK ON THE PREVIOUS DRAFT:
%s

Address every feedback point in this revision.
`, input.Feedback)
	}

	prompt += "\nTASK:\n" + task
	return prompt, nil
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
