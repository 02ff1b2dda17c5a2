package ai

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/featforge/featforge/internal/storage"
	"github.com/featforge/featforge/internal/types"
)

// maxComparisonBatch caps how many existing features are sent to the
// model in one screening call.
const maxComparisonBatch = 50

// similarityResult is one comparison in the model's screening response
type similarityResult struct {
	FeatureID  string  `json:"feature_id"`
	Relation   string  `json:"relation_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// similarityResponse is the wire format of the screening response
type similarityResponse struct {
	Results []similarityResult `json:"results"`
}

// SimilarityResolver screens a candidate feature description against the
// existing ledger in a single batched model call. It performs no writes;
// acting on its suggestions is the caller's decision.
type SimilarityResolver struct {
	caller ModelCaller
	store  storage.Storage
	model  string
}

var _ types.Resolver = (*SimilarityResolver)(nil)

// NewSimilarityResolver creates a resolver using the simple-task model tier
func NewSimilarityResolver(caller ModelCaller, store storage.Storage, model string) *SimilarityResolver {
	if model == "" {
		model = GetSimpleTaskModel()
	}
	return &SimilarityResolver{caller: caller, store: store, model: model}
}

// FindSimilar classifies the candidate description against existing
// features. Results are ordered by confidence descending; features the
// model found unrelated are omitted.
func (r *SimilarityResolver) FindSimilar(ctx context.Context, description string) ([]types.SimilarFeature, error) {
	existing, err := r.store.QueryFeatures(ctx, types.FeatureFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing features: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}

	// Screen the most recent features when the ledger is large
	if len(existing) > maxComparisonBatch {
		existing = existing[len(existing)-maxComparisonBatch:]
	}

	prompt := buildSimilarityPrompt(description, existing)

	// Each result needs ~100 tokens, plus overhead
	maxTokens := len(existing)*150 + 200
	if maxTokens < 1000 {
		maxTokens = 1000
	}
	if maxTokens > 4000 {
		maxTokens = 4000
	}

	responseText, err := r.caller.CallModel(ctx, prompt, "similarity_screening", r.model, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("similarity screening failed: %w", err)
	}

	parseResult := Parse[similarityResponse](responseText, "similarity screening response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse similarity response: %s %s", parseResult.Error, errPreview(responseText))
	}

	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f.ID] = true
	}

	var matches []types.SimilarFeature
	for i, result := range parseResult.Data.Results {
		if result.Confidence < 0.0 || result.Confidence > 1.0 {
			return nil, fmt.Errorf("invalid confidence score in result %d: %.2f (must be 0.0-1.0)", i, result.Confidence)
		}
		if !known[result.FeatureID] {
			log.Printf("[WARN] similarity result %d references unknown feature ID: %s", i, result.FeatureID)
			continue
		}
		relType := types.RelationType(result.Relation)
		if result.Relation == "none" || result.Relation == "" {
			continue
		}
		if !relType.IsValid() {
			log.Printf("[WARN] similarity result %d has unknown relation type: %s", i, result.Relation)
			continue
		}
		matches = append(matches, types.SimilarFeature{
			FeatureID:  result.FeatureID,
			Relation:   relType,
			Confidence: result.Confidence,
			Reasoning:  result.Reasoning,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches, nil
}

func buildSimilarityPrompt(description string, existing []*types.Feature) string {
	prompt := fmt.Sprintf(`You are screening a candidate game feature against existing features
to detect duplicates and relationships.

CANDIDATE FEATURE:
%s

EXISTING FEATURES TO COMPARE AGAINST:
`, description)

	for i, f := range existing {
		prompt += fmt.Sprintf(`
[%d] ID: %s
    Title: %s
    Type: %s
    Status: %s
    Description: %s
`, i+1, f.ID, f.Title, f.Type, f.Status, f.Description)
	}

	prompt += `
TASK:
For EACH existing feature listed above, classify its relationship to the
CANDIDATE. Use one of: duplicate, builds_on, supersedes, refactors, fixes,
conflicts_with, or none.

IMPORTANT GUIDELINES:
1. Consider SEMANTIC SIMILARITY, not just string matching
2. "duplicate" means the candidate describes the SAME functionality
3. "builds_on" means the candidate extends or depends on the existing feature
4. "supersedes" means the candidate replaces the existing feature
5. "conflicts_with" means both cannot coexist as described
6. Different wording does not rule out a duplicate

OUTPUT FORMAT (JSON only, no markdown):
{
  "results": [
    {
      "feature_id": "the existing feature's ID",
      "relation_type": "duplicate" | "builds_on" | "supersedes" | "refactors" | "fixes" | "conflicts_with" | "none",
      "confidence": float (0.0-1.0),
      "reasoning": "Brief explanation"
    }
    // ... one entry for each existing feature
  ]
}

CONFIDENCE SCORING:
- 0.95-1.0: Certain, same functionality or explicit dependency
- 0.85-0.95: Very likely, same underlying goal
- 0.70-0.85: Related but clearly distinct aspects
- 0.50-0.70: Weak similarity
- 0.0-0.50: Unrelated

IMPORTANT:
1. Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
2. Include exactly one result per existing feature in the order listed.
`

	return prompt
}
