package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/featforge/featforge/internal/types"
)

// Per-term score weights. A title hit outranks a keyword hit, which
// outranks a description hit.
const (
	scoreTitle       = 3
	scoreKeyword     = 2
	scoreDescription = 1
)

// KeywordSearch finds features matching any of the given terms, scored by
// where the term matched. Matching is case-insensitive substring matching;
// results are ordered by score descending, then by feature ID for stable
// output. Empty or whitespace-only terms are ignored.
func (s *SQLiteStorage) KeywordSearch(ctx context.Context, terms []string) ([]*types.SearchHit, error) {
	var cleaned []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	// Pull candidates with a single OR query, then score in memory.
	var conditions []string
	var args []interface{}
	for _, term := range cleaned {
		pattern := "%" + term + "%"
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(keywords_json) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := fmt.Sprintf(`
		SELECT feature_id, type, status, title, description, keywords_json, created_at,
		       fip_approved_at, implemented_at, validated_at, superseded_at,
		       commit_hash, changed_files_json
		FROM features
		WHERE %s
	`, strings.Join(conditions, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search features: %w", err)
	}
	defer rows.Close()

	var hits []*types.SearchHit
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &types.SearchHit{
			Feature: feature,
			Score:   scoreFeature(feature, cleaned),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search features: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Feature.ID < hits[j].Feature.ID
	})
	return hits, nil
}

func scoreFeature(f *types.Feature, terms []string) int {
	title := strings.ToLower(f.Title)
	description := strings.ToLower(f.Description)

	score := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += scoreTitle
		}
		for _, kw := range f.Keywords {
			if strings.Contains(strings.ToLower(kw), term) {
				score += scoreKeyword
				break
			}
		}
		if strings.Contains(description, term) {
			score += scoreDescription
		}
	}
	return score
}
