package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/featforge/featforge/internal/types"
)

// AddRelation records a directed edge between two features. Self-referencing
// edges are rejected, and supersedes edges are exclusive: a feature may be
// superseded by at most one other.
func (s *SQLiteStorage) AddRelation(ctx context.Context, featureID string, relType types.RelationType, targetID string, actor string) error {
	if !relType.IsValid() {
		return &types.ValidationError{Field: "relation_type", Reason: fmt.Sprintf("invalid relation type: %s", relType)}
	}
	if featureID == targetID {
		return &types.SelfReferenceError{ID: featureID}
	}

	// Both endpoints must exist
	if _, err := s.GetFeature(ctx, featureID); err != nil {
		return err
	}
	if _, err := s.GetFeature(ctx, targetID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "add relation", Err: err}
	}
	defer tx.Rollback()

	if relType == types.RelSupersedes {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT feature_id FROM feature_relations
			WHERE relation_type = ? AND target_id = ?
		`, types.RelSupersedes, targetID).Scan(&existing)
		if err == nil {
			return &types.ExclusivityError{TargetID: targetID, SupersededBy: existing}
		}
		if err != sql.ErrNoRows {
			return &types.PersistenceError{Op: "add relation", Err: err}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feature_relations (feature_id, relation_type, target_id)
		VALUES (?, ?, ?)
	`, featureID, relType, targetID)
	if err != nil {
		return &types.PersistenceError{Op: "add relation", Err: err}
	}

	comment := fmt.Sprintf("%s %s %s", featureID, relType, targetID)
	if err := recordEvent(ctx, tx, featureID, types.EventRelationAdded, actor, nil, nil, &comment); err != nil {
		return &types.PersistenceError{Op: "add relation", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "add relation", Err: err}
	}
	return nil
}

// GetRelations returns all edges originating from or pointing at a feature
func (s *SQLiteStorage) GetRelations(ctx context.Context, featureID string) ([]*types.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feature_id, relation_type, target_id, created_at
		FROM feature_relations
		WHERE feature_id = ? OR target_id = ?
		ORDER BY created_at ASC
	`, featureID, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get relations: %w", err)
	}
	defer rows.Close()

	var relations []*types.Relation
	for rows.Next() {
		var rel types.Relation
		if err := rows.Scan(&rel.ID, &rel.FeatureID, &rel.Type, &rel.TargetID, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, &rel)
	}
	return relations, rows.Err()
}
