package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/featforge/featforge/internal/types"
)

// AcquirePipeline claims the pipeline lock for a feature. At most one
// active (non-archived) pipeline row may exist per feature; a second
// acquire fails until the first owner releases or the row is archived.
func (s *SQLiteStorage) AcquirePipeline(ctx context.Context, featureID, owner string) error {
	if owner == "" {
		return &types.ValidationError{Field: "owner", Reason: "lock owner is required"}
	}
	if _, err := s.GetFeature(ctx, featureID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "acquire pipeline", Err: err}
	}
	defer tx.Rollback()

	var currentOwner sql.NullString
	var archivedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT lock_owner, archived_at FROM pipeline_state WHERE feature_id = ?
	`, featureID).Scan(&currentOwner, &archivedAt)
	switch {
	case err == sql.ErrNoRows:
		// No checkpoint yet. Claim the row now so a second owner cannot
		// slip in before the orchestrator's first checkpoint write.
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pipeline_state (feature_id, current_stage, revision_counts_json, approval_json, history_json, lock_owner, started_at, updated_at)
			VALUES (?, ?, '{}', '{}', '[]', ?, ?, ?)
		`, featureID, types.StageSelected, owner, now, now); err != nil {
			return &types.PersistenceError{Op: "acquire pipeline", Err: err}
		}
	case err != nil:
		return &types.PersistenceError{Op: "acquire pipeline", Err: err}
	case !archivedAt.Valid && currentOwner.Valid && currentOwner.String != "" && currentOwner.String != owner:
		return fmt.Errorf("pipeline for %s is held by %s", featureID, currentOwner.String)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE pipeline_state SET lock_owner = ? WHERE feature_id = ?
		`, owner, featureID); err != nil {
			return &types.PersistenceError{Op: "acquire pipeline", Err: err}
		}
	}

	if err := recordEvent(ctx, tx, featureID, types.EventPipelineOpened, owner, nil, nil, nil); err != nil {
		return &types.PersistenceError{Op: "acquire pipeline", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "acquire pipeline", Err: err}
	}
	return nil
}

// ReleasePipeline drops the lock owner without archiving the checkpoint,
// so a later run can resume from the saved stage.
func (s *SQLiteStorage) ReleasePipeline(ctx context.Context, featureID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_state SET lock_owner = NULL WHERE feature_id = ?
	`, featureID)
	if err != nil {
		return &types.PersistenceError{Op: "release pipeline", Err: err}
	}
	return nil
}

// SavePipelineState upserts the orchestrator checkpoint for a feature.
// The checkpoint is written after the corresponding ledger mutation, so a
// crash between the two replays at most one completed stage on resume.
func (s *SQLiteStorage) SavePipelineState(ctx context.Context, state *types.PipelineState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	revisions, err := json.Marshal(state.RevisionCounts)
	if err != nil {
		return &types.PersistenceError{Op: "save pipeline state", Err: err}
	}
	approvals, err := json.Marshal(state.Approvals)
	if err != nil {
		return &types.PersistenceError{Op: "save pipeline state", Err: err}
	}
	history, err := json.Marshal(state.History)
	if err != nil {
		return &types.PersistenceError{Op: "save pipeline state", Err: err}
	}

	state.UpdatedAt = time.Now().UTC()
	if state.StartedAt.IsZero() {
		state.StartedAt = state.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_state (feature_id, current_stage, revision_counts_json, approval_json, history_json, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feature_id) DO UPDATE SET
			current_stage = excluded.current_stage,
			revision_counts_json = excluded.revision_counts_json,
			approval_json = excluded.approval_json,
			history_json = excluded.history_json,
			updated_at = excluded.updated_at,
			archived_at = NULL
	`, state.FeatureID, state.CurrentStage, string(revisions), string(approvals), string(history),
		state.StartedAt, state.UpdatedAt)
	if err != nil {
		return &types.PersistenceError{Op: "save pipeline state", Err: err}
	}
	return nil
}

// GetPipelineState loads the active checkpoint for a feature. Archived
// checkpoints are not returned; a finished pipeline looks like none at all.
func (s *SQLiteStorage) GetPipelineState(ctx context.Context, featureID string) (*types.PipelineState, error) {
	var state types.PipelineState
	var revisions, approvals, history string
	err := s.db.QueryRowContext(ctx, `
		SELECT feature_id, current_stage, revision_counts_json, approval_json, history_json, started_at, updated_at
		FROM pipeline_state
		WHERE feature_id = ? AND archived_at IS NULL
	`, featureID).Scan(&state.FeatureID, &state.CurrentStage, &revisions, &approvals, &history,
		&state.StartedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{ID: featureID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline state: %w", err)
	}

	if err := json.Unmarshal([]byte(revisions), &state.RevisionCounts); err != nil {
		return nil, fmt.Errorf("failed to parse revision counts: %w", err)
	}
	if err := json.Unmarshal([]byte(approvals), &state.Approvals); err != nil {
		return nil, fmt.Errorf("failed to parse approvals: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &state.History); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return &state, nil
}

// ArchivePipelineState stamps the checkpoint as finished and drops the
// lock. The row is kept for audit but no longer resumable.
func (s *SQLiteStorage) ArchivePipelineState(ctx context.Context, featureID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "archive pipeline state", Err: err}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE pipeline_state
		SET archived_at = ?, lock_owner = NULL
		WHERE feature_id = ? AND archived_at IS NULL
	`, time.Now().UTC(), featureID)
	if err != nil {
		return &types.PersistenceError{Op: "archive pipeline state", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &types.PersistenceError{Op: "archive pipeline state", Err: err}
	}
	if affected == 0 {
		return &types.NotFoundError{ID: featureID}
	}

	if err := recordEvent(ctx, tx, featureID, types.EventPipelineClosed, "orchestrator", nil, nil, nil); err != nil {
		return &types.PersistenceError{Op: "archive pipeline state", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "archive pipeline state", Err: err}
	}
	return nil
}
