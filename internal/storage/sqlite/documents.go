package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/featforge/featforge/internal/types"
)

// AddDocument appends a new artifact version for a feature. Documents are
// never overwritten; the newest row of a type is the current document.
func (s *SQLiteStorage) AddDocument(ctx context.Context, featureID string, docType types.DocumentType, content string, actor string) (*types.Document, error) {
	if !docType.IsValid() {
		return nil, &types.ValidationError{Field: "document_type", Reason: fmt.Sprintf("invalid document type: %s", docType)}
	}

	if _, err := s.GetFeature(ctx, featureID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &types.PersistenceError{Op: "add document", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO feature_documents (feature_id, document_type, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, featureID, docType, content, now, now)
	if err != nil {
		return nil, &types.PersistenceError{Op: "add document", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, &types.PersistenceError{Op: "add document", Err: err}
	}

	comment := fmt.Sprintf("%s document added (%d bytes)", docType, len(content))
	if err := recordEvent(ctx, tx, featureID, types.EventDocumentAdded, actor, nil, nil, &comment); err != nil {
		return nil, &types.PersistenceError{Op: "add document", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &types.PersistenceError{Op: "add document", Err: err}
	}

	return &types.Document{
		ID:        id,
		FeatureID: featureID,
		Type:      docType,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetCurrentDocument returns the most recently created document of a type
// for a feature, or nil when none exists.
func (s *SQLiteStorage) GetCurrentDocument(ctx context.Context, featureID string, docType types.DocumentType) (*types.Document, error) {
	var doc types.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, feature_id, document_type, content, created_at, updated_at
		FROM feature_documents
		WHERE feature_id = ? AND document_type = ?
		ORDER BY id DESC
		LIMIT 1
	`, featureID, docType).Scan(&doc.ID, &doc.FeatureID, &doc.Type, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current document: %w", err)
	}
	return &doc, nil
}

// GetDocuments returns every artifact version for a feature, oldest first
func (s *SQLiteStorage) GetDocuments(ctx context.Context, featureID string) ([]*types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feature_id, document_type, content, created_at, updated_at
		FROM feature_documents
		WHERE feature_id = ?
		ORDER BY id ASC
	`, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.FeatureID, &doc.Type, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}
