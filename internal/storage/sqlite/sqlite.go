package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/featforge/featforge/internal/types"
)

// maxIDAttempts bounds regeneration after a feature ID collision
const maxIDAttempts = 5

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	prefix string // Feature ID prefix (project initials), e.g. "PJ"
}

// New creates a new SQLite storage backend
func New(path, prefix string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Config table value takes precedence over the caller-supplied prefix,
	// so a ledger keeps its identity when opened from another directory.
	var configPrefix string
	err = db.QueryRow("SELECT value FROM config WHERE key = ?", "id_prefix").Scan(&configPrefix)
	if err == nil && configPrefix != "" {
		prefix = configPrefix
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read id_prefix from config: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		prefix: prefix,
	}, nil
}

// CreateFeature creates a new feature, generating a project-scoped ID of
// the form <PREFIX>-NNN when none is set. On an ID collision the next
// sequence number is taken, transparently to the caller.
func (s *SQLiteStorage) CreateFeature(ctx context.Context, feature *types.Feature, actor string) error {
	if feature.Status == "" {
		feature.Status = types.StatusRequested
	}
	if err := feature.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	feature.CreatedAt = now

	keywordsJSON, err := json.Marshal(feature.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	// Acquire a dedicated connection: BEGIN IMMEDIATE and COMMIT must run
	// on the same connection, and database/sql pools queries otherwise.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &types.PersistenceError{Op: "create feature", Err: err}
	}
	defer conn.Close()

	// BEGIN IMMEDIATE acquires the write lock up front, serializing ID
	// generation across concurrent writers. database/sql's BeginTx only
	// supports DEFERRED mode for this driver.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return &types.PersistenceError{Op: "create feature", Err: err}
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if feature.ID == "" {
		id, err := s.nextFeatureID(ctx, conn)
		if err != nil {
			return err
		}
		feature.ID = id
	} else {
		var count int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM features WHERE feature_id = ?`, feature.ID).Scan(&count); err != nil {
			return &types.PersistenceError{Op: "create feature", Err: err}
		}
		if count > 0 {
			return &types.DuplicateIDError{ID: feature.ID}
		}
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO features (
			feature_id, type, status, title, description, keywords_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		feature.ID, feature.Type, feature.Status, feature.Title,
		feature.Description, string(keywordsJSON), feature.CreatedAt,
	)
	if err != nil {
		return &types.PersistenceError{Op: "create feature", Err: err}
	}

	// Record creation event in the same transaction
	eventData, _ := json.Marshal(feature)
	if err := recordEvent(ctx, conn, feature.ID, types.EventCreated, actor, nil, strPtr(string(eventData)), nil); err != nil {
		return &types.PersistenceError{Op: "create feature", Err: err}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return &types.PersistenceError{Op: "create feature", Err: err}
	}
	committed = true

	return nil
}

// nextFeatureID atomically increments the counter for this prefix and
// returns the first non-colliding candidate ID. Must run inside an
// IMMEDIATE transaction on conn.
func (s *SQLiteStorage) nextFeatureID(ctx context.Context, conn *sql.Conn) (string, error) {
	var lastCandidate string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		// Initialize the counter from the highest existing ID on first use,
		// then increment. Handles ledgers populated before the counter existed.
		var nextID int
		err := conn.QueryRowContext(ctx, `
			INSERT INTO feature_counters (prefix, last_id)
			SELECT ?, COALESCE(MAX(CAST(substr(feature_id, LENGTH(?) + 2) AS INTEGER)), 0) + 1
			FROM features
			WHERE feature_id LIKE ? || '-%'
			  AND substr(feature_id, LENGTH(?) + 2) GLOB '[0-9]*'
			ON CONFLICT(prefix) DO UPDATE SET last_id = last_id + 1
			RETURNING last_id
		`, s.prefix, s.prefix, s.prefix, s.prefix).Scan(&nextID)
		if err != nil {
			return "", &types.PersistenceError{Op: "generate feature ID", Err: err}
		}

		candidate := fmt.Sprintf("%s-%03d", s.prefix, nextID)
		lastCandidate = candidate

		var count int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM features WHERE feature_id = ?`, candidate).Scan(&count); err != nil {
			return "", &types.PersistenceError{Op: "generate feature ID", Err: err}
		}
		if count == 0 {
			return candidate, nil
		}
		// Collision with a manually inserted row: take the next number.
	}
	return "", &types.DuplicateIDError{ID: lastCandidate}
}

// GetFeature retrieves a feature by ID
func (s *SQLiteStorage) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT feature_id, type, status, title, description, keywords_json,
		       created_at, fip_approved_at, implemented_at, validated_at,
		       superseded_at, commit_hash, changed_files_json
		FROM features
		WHERE feature_id = ?
	`, id)

	feature, err := scanFeature(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}
	return feature, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanFeature
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeature(row rowScanner) (*types.Feature, error) {
	var feature types.Feature
	var keywordsJSON string
	var fipApprovedAt, implementedAt, validatedAt, supersededAt sql.NullTime
	var commitHash, changedFilesJSON sql.NullString

	err := row.Scan(
		&feature.ID, &feature.Type, &feature.Status, &feature.Title,
		&feature.Description, &keywordsJSON, &feature.CreatedAt,
		&fipApprovedAt, &implementedAt, &validatedAt, &supersededAt,
		&commitHash, &changedFilesJSON,
	)
	if err != nil {
		return nil, err
	}

	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &feature.Keywords); err != nil {
			return nil, fmt.Errorf("failed to parse keywords for %s: %w", feature.ID, err)
		}
	}
	if fipApprovedAt.Valid {
		feature.FIPApprovedAt = &fipApprovedAt.Time
	}
	if implementedAt.Valid {
		feature.ImplementedAt = &implementedAt.Time
	}
	if validatedAt.Valid {
		feature.ValidatedAt = &validatedAt.Time
	}
	if supersededAt.Valid {
		feature.SupersededAt = &supersededAt.Time
	}
	if commitHash.Valid {
		feature.CommitHash = commitHash.String
	}
	if changedFilesJSON.Valid && changedFilesJSON.String != "" {
		if err := json.Unmarshal([]byte(changedFilesJSON.String), &feature.ChangedFiles); err != nil {
			return nil, fmt.Errorf("failed to parse changed files for %s: %w", feature.ID, err)
		}
	}

	return &feature, nil
}

// milestoneColumn maps a target status to the milestone timestamp column it
// stamps, if any. implemented_at is set by MarkImplemented instead.
func milestoneColumn(status types.Status) (string, bool) {
	switch status {
	case types.StatusAwaitingImplementation:
		return "fip_approved_at", true
	case types.StatusValidated:
		return "validated_at", true
	case types.StatusSuperseded:
		return "superseded_at", true
	}
	return "", false
}

// UpdateStatus moves a feature to a new status, enforcing the status state
// machine at the store layer so direct ledger mutation cannot violate it.
func (s *SQLiteStorage) UpdateStatus(ctx context.Context, id string, newStatus types.Status, actor string) error {
	if !newStatus.IsValid() {
		return &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", newStatus)}
	}

	current, err := s.GetFeature(ctx, id)
	if err != nil {
		return err
	}

	if !current.Status.CanTransitionTo(newStatus) {
		return &types.InvalidTransitionError{ID: id, From: string(current.Status), To: string(newStatus)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "update status", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if column, ok := milestoneColumn(newStatus); ok {
		query := fmt.Sprintf("UPDATE features SET status = ?, %s = ? WHERE feature_id = ?", column)
		_, err = tx.ExecContext(ctx, query, newStatus, now, id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE features SET status = ? WHERE feature_id = ?", newStatus, id)
	}
	if err != nil {
		return &types.PersistenceError{Op: "update status", Err: err}
	}

	oldVal := string(current.Status)
	newVal := string(newStatus)
	if err := recordEvent(ctx, tx, id, types.EventStatusChanged, actor, &oldVal, &newVal, nil); err != nil {
		return &types.PersistenceError{Op: "update status", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "update status", Err: err}
	}
	return nil
}

// MarkImplemented records implementation details and moves the feature to
// awaiting_validation.
func (s *SQLiteStorage) MarkImplemented(ctx context.Context, id, commitHash string, changedFiles []string, actor string) error {
	current, err := s.GetFeature(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(types.StatusAwaitingValidation) {
		return &types.InvalidTransitionError{ID: id, From: string(current.Status), To: string(types.StatusAwaitingValidation)}
	}

	var changedFilesJSON interface{}
	if len(changedFiles) > 0 {
		data, err := json.Marshal(changedFiles)
		if err != nil {
			return fmt.Errorf("failed to marshal changed files: %w", err)
		}
		changedFilesJSON = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "mark implemented", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE features
		SET status = ?, implemented_at = ?, commit_hash = ?, changed_files_json = ?
		WHERE feature_id = ?
	`, types.StatusAwaitingValidation, now, nullableString(commitHash), changedFilesJSON, id)
	if err != nil {
		return &types.PersistenceError{Op: "mark implemented", Err: err}
	}

	comment := fmt.Sprintf("implemented at commit %s (%d files changed)", commitHash, len(changedFiles))
	if err := recordEvent(ctx, tx, id, types.EventImplemented, actor, nil, nil, &comment); err != nil {
		return &types.PersistenceError{Op: "mark implemented", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "mark implemented", Err: err}
	}
	return nil
}

// QueryFeatures finds features matching the filter, ordered by created_at
// ascending.
func (s *SQLiteStorage) QueryFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		whereClauses = append(whereClauses, "type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Keyword != "" {
		whereClauses = append(whereClauses, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(keywords_json) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Keyword) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	querySQL := fmt.Sprintf(`
		SELECT feature_id, type, status, title, description, keywords_json,
		       created_at, fip_approved_at, implemented_at, validated_at,
		       superseded_at, commit_hash, changed_files_json
		FROM features
		%s
		ORDER BY created_at ASC
		%s
	`, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []*types.Feature
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, feature)
	}
	return features, rows.Err()
}

// GetStatistics returns summary counts by status and type
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{
		ByStatus: make(map[types.Status]int),
		ByType:   make(map[types.FeatureType]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM features GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status types.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalFeatures += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM features GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var ftype types.FeatureType
		var count int
		if err := typeRows.Scan(&ftype, &count); err != nil {
			return nil, err
		}
		stats.ByType[ftype] = count
	}
	return stats, typeRows.Err()
}

// GetEvents returns the audit trail for a feature, newest first
func (s *SQLiteStorage) GetEvents(ctx context.Context, featureID string, limit int) ([]*types.Event, error) {
	limitSQL := ""
	if limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, feature_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events
		WHERE feature_id = ?
		ORDER BY created_at DESC
		%s
	`, limitSQL), featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var event types.Event
		var oldValue, newValue, comment sql.NullString
		if err := rows.Scan(&event.ID, &event.FeatureID, &event.EventType, &event.Actor,
			&oldValue, &newValue, &comment, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if oldValue.Valid {
			event.OldValue = &oldValue.String
		}
		if newValue.Valid {
			event.NewValue = &newValue.String
		}
		if comment.Valid {
			event.Comment = &comment.String
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// execer abstracts sql.Conn and sql.Tx for event recording
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func recordEvent(ctx context.Context, conn execer, featureID string, eventType types.EventType, actor string, oldValue, newValue, comment *string) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO events (id, feature_id, event_type, actor, old_value, new_value, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), featureID, eventType, actor, oldValue, newValue, comment)
	return err
}

func strPtr(s string) *string { return &s }

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
