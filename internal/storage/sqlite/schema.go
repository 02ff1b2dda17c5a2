package sqlite

const schema = `
-- Features table (main ledger)
CREATE TABLE IF NOT EXISTS features (
    feature_id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('new_feature', 'bug_fix', 'refactor', 'enhancement')),
    status TEXT NOT NULL DEFAULT 'requested' CHECK(status IN ('requested', 'in_review', 'awaiting_implementation', 'awaiting_validation', 'validated', 'superseded', 'cancelled')),
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    keywords_json TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    fip_approved_at DATETIME,
    implemented_at DATETIME,
    validated_at DATETIME,
    superseded_at DATETIME,
    commit_hash TEXT,
    changed_files_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_features_status ON features(status);
CREATE INDEX IF NOT EXISTS idx_features_type ON features(type);
CREATE INDEX IF NOT EXISTS idx_features_created_at ON features(created_at);

-- Per-prefix ID counters for atomic feature ID generation
CREATE TABLE IF NOT EXISTS feature_counters (
    prefix TEXT PRIMARY KEY,
    last_id INTEGER NOT NULL DEFAULT 0
);

-- Feature relations table (directed edges)
CREATE TABLE IF NOT EXISTS feature_relations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feature_id TEXT NOT NULL,
    relation_type TEXT NOT NULL CHECK(relation_type IN ('builds_on', 'supersedes', 'refactors', 'fixes', 'duplicate', 'conflicts_with')),
    target_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES features(feature_id) ON DELETE CASCADE,
    CHECK (feature_id != target_id)
);

CREATE INDEX IF NOT EXISTS idx_feature_relations_feature ON feature_relations(feature_id);
CREATE INDEX IF NOT EXISTS idx_feature_relations_target ON feature_relations(target_id);

-- Documents table (append-only artifact versions)
CREATE TABLE IF NOT EXISTS feature_documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feature_id TEXT NOT NULL,
    document_type TEXT NOT NULL CHECK(document_type IN ('request', 'architecture', 'implementation_plan', 'code_change', 'review', 'adr')),
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_feature_documents_feature ON feature_documents(feature_id);
CREATE INDEX IF NOT EXISTS idx_feature_documents_type ON feature_documents(document_type);

-- Pipeline checkpoints
-- One active row per feature; lock_owner enforces at-most-one active
-- pipeline per feature. Archived rows are kept for audit.
CREATE TABLE IF NOT EXISTS pipeline_state (
    feature_id TEXT PRIMARY KEY,
    current_stage TEXT NOT NULL,
    revision_counts_json TEXT NOT NULL DEFAULT '{}',
    approval_json TEXT NOT NULL DEFAULT '{}',
    history_json TEXT NOT NULL DEFAULT '[]',
    lock_owner TEXT,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived_at DATETIME,
    FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_pipeline_state_stage ON pipeline_state(current_stage);

-- Events table (audit trail)
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    feature_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    comment TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (feature_id) REFERENCES features(feature_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_feature ON events(feature_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);

-- Config key/value table
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
