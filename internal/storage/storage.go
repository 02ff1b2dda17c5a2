package storage

import (
	"context"

	"github.com/featforge/featforge/internal/storage/sqlite"
	"github.com/featforge/featforge/internal/types"
)

// Storage defines the interface for ledger storage backends. The ledger is
// the sole writer of feature, relation, and document rows; the pipeline
// orchestrator is the sole writer of pipeline checkpoints.
type Storage interface {
	// Features
	CreateFeature(ctx context.Context, feature *types.Feature, actor string) error
	GetFeature(ctx context.Context, id string) (*types.Feature, error)
	UpdateStatus(ctx context.Context, id string, newStatus types.Status, actor string) error
	MarkImplemented(ctx context.Context, id, commitHash string, changedFiles []string, actor string) error
	QueryFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error)
	KeywordSearch(ctx context.Context, terms []string) ([]*types.SearchHit, error)
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Documents (append-only)
	AddDocument(ctx context.Context, featureID string, docType types.DocumentType, content string, actor string) (*types.Document, error)
	GetCurrentDocument(ctx context.Context, featureID string, docType types.DocumentType) (*types.Document, error)
	GetDocuments(ctx context.Context, featureID string) ([]*types.Document, error)

	// Relations
	AddRelation(ctx context.Context, featureID string, relType types.RelationType, targetID string, actor string) error
	GetRelations(ctx context.Context, featureID string) ([]*types.Relation, error)

	// Pipeline checkpoints (owned by the orchestrator)
	AcquirePipeline(ctx context.Context, featureID, owner string) error
	ReleasePipeline(ctx context.Context, featureID string) error
	SavePipelineState(ctx context.Context, state *types.PipelineState) error
	GetPipelineState(ctx context.Context, featureID string) (*types.PipelineState, error)
	ArchivePipelineState(ctx context.Context, featureID string) error

	// Audit trail
	GetEvents(ctx context.Context, featureID string, limit int) ([]*types.Event, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".featforge/ledger.db"
	Path string

	// Prefix is the feature ID prefix (project initials), e.g. "PJ"
	Prefix string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path:   ".featforge/ledger.db",
		Prefix: "FT",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".featforge/ledger.db"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "FT"
	}

	return sqlite.New(cfg.Path, cfg.Prefix)
}
