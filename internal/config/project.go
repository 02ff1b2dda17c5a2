// Package config loads and validates per-project configuration stored
// under the .featforge directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project state directory
const Dir = ".featforge"

// FileName is the config file inside Dir
const FileName = "config.yaml"

var initialsRegex = regexp.MustCompile(`^[A-Z]{2,5}$`)

// ProjectConfig holds per-project settings for the feature pipeline
type ProjectConfig struct {
	// ProjectName is the human-readable project name
	ProjectName string `yaml:"project_name"`

	// ProjectInitials prefix feature IDs (e.g. "PJ" gives PJ-001)
	// Must be 2-5 uppercase letters
	ProjectInitials string `yaml:"project_initials"`

	// DatabasePath is the ledger location, relative to the project root
	// Default: .featforge/ledger.db
	DatabasePath string `yaml:"database_path,omitempty"`

	// MaxRevisions bounds reviewer-requested revisions per stage
	// Default: 3, Range: 1-10
	MaxRevisions int `yaml:"max_revisions"`

	// SimilarityThreshold is the confidence at or above which a duplicate
	// match blocks feature creation pending confirmation
	// Default: 0.9, Range: 0.5-1.0
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// Model overrides the default drafting/review model (optional)
	Model string `yaml:"model,omitempty"`

	// SimpleModel overrides the model for similarity screening (optional)
	SimpleModel string `yaml:"simple_model,omitempty"`
}

// Default returns a config with default settings for the given project
func Default(name, initials string) *ProjectConfig {
	return &ProjectConfig{
		ProjectName:         name,
		ProjectInitials:     initials,
		DatabasePath:        filepath.Join(Dir, "ledger.db"),
		MaxRevisions:        3,
		SimilarityThreshold: 0.9,
	}
}

// Validate checks if the configuration has valid values
func (c *ProjectConfig) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is required")
	}
	if !initialsRegex.MatchString(c.ProjectInitials) {
		return fmt.Errorf("project_initials must be 2-5 uppercase letters (got %q)", c.ProjectInitials)
	}
	if c.MaxRevisions < 1 || c.MaxRevisions > 10 {
		return fmt.Errorf("max_revisions must be between 1 and 10 (got %d)", c.MaxRevisions)
	}
	if c.SimilarityThreshold < 0.5 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.5 and 1.0 (got %.2f)", c.SimilarityThreshold)
	}
	return nil
}

// Path returns the config file path under the given project root
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads and validates the project config under root, applying
// environment variable overrides:
//   - FEATFORGE_MAX_REVISIONS: override max_revisions
//   - FEATFORGE_SIMILARITY_THRESHOLD: override similarity_threshold
func Load(root string) (*ProjectConfig, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no project config at %s (run 'featforge init' first): %w", Path(root), err)
		}
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(Dir, "ledger.db")
	}
	if cfg.MaxRevisions == 0 {
		cfg.MaxRevisions = 3
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.9
	}

	if err := parseEnvInt("FEATFORGE_MAX_REVISIONS", &cfg.MaxRevisions); err != nil {
		return nil, err
	}
	if err := parseEnvFloat("FEATFORGE_SIMILARITY_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config under root, creating the state directory
func Save(root string, cfg *ProjectConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid project config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(root, Dir), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}

	if err := os.WriteFile(Path(root), data, 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
