package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("My Game", "MG")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxRevisions)
	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProjectConfig)
		wantErr bool
	}{
		{"valid", func(c *ProjectConfig) {}, false},
		{"missing name", func(c *ProjectConfig) { c.ProjectName = "" }, true},
		{"lowercase initials", func(c *ProjectConfig) { c.ProjectInitials = "mg" }, true},
		{"one letter initials", func(c *ProjectConfig) { c.ProjectInitials = "M" }, true},
		{"six letter initials", func(c *ProjectConfig) { c.ProjectInitials = "ABCDEF" }, true},
		{"five letter initials", func(c *ProjectConfig) { c.ProjectInitials = "ABCDE" }, false},
		{"zero revisions", func(c *ProjectConfig) { c.MaxRevisions = 0 }, true},
		{"too many revisions", func(c *ProjectConfig) { c.MaxRevisions = 11 }, true},
		{"threshold too low", func(c *ProjectConfig) { c.SimilarityThreshold = 0.3 }, true},
		{"threshold too high", func(c *ProjectConfig) { c.SimilarityThreshold = 1.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("My Game", "MG")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := Default("Platformer Jam", "PJ")
	cfg.Model = "some-model"
	require.NoError(t, Save(root, cfg))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "Platformer Jam", loaded.ProjectName)
	assert.Equal(t, "PJ", loaded.ProjectInitials)
	assert.Equal(t, "some-model", loaded.Model)
	assert.Equal(t, filepath.Join(Dir, "ledger.db"), loaded.DatabasePath)
}

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, Dir), 0755))
	minimal := "project_name: Tiny\nproject_initials: TN\n"
	require.NoError(t, os.WriteFile(Path(root), []byte(minimal), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxRevisions)
	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(root, Default("Game", "GM")))

	t.Setenv("FEATFORGE_MAX_REVISIONS", "5")
	t.Setenv("FEATFORGE_SIMILARITY_THRESHOLD", "0.8")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRevisions)
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
}

func TestLoadRejectsInvalidEnvOverride(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(root, Default("Game", "GM")))

	t.Setenv("FEATFORGE_MAX_REVISIONS", "lots")
	_, err := Load(root)
	assert.Error(t, err)
}
