package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/config"
	"github.com/featforge/featforge/internal/storage"
	"github.com/featforge/featforge/internal/types"
)

// Shared across commands; populated by PersistentPreRunE for every
// command except init and doctor, which must work without a project.
var (
	store       storage.Storage
	projectCfg  *config.ProjectConfig
	projectRoot string

	flagDir string
)

var rootCmd = &cobra.Command{
	Use:   "featforge",
	Short: "Feature lifecycle tracker for game projects",
	Long: `featforge tracks game features from request to validated implementation.

Each feature moves through a fixed pipeline: architecture design, an
implementation plan, a code change, and finally human validation. Every
stage is drafted, reviewed automatically, and gated on human approval.
All state lives in a SQLite ledger under .featforge/ so a crashed run
resumes where it stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "doctor", "help", "completion":
			return nil
		}
		return openProject(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

// Execute runs the root command and exits with a code mapped from the
// error type.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// openProject loads the project config and opens the ledger
func openProject(ctx context.Context) error {
	projectRoot = flagDir
	if projectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		projectRoot = cwd
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err
	}
	projectCfg = cfg

	db, err := storage.NewStorage(ctx, &storage.Config{
		Path:   filepath.Join(projectRoot, cfg.DatabasePath),
		Prefix: cfg.ProjectInitials,
	})
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	store = db
	return nil
}

// actor identifies the human behind ledger mutations in the audit trail
func actor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}

// Exit codes:
//
//	0 - success
//	1 - general error
//	2 - validation failure
//	3 - feature not found
//	4 - illegal status or stage transition
//	5 - relation rejected (self-reference, exclusivity, duplicate block)
//	6 - revision limit reached in unattended mode
//	7 - ledger write failure
func exitCode(err error) int {
	var (
		validationErr *types.ValidationError
		notFoundErr   *types.NotFoundError
		transitionErr *types.InvalidTransitionError
		selfRefErr    *types.SelfReferenceError
		exclusiveErr  *types.ExclusivityError
		limitErr      *types.RevisionLimitError
		persistErr    *types.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return 2
	case errors.As(err, &notFoundErr):
		return 3
	case errors.As(err, &transitionErr):
		return 4
	case errors.As(err, &selfRefErr), errors.As(err, &exclusiveErr):
		return 5
	case errors.As(err, &limitErr):
		return 6
	case errors.As(err, &persistErr):
		return 7
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Project root (default: current directory)")
}
