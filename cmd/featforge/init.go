package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/featforge/featforge/internal/config"
	"github.com/featforge/featforge/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init <initials> [project-name]",
	Short: "Initialize a feature ledger in the current directory",
	Long: `Initialize a feature ledger by creating a .featforge/ directory.

This creates:
  - .featforge/config.yaml (project settings)
  - .featforge/ledger.db (SQLite ledger)

Initials must be 2-5 uppercase letters; they prefix every feature ID
(e.g. "PJ" gives PJ-001). If no project name is provided, the current
directory name is used.

Example:
  cd ~/mygame
  featforge init MG             # Features named MG-001, MG-002, ...
  featforge init MG "My Game"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		initials := strings.ToUpper(strings.TrimSpace(args[0]))

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		name := filepath.Base(cwd)
		if len(args) > 1 {
			name = args[1]
		}

		if _, err := os.Stat(config.Path(cwd)); err == nil {
			return fmt.Errorf("project already initialized at %s", config.Path(cwd))
		}

		cfg := config.Default(name, initials)
		if err := config.Save(cwd, cfg); err != nil {
			return err
		}

		// Create the ledger so the first create doesn't pay schema setup
		db, err := storage.NewStorage(cmd.Context(), &storage.Config{
			Path:   filepath.Join(cwd, cfg.DatabasePath),
			Prefix: cfg.ProjectInitials,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize ledger: %w", err)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized feature ledger\n\n", green("✓"))
		fmt.Printf("  Project:  %s\n", cyan(name))
		fmt.Printf("  Initials: %s\n", cyan(initials))
		fmt.Printf("  Ledger:   %s\n", cyan(cfg.DatabasePath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray(`featforge create --title "..." --description "..."`))
		fmt.Printf("  %s\n", gray("featforge advance <feature-id>"))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
