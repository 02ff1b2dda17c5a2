package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/featforge/featforge/internal/config"
	"github.com/featforge/featforge/internal/storage"
)

// minGoVersion is the oldest Go release the SQLite driver is tested against
const minGoVersion = "v1.21.0"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installation and project health",
	Long: `Run health checks to diagnose common configuration problems.

Checks:
- Go runtime version
- Project config presence and validity
- Ledger existence and accessibility
- ANTHROPIC_API_KEY for pipeline runs

Exit codes:
  0 - All checks passed
  1 - One or more warnings
  2 - Critical failures`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		var warnings, failures int

		fmt.Printf("Running health checks...\n\n")

		// Go runtime
		fmt.Printf("%s Go runtime\n", cyan("→"))
		goVersion := "v" + strings.TrimPrefix(runtime.Version(), "go")
		if semver.IsValid(goVersion) && semver.Compare(goVersion, minGoVersion) >= 0 {
			fmt.Printf("  %s %s\n", green("✓"), runtime.Version())
		} else {
			warnings++
			fmt.Printf("  %s %s (want %s or newer)\n", yellow("⚠"), runtime.Version(), minGoVersion)
		}

		// Project config
		fmt.Printf("%s Project config\n", cyan("→"))
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cwd)
		if err != nil {
			failures++
			fmt.Printf("  %s %v\n", red("✗"), err)
		} else {
			fmt.Printf("  %s %s (%s)\n", green("✓"), cfg.ProjectName, cfg.ProjectInitials)
		}

		// Ledger
		fmt.Printf("%s Ledger\n", cyan("→"))
		if cfg == nil {
			fmt.Printf("  %s skipped (no config)\n", yellow("⚠"))
		} else if db, err := storage.NewStorage(cmd.Context(), &storage.Config{
			Path:   cfg.DatabasePath,
			Prefix: cfg.ProjectInitials,
		}); err != nil {
			failures++
			fmt.Printf("  %s %v\n", red("✗"), err)
		} else {
			stats, err := db.GetStatistics(cmd.Context())
			_ = db.Close()
			if err != nil {
				failures++
				fmt.Printf("  %s ledger query failed: %v\n", red("✗"), err)
			} else {
				fmt.Printf("  %s %s (%d features)\n", green("✓"), cfg.DatabasePath, stats.TotalFeatures)
			}
		}

		// API key
		fmt.Printf("%s Model credentials\n", cyan("→"))
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			warnings++
			fmt.Printf("  %s ANTHROPIC_API_KEY not set (pipeline and screening unavailable)\n", yellow("⚠"))
		} else {
			fmt.Printf("  %s ANTHROPIC_API_KEY set\n", green("✓"))
		}

		fmt.Println()
		switch {
		case failures > 0:
			fmt.Printf("%s %d check(s) failed\n", red("✗"), failures)
			os.Exit(2)
		case warnings > 0:
			fmt.Printf("%s %d warning(s)\n", yellow("⚠"), warnings)
			os.Exit(1)
		default:
			fmt.Printf("%s All checks passed\n", green("✓"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
