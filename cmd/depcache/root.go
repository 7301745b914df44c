// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for depcache.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the depcache command tree. The returned flags value
// is shared with every subcommand handler; Cobra fills it during parsing.
func newRootCommand(app *App) (*cobra.Command, *rootFlagValues) {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "depcache",
		Short: "A content-addressed dependency resolution cache for Python projects",
		Long: TitleStyle.Render("depcache") + SubtitleStyle.Render(" - A content-addressed dependency resolution cache") + `

depcache tracks every requirements file in your project as its own module,
fingerprints each module's requirement set, and re-resolves only the
modules whose requirements actually changed. Resolved pins are cached
per module and merged into one installable set.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Keep your dependencies in requirements*.txt files (or pyproject.toml)
  2. Run 'depcache resolve' to pin them; unchanged modules come from cache
  3. Run 'depcache install' to bring the environment up to date

` + SubtitleStyle.Render("Examples:") + `
  depcache resolve          Resolve all modules (cache-aware)
  depcache resolve --watch  Re-resolve whenever a requirements file changes
  depcache install          Resolve, then install the merged pin set
  depcache check            Compare cached pins against the environment
  depcache cache list       Show every cached module resolution`,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/depcache/config.cue)")
	rootCmd.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", "", "cache directory (default from config: .depcache)")

	rootCmd.AddCommand(newResolveCommand(app, flags))
	rootCmd.AddCommand(newInstallCommand(app, flags))
	rootCmd.AddCommand(newUpgradeCommand(app, flags))
	rootCmd.AddCommand(newCheckCommand(app, flags))
	rootCmd.AddCommand(newOutdatedCommand(app, flags))
	rootCmd.AddCommand(newCacheCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	return rootCmd, flags
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd, _ := newRootCommand(app)

	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.Code
			// A success or out-of-range code on an error path would lie to
			// the shell; report the general failure code instead.
			if code.IsSuccess() || code.Validate() != nil {
				code = types.ExitFailure
			}
			os.Exit(int(code))
		}
		os.Exit(int(types.ExitFailure))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
