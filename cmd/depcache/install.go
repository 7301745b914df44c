// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/hooks"
	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/pyenv"
	"github.com/depcache/depcache/pkg/types"
)

// installParams bundles the dependencies and flags for the install command.
type installParams struct {
	app   *App
	flags *rootFlagValues
	files []string
}

// newInstallCommand creates the `depcache install` command: a cache-aware
// resolve followed by installing the merged pin set into the configured
// interpreter's environment.
func newInstallCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve all modules and install the merged pin set",
		Long: `Resolve all modules and install the merged pin set.

Resolution is cache-aware: unchanged modules are served from cache. The
merged set is installed pin by pin, so one failing package never blocks
the rest; failures are reported per package and the command exits
non-zero if any occurred.`,
		Example: `  # Resolve and install everything
  depcache install

  # Install from explicit requirement files
  depcache install -r api/requirements.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			files, _ := cmd.Flags().GetStringArray("requirement-file")

			p := installParams{app: app, flags: flags, files: files}
			if err := runInstall(cmd.Context(), p); err != nil {
				reportInstallError(p.app.stderr, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayP("requirement-file", "r", nil, "install from an explicit requirements file (repeatable)")

	return cmd
}

// runInstall resolves every module, installs the merged set, and fires the
// post_install hook once everything is present.
func runInstall(ctx context.Context, p installParams) error {
	cfg, err := p.app.loadConfig(ctx, p.flags)
	if err != nil {
		return err
	}

	env := newEnv(cfg)
	install := func(ctx context.Context, pins []types.PackagePin) error {
		return installPins(ctx, p.app, env, pins)
	}

	orch, err := buildOrchestrator(ctx, p.app, cfg, newLogger(cfg.UI.Verbose), install)
	if err != nil {
		return err
	}

	rp := resolveParams{app: p.app, flags: p.flags, files: p.files}
	outcome, err := resolveOnce(ctx, rp, cfg, orch)
	if err != nil {
		return err
	}

	if cfg.Hooks.PostInstall.IsSet() {
		hookRunner := hooks.NewRunner("", p.app.stdout, p.app.stderr)
		hookErr := hookRunner.Run(ctx, hooks.EventPostInstall, string(cfg.Hooks.PostInstall), hooks.Env{
			CacheDir:      string(cfg.CacheDir),
			ModuleCount:   len(outcome.Results),
			ResolvedCount: outcome.Resolved,
			ReusedCount:   outcome.Reused,
			PackageCount:  len(outcome.Merged),
		})
		if hookErr != nil {
			return hookErr
		}
	}

	fmt.Fprintf(p.app.stdout, "%s %d package(s) installed\n",
		SuccessStyle.Render("✓"), len(outcome.Merged))
	return nil
}

// installPins installs each pin and reports the outcome per package. All
// pins are attempted regardless of individual failures; the joined failure
// set is returned at the end.
func installPins(ctx context.Context, app *App, env *pyenv.Env, pins []types.PackagePin) error {
	if len(pins) == 0 {
		return nil
	}

	fmt.Fprintf(app.stdout, "\nInstalling %d package(s) with %s...\n", len(pins), env.Interpreter())

	var failures []error
	for _, result := range env.Install(ctx, pins) {
		if result.Err != nil {
			fmt.Fprintf(app.stderr, "  %s %s: %v\n", ErrorStyle.Render("✗"), result.Pin, result.Err)
			failures = append(failures, result.Err)
			continue
		}
		fmt.Fprintf(app.stdout, "  %s %s\n", SuccessStyle.Render("✓"), result.Pin)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d package install(s) failed: %w", len(failures), len(pins), errors.Join(failures...))
	}
	return nil
}

// reportInstallError renders an install failure, adding the install issue
// catalog entry for per-package pip failures and falling back to the
// resolve classifier for everything earlier in the pipeline.
func reportInstallError(stderr io.Writer, err error, verbose bool) {
	var installErr *pyenv.InstallError
	if errors.As(err, &installErr) {
		renderServiceError(stderr, newServiceError(err, issue.InstallFailedId, ""))
		fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return
	}
	reportResolveError(stderr, err, verbose)
}
