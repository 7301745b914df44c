// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/config"
	"github.com/depcache/depcache/internal/hooks"
	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/internal/resolve"
	"github.com/depcache/depcache/internal/watch"
	"github.com/depcache/depcache/pkg/types"
)

// resolveParams bundles the dependencies and flags for the resolve command,
// enabling the core logic in runResolve to be tested without a real Cobra
// command or live resolver subprocesses.
type resolveParams struct {
	app        *App
	flags      *rootFlagValues
	files      []string // explicit requirement files (-r), bypassing discovery
	searchDirs []string // --search-dir overrides for this invocation
	pattern    string   // --pattern override for this invocation
	jobs       int      // --jobs override for this invocation
	watch      bool     // --watch mode: re-resolve on file changes
}

// newResolveCommand creates the `depcache resolve` command: fingerprint
// every module, reuse cached resolutions where the fingerprints match, and
// run the resolver only for the rest.
func newResolveCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve module requirements, reusing cached results where possible",
		Long: `Resolve module requirements, reusing cached results where possible.

Each requirements file found under the search directories becomes a module.
A module whose canonical requirement set matches its cache entry is reused
without running the resolver; only changed or uncached modules are resolved.`,
		Example: `  # Resolve every module under the current directory
  depcache resolve

  # Resolve explicit requirement files
  depcache resolve -r api/requirements.txt -r worker/requirements.txt

  # Re-resolve automatically when requirement files change
  depcache resolve --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			files, _ := cmd.Flags().GetStringArray("requirement-file")
			dirs, _ := cmd.Flags().GetStringArray("search-dir")
			pattern, _ := cmd.Flags().GetString("pattern")
			jobs, _ := cmd.Flags().GetInt("jobs")
			watchFlag, _ := cmd.Flags().GetBool("watch")

			p := resolveParams{
				app:        app,
				flags:      flags,
				files:      files,
				searchDirs: dirs,
				pattern:    pattern,
				jobs:       jobs,
				watch:      watchFlag,
			}

			if err := runResolve(cmd.Context(), p); err != nil {
				reportResolveError(p.app.stderr, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayP("requirement-file", "r", nil, "resolve an explicit requirements file (repeatable)")
	cmd.Flags().StringArray("search-dir", nil, "directory to search for requirement files (repeatable, overrides config)")
	cmd.Flags().StringP("pattern", "p", "", "requirements file pattern (overrides config)")
	cmd.Flags().Int("jobs", 0, "max concurrent module resolutions (overrides config)")
	cmd.Flags().Bool("watch", false, "stay running and re-resolve when requirement files change")

	return cmd
}

// runResolve is the core resolve logic, separated from Cobra for
// testability. It builds the engine once; watch mode reuses it across
// change cycles so cache state and resolver identity stay consistent.
func runResolve(ctx context.Context, p resolveParams) error {
	cfg, err := p.app.loadConfig(ctx, p.flags)
	if err != nil {
		return err
	}
	if len(p.searchDirs) > 0 {
		cfg.SearchDirs = make([]config.SearchDirPath, len(p.searchDirs))
		for i, dir := range p.searchDirs {
			cfg.SearchDirs[i] = config.SearchDirPath(dir)
		}
	}
	if p.pattern != "" {
		cfg.RequirementsPattern = config.RequirementsPattern(p.pattern)
	}
	if p.jobs > 0 {
		cfg.Jobs = config.Jobs(p.jobs)
	}
	if ok, errs := cfg.IsValid(); !ok {
		return fmt.Errorf("configuration after flag overrides is invalid: %w", errs[0])
	}

	orch, err := buildOrchestrator(ctx, p.app, cfg, newLogger(cfg.UI.Verbose), nil)
	if err != nil {
		return err
	}

	if !p.watch {
		_, err := resolveOnce(ctx, p, cfg, orch)
		return err
	}
	return runResolveWatch(ctx, p, cfg, orch)
}

// resolveOnce runs one discovery + resolution pass and renders the outcome.
func resolveOnce(ctx context.Context, p resolveParams, cfg *config.Config, orch *resolve.Orchestrator) (*resolve.Outcome, error) {
	inputs, diags, err := discoverInputs(cfg, p.files)
	renderDiagnostics(p.app.stderr, diags)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, newServiceError(
			fmt.Errorf("no requirement files found under %v", searchDirs(cfg)),
			issue.RequirementsFileNotFoundId, "")
	}

	outcome, err := orch.Run(ctx, inputs)
	if err != nil {
		return nil, err
	}

	renderOutcome(p.app.stdout, outcome)
	return outcome, nil
}

// runResolveWatch executes one resolution immediately, then re-resolves on
// every requirement file change until the context is cancelled. A failed
// cycle is reported but never stops the loop; the user may fix the file and
// save again.
func runResolveWatch(ctx context.Context, p resolveParams, cfg *config.Config, orch *resolve.Orchestrator) error {
	fmt.Fprintf(p.app.stdout, "%s Watch mode: initial resolution\n", VerboseHighlightStyle.Render("→"))
	if _, err := resolveOnce(ctx, p, cfg, orch); err != nil {
		fmt.Fprintf(p.app.stderr, "%s Initial resolution failed: %v\n", WarningStyle.Render("!"), err)
	}

	fmt.Fprintf(p.app.stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n\n", VerboseHighlightStyle.Render("→"))

	w, err := watch.New(watch.Config{
		Patterns: []string{"**/" + string(cfg.RequirementsPattern), "**/pyproject.toml"},
		CacheDir: string(cfg.CacheDir),
		Stdout:   p.app.stdout,
		Stderr:   p.app.stderr,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(p.app.stdout, "%s Detected %d change(s). Re-resolving...\n",
				VerboseHighlightStyle.Render("→"), len(changed))
			if _, err := resolveOnce(ctx, p, cfg, orch); err != nil {
				reportResolveError(p.app.stderr, err, p.flags.verbose)
			}
			fmt.Fprintf(p.app.stdout, "\n%s Watching for changes...\n\n", VerboseHighlightStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return w.Run(ctx)
}

// renderOutcome prints the per-module result table and the reuse summary.
func renderOutcome(w io.Writer, outcome *resolve.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Module", "Status", "Packages", "Fingerprint"})
	for _, res := range outcome.Results {
		t.AppendRow(table.Row{
			CmdStyle.Render(string(res.Module)),
			renderStatus(res.Status),
			len(res.Packages),
			SubtitleStyle.Render(res.Fingerprint.Short()),
		})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()

	fmt.Fprintf(w, "\n%d module(s): %s reused, %s resolved, %d package(s) merged\n",
		len(outcome.Results),
		SuccessStyle.Render(fmt.Sprintf("%d", outcome.Reused)),
		WarningStyle.Render(fmt.Sprintf("%d", outcome.Resolved)),
		len(outcome.Merged))
}

// renderStatus styles one cache status cell.
func renderStatus(status resolve.Status) string {
	return statusStyle(status == resolve.StatusHit).Render(string(status))
}

// classifyResolveIssue maps a resolution error to its issue catalog entry.
// Zero means no catalog entry applies.
func classifyResolveIssue(err error) issue.Id {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return issue.ResolverNotFoundId
	case errors.Is(err, resolve.ErrVersionConflict):
		return issue.VersionConflictId
	case errors.Is(err, requirement.ErrMalformedRequirement):
		return issue.RequirementParseErrorId
	case errors.Is(err, hooks.ErrHookFailed):
		return issue.HookFailedId
	default:
		var rf *resolve.ResolutionFailedError
		if errors.As(err, &rf) {
			return issue.ResolutionFailedId
		}
	}
	return 0
}

// reportResolveError renders a resolution failure: issue catalog help when
// the error classifies, then the styled error line itself.
func reportResolveError(stderr io.Writer, err error, verbose bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(stderr, svcErr)
	} else if id := classifyResolveIssue(err); id != 0 {
		renderServiceError(stderr, newServiceError(err, id, ""))
	}
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
}
