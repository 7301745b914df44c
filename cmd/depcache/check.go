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

	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/pyenv"
	"github.com/depcache/depcache/pkg/types"
)

// checkParams bundles the dependencies and flags for the check command.
type checkParams struct {
	app     *App
	flags   *rootFlagValues
	showAll bool
}

// errDrift marks check failures caused by the environment deviating from
// the cached pins, as opposed to the check itself failing. The command
// maps it to its own exit code so CI scripts can branch on the difference.
var errDrift = errors.New("environment drift")

// newCheckCommand creates the `depcache check` command: a read-only
// comparison of the installed environment against the cached resolution.
func newCheckCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the environment matches the cached resolution",
		Long: `Verify the environment matches the cached resolution.

Every pinned package from the cache is compared against what is actually
installed. Missing packages and version mismatches are reported; nothing
is modified. The command exits with code 2 when the environment has
drifted and code 1 on operational failures, which makes it suitable as a
CI guard.`,
		Example: `  # Report drift only
  depcache check

  # Show every package, including ones that match
  depcache check --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			showAll, _ := cmd.Flags().GetBool("all")

			p := checkParams{app: app, flags: flags, showAll: showAll}
			if err := runCheck(cmd.Context(), p); err != nil {
				reportCheckError(p.app.stderr, err, flags.verbose)
				return &ExitError{Code: checkExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "show matching packages and uncovered installs, not just drift")

	return cmd
}

// runCheck validates the union of all cached pins against the interpreter's
// installed set.
func runCheck(ctx context.Context, p checkParams) error {
	cfg, err := p.app.loadConfig(ctx, p.flags)
	if err != nil {
		return err
	}

	entries, err := newStore(cfg).List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("cache at %s is empty; run %q first", cfg.CacheDir, "depcache resolve")
	}

	var pins []types.PackagePin
	for _, entry := range entries {
		pins = append(pins, entry.ResolvedPackages...)
	}

	report, err := pyenv.NewValidator(newEnv(cfg)).Check(ctx, pins)
	if err != nil {
		return err
	}

	renderReport(p.app.stdout, report, p.showAll)

	if !report.OK() {
		return fmt.Errorf("%w: %d missing, %d version mismatch(es)",
			errDrift, report.Count(pyenv.StateMissing), report.Count(pyenv.StateVersionMismatch))
	}
	fmt.Fprintf(p.app.stdout, "%s environment matches %d cached package(s)\n",
		SuccessStyle.Render("✓"), len(report.Findings))
	return nil
}

// renderReport prints the validation findings. Without showAll only
// drifted packages appear; with it the table covers everything plus any
// installed packages no cache entry pins.
func renderReport(w io.Writer, report pyenv.Report, showAll bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Package", "Pinned", "Installed", "State"})

	rows := 0
	for _, f := range report.Findings {
		if !showAll && f.State == pyenv.StatePresent {
			continue
		}
		got := f.Got
		if got == "" {
			got = "-"
		}
		tw.AppendRow(table.Row{f.Name, f.Want, got, renderState(f.State)})
		rows++
	}

	if rows > 0 {
		style := table.StyleLight
		style.Options.DrawBorder = false
		tw.SetStyle(style)
		tw.Render()
	}

	if showAll && len(report.Extras) > 0 {
		fmt.Fprintf(w, "\n%s %d installed package(s) not pinned by any module:\n",
			SubtitleStyle.Render("→"), len(report.Extras))
		for _, name := range report.Extras {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}

// renderState styles a package state for terminal output.
func renderState(state pyenv.PackageState) string {
	switch state {
	case pyenv.StatePresent:
		return SuccessStyle.Render(string(state))
	case pyenv.StateVersionMismatch:
		return WarningStyle.Render(string(state))
	default:
		return ErrorStyle.Render(string(state))
	}
}

// checkExitCode maps a check failure to its exit code: drift findings get
// ExitDrift, anything else the general failure code.
func checkExitCode(err error) types.ExitCode {
	if errors.Is(err, errDrift) {
		return types.ExitDrift
	}
	return types.ExitFailure
}

// reportCheckError renders a check failure. Probing the environment needs a
// working interpreter, so a missing one gets its catalog entry.
func reportCheckError(stderr io.Writer, err error, verbose bool) {
	if errors.Is(err, exec.ErrNotFound) {
		renderServiceError(stderr, newServiceError(err, issue.InterpreterNotFoundId, ""))
	}
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
}
