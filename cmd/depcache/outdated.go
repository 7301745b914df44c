// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/pyenv"
	"github.com/depcache/depcache/pkg/types"
)

// outdatedParams bundles the dependencies and flags for the outdated command.
type outdatedParams struct {
	app   *App
	flags *rootFlagValues
}

// newOutdatedCommand creates the `depcache outdated` command: pip's outdated
// list narrowed to packages the cached resolution actually pins.
func newOutdatedCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "List cached packages with newer versions on the index",
		Long: `List cached packages with newer versions on the index.

The installed environment is asked which packages have newer releases,
and the answer is narrowed to packages some cached pin covers. Nothing is
changed; run "depcache upgrade" to re-resolve against the newer versions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			p := outdatedParams{app: app, flags: flags}
			if err := runOutdated(cmd.Context(), p); err != nil {
				reportCheckError(p.app.stderr, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}

	return cmd
}

// runOutdated prints the outdated subset of the cached pin union.
func runOutdated(ctx context.Context, p outdatedParams) error {
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

	return reportOutdated(ctx, p.app, newEnv(cfg), pins)
}

// reportOutdated asks the environment which packages have newer releases
// and renders the subset some cached pin covers.
func reportOutdated(ctx context.Context, app *App, env *pyenv.Env, pins []types.PackagePin) error {
	outdated, err := env.Outdated(ctx)
	if err != nil {
		return err
	}

	stale := pyenv.FilterToCached(outdated, pins)
	if len(stale) == 0 {
		fmt.Fprintf(app.stdout, "%s all cached packages are up to date\n", SuccessStyle.Render("✓"))
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(app.stdout)
	tw.AppendHeader(table.Row{"Package", "Current", "Latest"})
	for _, pkg := range stale {
		tw.AppendRow(table.Row{pkg.Name, pkg.Current, WarningStyle.Render(pkg.Latest)})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	tw.SetStyle(style)
	tw.Render()

	fmt.Fprintf(app.stdout, "\n%d package(s) behind the index; %q re-resolves them\n",
		len(stale), "depcache upgrade")
	return nil
}
