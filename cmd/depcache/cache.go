// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/pkg/types"
)

// newCacheCommand creates the `depcache cache` command group for inspecting
// and invalidating cached resolutions.
func newCacheCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached resolutions",
		Long: `Inspect and invalidate cached resolutions.

Each module's resolution lives in its own JSON file under the cache
directory, keyed by a fingerprint of the module's canonical requirement
set. Entries can be listed, shown in full, and deleted individually or
wholesale; deleting an entry forces re-resolution on the next run.`,
	}

	cmd.AddCommand(newCacheListCommand(app, flags))
	cmd.AddCommand(newCacheInfoCommand(app, flags))
	cmd.AddCommand(newCacheClearCommand(app, flags))

	return cmd
}

func newCacheListCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			if err := runCacheList(cmd.Context(), app, flags); err != nil {
				reportCacheError(app, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}
}

func newCacheInfoCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "info <module>",
		Short: "Show one cached entry in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			if err := runCacheInfo(cmd.Context(), app, flags, args[0]); err != nil {
				reportCacheError(app, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}
}

func newCacheClearCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached entries",
		Long: `Delete cached entries.

Without --module every entry is removed and the next run resolves all
modules from scratch. With --module only that module's entry is removed.`,
		Example: `  # Invalidate everything
  depcache cache clear

  # Invalidate only the api module
  depcache cache clear --module api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			module, _ := cmd.Flags().GetString("module")

			if err := runCacheClear(cmd.Context(), app, flags, module); err != nil {
				reportCacheError(app, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().String("module", "", "invalidate only this module's entry")

	return cmd
}

// runCacheList renders a one-line summary per cached entry.
func runCacheList(ctx context.Context, app *App, flags *rootFlagValues) error {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	entries, err := newStore(cfg).List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(app.stdout, "Cache at %s is empty\n", cfg.CacheDir)
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(app.stdout)
	tw.AppendHeader(table.Row{"Module", "Packages", "Fingerprint", "Created", "Resolver"})
	for _, entry := range entries {
		tw.AppendRow(table.Row{
			CmdStyle.Render(string(entry.ModuleName)),
			len(entry.ResolvedPackages),
			SubtitleStyle.Render(entry.Fingerprint.Short()),
			entry.CreatedAt.Local().Format("2006-01-02 15:04"),
			entry.ResolverIdentity,
		})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	tw.SetStyle(style)
	tw.Render()

	byModule := make(map[string]fingerprint.Fingerprint, len(entries))
	for _, entry := range entries {
		byModule[string(entry.ModuleName)] = entry.Fingerprint
	}
	fmt.Fprintf(app.stdout, "\n%d cached entr%s under %s, combined fingerprint %s\n",
		len(entries), pluralY(len(entries)), cfg.CacheDir,
		fingerprint.Combined(byModule).Short())
	return nil
}

// runCacheInfo prints a full entry, pins included.
func runCacheInfo(ctx context.Context, app *App, flags *rootFlagValues, module string) error {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	entry, err := newStore(cfg).Get(ctx, types.ModuleName(module))
	if err != nil {
		return err
	}
	if entry == nil {
		return newServiceError(
			fmt.Errorf("no cached entry for module %q", module),
			issue.ModuleNotFoundId, "")
	}

	fmt.Fprintf(app.stdout, "%s\n", TitleStyle.Render(string(entry.ModuleName)))
	fmt.Fprintf(app.stdout, "  Fingerprint: %s\n", entry.Fingerprint)
	fmt.Fprintf(app.stdout, "  Created:     %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(app.stdout, "  Resolver:    %s\n", entry.ResolverIdentity)
	fmt.Fprintf(app.stdout, "  Packages:    %d\n", len(entry.ResolvedPackages))
	for _, pin := range entry.ResolvedPackages {
		fmt.Fprintf(app.stdout, "    %s\n", pin)
	}
	return nil
}

// runCacheClear deletes one entry or all of them.
func runCacheClear(ctx context.Context, app *App, flags *rootFlagValues, module string) error {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	store := newStore(cfg)
	if module == "" {
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		if err := store.DeleteAll(ctx); err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s Cleared %d cached entr%s\n",
			SuccessStyle.Render("✓"), len(entries), pluralY(len(entries)))
		return nil
	}

	entry, err := store.Get(ctx, types.ModuleName(module))
	if err != nil {
		var corruptErr *cache.CorruptEntryError
		if !errors.As(err, &corruptErr) {
			return err
		}
		// A corrupt entry is exactly what clear is for.
	}
	if entry == nil && err == nil {
		return newServiceError(
			fmt.Errorf("no cached entry for module %q", module),
			issue.ModuleNotFoundId, "")
	}

	if err := store.Delete(ctx, types.ModuleName(module)); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Cleared cached entry for %s\n",
		SuccessStyle.Render("✓"), CmdStyle.Render(module))
	return nil
}

// reportCacheError renders a cache command failure, surfacing the
// corruption issue when an entry could not even be decoded.
func reportCacheError(app *App, err error, verbose bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(app.stderr, svcErr)
		return
	}
	var corruptErr *cache.CorruptEntryError
	if errors.As(err, &corruptErr) {
		renderServiceError(app.stderr, newServiceError(err, issue.CacheCorruptionId, ""))
	}
	fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
}

// pluralY picks the y/ies suffix for "entry".
func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
