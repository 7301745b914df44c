// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/resolve"
	"github.com/depcache/depcache/pkg/types"
)

// upgradeParams bundles the dependencies and flags for the upgrade command.
type upgradeParams struct {
	app    *App
	flags  *rootFlagValues
	module string
}

// newUpgradeCommand creates the `depcache upgrade` command: drop cached
// entries so the next resolution runs the resolver again and picks up newer
// versions allowed by the declared constraints.
func newUpgradeCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [module]",
		Short: "Re-resolve modules from scratch, ignoring cached pins",
		Long: `Re-resolve modules from scratch, ignoring cached pins.

Cached entries pin exact versions, so a module whose requirements have not
changed keeps its old pins forever. Upgrade invalidates the cache (for one
module, or for all of them) and resolves again, letting the resolver pick
the newest versions the constraints allow.`,
		Example: `  # Upgrade every module
  depcache upgrade

  # Upgrade only the api module
  depcache upgrade api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			p := upgradeParams{app: app, flags: flags}
			if len(args) == 1 {
				p.module = args[0]
			}
			if err := runUpgrade(cmd.Context(), p); err != nil {
				reportResolveError(p.app.stderr, err, flags.verbose)
				return &ExitError{Code: types.ExitFailure, Err: err}
			}
			return nil
		},
	}

	return cmd
}

// runUpgrade invalidates the targeted cache entries and resolves again.
func runUpgrade(ctx context.Context, p upgradeParams) error {
	cfg, err := p.app.loadConfig(ctx, p.flags)
	if err != nil {
		return err
	}

	store := newStore(cfg)
	if p.module == "" {
		if err := store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		fmt.Fprintf(p.app.stdout, "%s Invalidated all cached entries\n", SubtitleStyle.Render("→"))
	} else {
		if err := store.Delete(ctx, types.ModuleName(p.module)); err != nil {
			return fmt.Errorf("failed to invalidate cache entry for %q: %w", p.module, err)
		}
		fmt.Fprintf(p.app.stdout, "%s Invalidated cached entry for %s\n",
			SubtitleStyle.Render("→"), CmdStyle.Render(p.module))
	}

	orch, err := buildOrchestrator(ctx, p.app, cfg, newLogger(cfg.UI.Verbose), nil)
	if err != nil {
		return err
	}

	rp := resolveParams{app: p.app, flags: p.flags}
	outcome, err := resolveOnce(ctx, rp, cfg, orch)
	if err != nil {
		return err
	}

	if p.module != "" && !outcomeHasModule(outcome.Results, p.module) {
		return newServiceError(
			fmt.Errorf("module %q was not found by discovery", p.module),
			issue.ModuleNotFoundId, "")
	}
	return nil
}

// outcomeHasModule reports whether the run produced a result for the named
// module.
func outcomeHasModule(results []resolve.ModuleResult, module string) bool {
	for _, r := range results {
		if r.Module == types.ModuleName(module) {
			return true
		}
	}
	return false
}
