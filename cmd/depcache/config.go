// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/depcache/depcache/internal/config"
	"github.com/depcache/depcache/internal/issue"
)

// newConfigCommand creates the `depcache config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage depcache configuration",
		Long: `Manage depcache configuration.

Configuration is stored in:
  - Linux: ~/.config/depcache/config.cue
  - macOS: ~/Library/Application Support/depcache/config.cue
  - Windows: %APPDATA%\depcache\config.cue

A .depcache.cue file in the working directory overrides the user config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return err
			}

			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlagValues) error {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(app.stderr, rendered)
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	resolved, pathErr := config.ResolvedPath(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if pathErr == nil && resolved != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), resolved)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("cache_dir"), valueStyle.Render(string(cfg.CacheDir)))
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("requirements_pattern"), valueStyle.Render(string(cfg.RequirementsPattern)))
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("interpreter"), valueStyle.Render(effectiveInterpreter(cfg)))
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("jobs"), valueStyle.Render(strconv.Itoa(int(cfg.Jobs))))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("search_dirs"))
	if len(cfg.SearchDirs) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(working directory)"))
	} else {
		for _, dir := range cfg.SearchDirs {
			fmt.Fprintf(app.stdout, "  - %s\n", valueStyle.Render(string(dir)))
		}
	}

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("resolver_command"))
	if len(cfg.ResolverCommand) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(pip-compile via the interpreter)"))
	} else {
		fmt.Fprintf(app.stdout, "  %s\n", valueStyle.Render(strings.Join(cfg.ResolverCommand, " ")))
	}

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("hooks"))
	fmt.Fprintf(app.stdout, "  pre_resolve: %s\n", summarizeScript(string(cfg.Hooks.PreResolve)))
	fmt.Fprintf(app.stdout, "  post_resolve: %s\n", summarizeScript(string(cfg.Hooks.PostResolve)))
	fmt.Fprintf(app.stdout, "  post_install: %s\n", summarizeScript(string(cfg.Hooks.PostInstall)))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(app.stdout, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(app.stdout, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))

	return nil
}

// summarizeScript renders a hook script on one line: its first line, with
// an ellipsis when more follow.
func summarizeScript(script string) string {
	trimmed := strings.TrimSpace(script)
	if trimmed == "" {
		return SubtitleStyle.Render("(none)")
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	if rest != "" {
		return SuccessStyle.Render(first + " ...")
	}
	return SuccessStyle.Render(first)
}

func initConfig(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err = config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Created default configuration at %s/config.cue\n", SuccessStyle.Render("✓"), cfgDir)
	return nil
}

func showConfigPath(ctx context.Context, app *App, flags *rootFlagValues) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s/config.cue\n", cfgDir)

	resolved, err := config.ResolvedPath(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err == nil {
		if resolved == "" {
			resolved = "(none; built-in defaults)"
		}
		fmt.Fprintf(app.stdout, "Would load: %s\n", resolved)
	}

	return nil
}

func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{})
	if err != nil {
		return err
	}

	switch key {
	case "cache_dir":
		cfg.CacheDir = config.CacheDirPath(value)

	case "requirements_pattern":
		cfg.RequirementsPattern = config.RequirementsPattern(value)

	case "interpreter":
		cfg.Interpreter = config.InterpreterPath(value)

	case "jobs":
		jobs, convErr := strconv.Atoi(value)
		if convErr != nil {
			return fmt.Errorf("invalid jobs: %q is not a number", value)
		}
		cfg.Jobs = config.Jobs(jobs)

	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"

	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: cache_dir, requirements_pattern, interpreter, jobs, ui.verbose, ui.color_scheme", key)
	}

	if ok, errs := cfg.IsValid(); !ok {
		return fmt.Errorf("rejected %s = %q: %w", key, value, errs[0])
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}
