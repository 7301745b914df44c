// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/config"
	"github.com/depcache/depcache/internal/discovery"
	"github.com/depcache/depcache/internal/hooks"
	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/pyenv"
	"github.com/depcache/depcache/internal/resolve"
	"github.com/depcache/depcache/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer — all Cobra command handlers receive an App
	// reference and build the engine collaborators through its helpers.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp. Tests supply
	// fakes to isolate command behavior.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	// This abstraction enables testing with custom config sources or mock
	// implementations.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// rootFlagValues carries the persistent root flags into command handlers.
	rootFlagValues struct {
		verbose    bool
		configPath string
		cacheDir   string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// newLogger builds the logger handed to engine collaborators; --verbose
// lowers the level to Debug.
func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "depcache"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig loads configuration and applies root flag overrides on top:
// --cache-dir replaces the configured cache directory and --verbose forces
// verbose UI output for this invocation.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	if flags.cacheDir != "" {
		cfg.CacheDir = config.CacheDirPath(flags.cacheDir)
	}
	if flags.verbose {
		cfg.UI.Verbose = true
	}

	if ok, errs := cfg.IsValid(); !ok {
		return nil, fmt.Errorf("configuration after flag overrides is invalid: %w", errs[0])
	}
	return cfg, nil
}

// newStore builds the file-backed cache store rooted at the configured
// cache directory.
func newStore(cfg *config.Config) *cache.FileStore {
	return cache.NewFileStore(string(cfg.CacheDir))
}

// newEnv builds the Python environment handle for the configured
// interpreter.
func newEnv(cfg *config.Config) *pyenv.Env {
	return pyenv.NewEnv(string(cfg.Interpreter))
}

// effectiveInterpreter resolves the interpreter path the same way newEnv
// does, for places that need the string itself.
func effectiveInterpreter(cfg *config.Config) string {
	if cfg.Interpreter == "" {
		return pyenv.DefaultInterpreter
	}
	return string(cfg.Interpreter)
}

// resolverCommand returns the configured resolver argv, defaulting to
// pip-compile run as a module of the configured interpreter. The default
// matches the stdin/stdout protocol pyenv.Resolver speaks.
func resolverCommand(cfg *config.Config) []string {
	if len(cfg.ResolverCommand) > 0 {
		return []string(cfg.ResolverCommand)
	}
	return []string{
		effectiveInterpreter(cfg),
		"-m", "piptools", "compile",
		"--quiet", "--no-header", "--no-annotate",
		"--output-file=-", "-",
	}
}

// newResolver builds the subprocess resolver from configuration.
func newResolver(cfg *config.Config) (*pyenv.Resolver, error) {
	return pyenv.NewResolver(resolverCommand(cfg))
}

// resolverIdentity derives the identity tag recorded in cache entries.
// When the interpreter cannot be identified the tag degrades to empty with
// a warning: entries written that way are conservatively treated as stale
// by later healthy runs.
func resolverIdentity(ctx context.Context, env *pyenv.Env) string {
	identity, err := env.Identity(ctx)
	if err != nil {
		log.Warn("cannot identify interpreter environment; cache entries from this run will not be reusable", "error", err)
		return ""
	}
	return identity
}

// searchDirs returns the configured search directories, defaulting to the
// current directory.
func searchDirs(cfg *config.Config) []string {
	if len(cfg.SearchDirs) == 0 {
		return []string{"."}
	}
	dirs := make([]string, len(cfg.SearchDirs))
	for i, d := range cfg.SearchDirs {
		dirs[i] = string(d)
	}
	return dirs
}

// discoverInputs walks the search directories (or reads the explicit
// requirement files when given) and converts discovered modules into
// orchestrator inputs.
func discoverInputs(cfg *config.Config, files []string) ([]resolve.ModuleInput, []discovery.Diagnostic, error) {
	d := discovery.New(string(cfg.RequirementsPattern), searchDirs(cfg))

	var (
		modules []discovery.Module
		diags   []discovery.Diagnostic
		err     error
	)
	if len(files) > 0 {
		modules, diags, err = d.FromFiles(files)
	} else {
		modules, diags, err = d.Discover()
	}
	if err != nil {
		return nil, diags, issue.WrapWithOperation(err, "discover requirement files")
	}

	inputs := make([]resolve.ModuleInput, 0, len(modules))
	for _, m := range modules {
		inputs = append(inputs, resolve.ModuleInput{
			Module:       m.Name,
			Requirements: m.Requirements,
		})
	}
	return inputs, diags, nil
}

// buildOrchestrator assembles the resolution engine from configuration.
// Configured pre/post-resolve hook scripts become orchestrator hooks; the
// optional install function runs after a successful merge.
func buildOrchestrator(ctx context.Context, app *App, cfg *config.Config, logger *log.Logger, install func(context.Context, []types.PackagePin) error) (*resolve.Orchestrator, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	opts := resolve.Options{
		Store:            newStore(cfg),
		Resolver:         resolver.Resolve,
		ResolverIdentity: resolverIdentity(ctx, newEnv(cfg)),
		Jobs:             int(cfg.Jobs),
		Install:          install,
		Logger:           logger,
	}

	hookRunner := hooks.NewRunner("", app.stdout, app.stderr)
	if cfg.Hooks.PreResolve.IsSet() {
		script := string(cfg.Hooks.PreResolve)
		opts.PreResolve = func(ctx context.Context, inputs []resolve.ModuleInput) error {
			return hookRunner.Run(ctx, hooks.EventPreResolve, script, hooks.Env{
				CacheDir:    string(cfg.CacheDir),
				ModuleCount: len(inputs),
			})
		}
	}
	if cfg.Hooks.PostResolve.IsSet() {
		script := string(cfg.Hooks.PostResolve)
		opts.PostResolve = func(ctx context.Context, outcome *resolve.Outcome) error {
			return hookRunner.Run(ctx, hooks.EventPostResolve, script, hooks.Env{
				CacheDir:      string(cfg.CacheDir),
				ModuleCount:   len(outcome.Results),
				ResolvedCount: outcome.Resolved,
				ReusedCount:   outcome.Reused,
				PackageCount:  len(outcome.Merged),
			})
		}
	}

	return resolve.New(opts)
}

// renderDiagnostics writes discovery diagnostics to stderr with lipgloss
// styling.
func renderDiagnostics(stderr io.Writer, diags []discovery.Diagnostic) {
	for _, diag := range diags {
		prefix := WarningStyle.Render("warning")
		if diag.Severity == discovery.SeverityError {
			prefix = ErrorStyle.Render("error")
		}

		if diag.Path != "" {
			_, _ = fmt.Fprintf(stderr, "%s: %s (%s)\n", prefix, diag.Message, diag.Path)
			continue
		}

		_, _ = fmt.Fprintf(stderr, "%s: %s\n", prefix, diag.Message)
	}
}
