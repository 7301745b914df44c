// SPDX-License-Identifier: MPL-2.0

// Package hooks executes user-configured lifecycle scripts with an embedded
// POSIX shell interpreter (mvdan.cc/sh). Scripts never go through the system
// shell, so behavior is identical across platforms. Each run exports the
// current cache state as DEPCACHE_* environment variables.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/depcache/depcache/pkg/types"
)

// Event identifies the lifecycle point a hook script runs at. The value is
// the config field name and is exported to the script as DEPCACHE_EVENT.
type Event string

const (
	EventPreResolve  Event = "pre_resolve"
	EventPostResolve Event = "post_resolve"
	EventPostInstall Event = "post_install"
)

// ErrHookFailed is the sentinel error wrapped by HookError.
var ErrHookFailed = errors.New("hook failed")

// HookError reports a hook script that could not be run or exited non-zero.
// It wraps ErrHookFailed for errors.Is() compatibility; the underlying cause,
// when there is one, is carried in Err.
type HookError struct {
	Event    Event
	ExitCode types.ExitCode
	Err      error
}

// Error implements the error interface for HookError.
func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s hook: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("%s hook exited with status %s", e.Event, e.ExitCode)
}

// Unwrap returns ErrHookFailed for errors.Is() compatibility.
func (e *HookError) Unwrap() error { return ErrHookFailed }

// Env carries the values exported to hook scripts as DEPCACHE_* variables.
// Counts that do not apply to an event yet (resolved counts in pre_resolve,
// for example) are exported as 0 rather than left unset, so scripts can read
// every variable unconditionally.
type Env struct {
	CacheDir      string
	ModuleCount   int
	ResolvedCount int
	ReusedCount   int
	PackageCount  int
}

// environ extends the process environment with the DEPCACHE_* variables.
func (e Env) environ(event Event) []string {
	return append(os.Environ(),
		"DEPCACHE_EVENT="+string(event),
		"DEPCACHE_CACHE_DIR="+e.CacheDir,
		"DEPCACHE_MODULE_COUNT="+strconv.Itoa(e.ModuleCount),
		"DEPCACHE_RESOLVED_COUNT="+strconv.Itoa(e.ResolvedCount),
		"DEPCACHE_REUSED_COUNT="+strconv.Itoa(e.ReusedCount),
		"DEPCACHE_PACKAGE_COUNT="+strconv.Itoa(e.PackageCount),
	)
}

// Runner executes hook scripts in a fixed working directory with shared
// stdio. One Runner is built per command invocation and reused for every
// event that fires during it.
type Runner struct {
	dir    string
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

// NewRunner creates a Runner. dir is the working directory for scripts; an
// empty dir inherits the process working directory. Nil writers default to
// the process stdout/stderr.
func NewRunner(dir string, stdout, stderr io.Writer) *Runner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Runner{
		dir:    dir,
		stdout: stdout,
		stderr: stderr,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "hooks",
		}),
	}
}

// Run parses and executes one hook script. A blank script is a no-op. A nil
// return means the script exited zero; a script that exits non-zero returns
// a *HookError carrying the exit code, and any other failure (syntax error,
// cancelled context) returns a *HookError carrying the cause.
func (r *Runner) Run(ctx context.Context, event Event, script string, env Env) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(script), string(event))
	if err != nil {
		return &HookError{Event: event, Err: fmt.Errorf("syntax error: %w", err)}
	}

	runner, err := interp.New(
		interp.Dir(r.dir),
		interp.Env(expand.ListEnviron(env.environ(event)...)),
		interp.StdIO(nil, r.stdout, r.stderr),
	)
	if err != nil {
		return &HookError{Event: event, Err: fmt.Errorf("create interpreter: %w", err)}
	}

	r.logger.Debug("running hook", "event", event)

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &HookError{Event: event, ExitCode: types.ExitCode(exitStatus)}
		}
		return &HookError{Event: event, Err: err}
	}
	return nil
}
