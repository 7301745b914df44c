// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/types"
)

type (
	// Resolver shells out to a configured resolver command. The command
	// receives one requirement per line on stdin and must emit one
	// name==version pin per line on stdout; blank lines, comments, and
	// option directives in the output are ignored. pip-compile invoked as
	// "python -m piptools compile --output-file=- -" speaks exactly this
	// protocol.
	Resolver struct {
		command     []string
		dir         string
		execCommand ExecCommandFunc
	}

	// ResolverOption customizes a Resolver.
	ResolverOption func(*Resolver)
)

// WithResolverExecCommand replaces the exec.Cmd factory, for tests.
func WithResolverExecCommand(fn ExecCommandFunc) ResolverOption {
	return func(r *Resolver) {
		r.execCommand = fn
	}
}

// WithResolverDir sets the working directory resolver commands run in.
func WithResolverDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.dir = dir
	}
}

// NewResolver creates a Resolver for the given command line.
func NewResolver(command []string, opts ...ResolverOption) (*Resolver, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("resolver command must not be empty")
	}
	r := &Resolver{
		command:     command,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve runs the resolver command for one module's requirement set.
func (r *Resolver) Resolve(ctx context.Context, module types.ModuleName, reqs []requirement.Canonical) ([]types.PackagePin, error) {
	var input strings.Builder
	for _, req := range reqs {
		input.WriteString(req.RequirementLine())
		input.WriteByte('\n')
	}

	cmd := r.execCommand(ctx, r.command[0], r.command[1:]...)
	cmd.Dir = r.dir
	cmd.Stdin = strings.NewReader(input.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := firstLine(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("resolver command %s failed for module %q: %w (%s)", r.command[0], module, err, detail)
		}
		return nil, fmt.Errorf("resolver command %s failed for module %q: %w", r.command[0], module, err)
	}

	return parsePins(stdout.String())
}

// parsePins extracts name==version pins from resolver output, skipping
// blank lines, comments, and option directives.
func parsePins(output string) ([]types.PackagePin, error) {
	var pins []types.PackagePin
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		// pip-compile style trailing comments: "flask==2.3.2  # via -r -"
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		pin := types.PackagePin(line)
		if ok, errs := pin.IsValid(); !ok {
			return nil, fmt.Errorf("resolver emitted an unusable line %q: %w", line, errs[0])
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
