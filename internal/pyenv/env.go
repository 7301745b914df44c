// SPDX-License-Identifier: MPL-2.0

// Package pyenv talks to the local Python environment: listing installed
// packages, installing pins, querying pip for newer versions, and
// identifying the interpreter/resolver pair so cache entries can be tied
// to the environment that produced them.
//
// Every subprocess goes through an injectable ExecCommandFunc, so tests
// never spawn a real interpreter.
package pyenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/platform"
	"github.com/depcache/depcache/pkg/types"
)

// DefaultInterpreter is used when no interpreter path is configured.
const DefaultInterpreter = "python3"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// Production code uses exec.CommandContext; tests inject fakes.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Env is a handle on one Python environment, addressed by its
	// interpreter. pip is always invoked as "<interpreter> -m pip" so the
	// packages seen are exactly the interpreter's own.
	Env struct {
		interpreter string
		execCommand ExecCommandFunc
	}

	// EnvOption customizes an Env.
	EnvOption func(*Env)

	// InstallResult records the outcome of installing one pin.
	InstallResult struct {
		Pin types.PackagePin
		Err error
	}

	// InstallError reports a single pin that pip could not install.
	InstallError struct {
		Pin    types.PackagePin
		Output string
		Err    error
	}

	// pipListEntry is one record of `pip list --format=json` output.
	pipListEntry struct {
		Name          string `json:"name"`
		Version       string `json:"version"`
		LatestVersion string `json:"latest_version"`
	}
)

// WithExecCommand replaces the exec.Cmd factory, for tests.
func WithExecCommand(fn ExecCommandFunc) EnvOption {
	return func(e *Env) {
		e.execCommand = fn
	}
}

// NewEnv creates an environment handle for the given interpreter. An empty
// interpreter selects DefaultInterpreter.
func NewEnv(interpreter string, opts ...EnvOption) *Env {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	e := &Env{
		interpreter: interpreter,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interpreter returns the interpreter this environment is addressed by.
func (e *Env) Interpreter() string {
	return e.interpreter
}

func (e *Env) pip(ctx context.Context, args ...string) *exec.Cmd {
	pipArgs := append([]string{"-m", "pip"}, args...)
	return e.execCommand(ctx, e.interpreter, pipArgs...)
}

// InstalledPackages lists every package installed in the environment,
// keyed by canonical name.
func (e *Env) InstalledPackages(ctx context.Context) (map[string]string, error) {
	cmd := e.pip(ctx, "list", "--format=json")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("command %s -m pip list failed: %w", e.interpreter, err)
	}

	var listed []pipListEntry
	if err := json.Unmarshal(out, &listed); err != nil {
		return nil, fmt.Errorf("failed to parse pip list output: %w", err)
	}

	installed := make(map[string]string, len(listed))
	for _, pkg := range listed {
		installed[requirement.CanonicalName(pkg.Name)] = pkg.Version
	}
	return installed, nil
}

// Outdated asks pip which installed packages have newer versions
// available. The caller filters the result to the cached set.
func (e *Env) Outdated(ctx context.Context) ([]OutdatedPackage, error) {
	cmd := e.pip(ctx, "list", "--outdated", "--format=json")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("command %s -m pip list --outdated failed: %w", e.interpreter, err)
	}

	var listed []pipListEntry
	if err := json.Unmarshal(out, &listed); err != nil {
		return nil, fmt.Errorf("failed to parse pip list --outdated output: %w", err)
	}

	outdated := make([]OutdatedPackage, 0, len(listed))
	for _, pkg := range listed {
		outdated = append(outdated, OutdatedPackage{
			Name:    pkg.Name,
			Current: pkg.Version,
			Latest:  pkg.LatestVersion,
		})
	}
	return outdated, nil
}

// Install installs each pin in order, one pip invocation per pin so a
// failure never hides the outcome of the others. The returned results are
// in input order; failed installs carry an *InstallError.
func (e *Env) Install(ctx context.Context, pins []types.PackagePin) []InstallResult {
	results := make([]InstallResult, 0, len(pins))
	for _, pin := range pins {
		results = append(results, InstallResult{Pin: pin, Err: e.installOne(ctx, pin)})
	}
	return results
}

func (e *Env) installOne(ctx context.Context, pin types.PackagePin) error {
	cmd := e.pip(ctx, "install", string(pin))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &InstallError{
			Pin:    pin,
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}
	return nil
}

// Identity derives the environment tag for cache entries: interpreter
// version, pip version, and host platform digested together. Two
// environments with the same tag are interchangeable for resolution.
func (e *Env) Identity(ctx context.Context) (string, error) {
	pythonVersion, err := e.commandLine(ctx, e.execCommand(ctx, e.interpreter, "--version"))
	if err != nil {
		return "", fmt.Errorf("failed to identify interpreter %s: %w", e.interpreter, err)
	}

	pipVersion, err := e.commandLine(ctx, e.pip(ctx, "--version"))
	if err != nil {
		return "", fmt.Errorf("failed to identify pip for %s: %w", e.interpreter, err)
	}
	// "pip 24.0 from /usr/lib/python3/... (python 3.12)" -> "pip 24.0"
	if fields := strings.Fields(pipVersion); len(fields) >= 2 {
		pipVersion = fields[0] + " " + fields[1]
	}

	return fingerprint.EnvironmentTag(pipVersion, pythonVersion, platform.Current()), nil
}

// commandLine runs a command and returns its first output line trimmed.
func (e *Env) commandLine(_ context.Context, cmd *exec.Cmd) (string, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}

// Error implements the error interface for InstallError.
func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s: %v", e.Pin, e.Err)
}

// Unwrap returns the underlying pip invocation error.
func (e *InstallError) Unwrap() error { return e.Err }
