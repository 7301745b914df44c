// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/depcache/depcache/internal/config"
	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/internal/hooks"
	"github.com/depcache/depcache/internal/issue"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/internal/resolve"
	"github.com/depcache/depcache/pkg/types"
)

func TestClassifyResolveIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{
			name: "resolver binary missing",
			err:  fmt.Errorf("starting resolver: %w", exec.ErrNotFound),
			want: issue.ResolverNotFoundId,
		},
		{
			name: "version conflict",
			err: &resolve.VersionConflictError{
				Package: "requests",
				ModuleA: "api", VersionA: "2.31.0",
				ModuleB: "worker", VersionB: "2.28.2",
			},
			want: issue.VersionConflictId,
		},
		{
			name: "malformed requirement",
			err: &requirement.MalformedRequirementError{
				Raw: "==1.0", Pos: 0, Reason: "missing package name",
			},
			want: issue.RequirementParseErrorId,
		},
		{
			name: "resolution failed",
			err:  &resolve.ResolutionFailedError{Module: "api", Err: errors.New("exit status 2")},
			want: issue.ResolutionFailedId,
		},
		{
			name: "hook failure",
			err: fmt.Errorf("post_resolve hook: %w", &hooks.HookError{
				Event: hooks.EventPostResolve, Err: errors.New("exit status 3"),
			}),
			want: issue.HookFailedId,
		},
		{
			name: "unclassified error",
			err:  errors.New("something else"),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyResolveIssue(tt.err); got != tt.want {
				t.Errorf("classifyResolveIssue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassifyResolveIssue_WrappedConflict(t *testing.T) {
	t.Parallel()

	// The orchestrator wraps conflicts before they reach the CLI; the
	// classifier must see through the wrapping.
	err := fmt.Errorf("merging pins: %w", &resolve.VersionConflictError{
		Package: "flask",
		ModuleA: "api", VersionA: "2.3.2",
		ModuleB: "web", VersionB: "3.0.0",
	})
	if got := classifyResolveIssue(err); got != issue.VersionConflictId {
		t.Errorf("classifyResolveIssue() = %d, want VersionConflictId", got)
	}
}

func TestRenderOutcome(t *testing.T) {
	t.Parallel()

	outcome := &resolve.Outcome{
		Results: []resolve.ModuleResult{
			{
				Module:      "api",
				Status:      resolve.StatusHit,
				Fingerprint: fingerprint.Fingerprint(strings.Repeat("ab", 32)),
				Packages:    []types.PackagePin{"flask==2.3.2", "requests==2.31.0"},
			},
			{
				Module:      "worker",
				Status:      resolve.StatusMiss,
				Fingerprint: fingerprint.Fingerprint(strings.Repeat("cd", 32)),
				Packages:    []types.PackagePin{"celery==5.3.4"},
			},
		},
		Merged:   []types.PackagePin{"celery==5.3.4", "flask==2.3.2", "requests==2.31.0"},
		Reused:   1,
		Resolved: 1,
	}

	var buf bytes.Buffer
	renderOutcome(&buf, outcome)

	out := buf.String()
	for _, want := range []string{"api", "worker", "abababababab", "cdcdcdcdcdcd", "2 module(s)", "3 package(s) merged"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderOutcome output is missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus_CoversAllStates(t *testing.T) {
	t.Parallel()

	for _, status := range []resolve.Status{resolve.StatusHit, resolve.StatusMiss, resolve.StatusStale} {
		if renderStatus(status) == "" {
			t.Errorf("renderStatus(%s) rendered empty", status)
		}
	}
}

func TestReportResolveError_ServiceErrorPassthrough(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	svcErr := newServiceError(errors.New("no requirement files found"), issue.RequirementsFileNotFoundId, "")
	reportResolveError(&buf, svcErr, false)

	if buf.Len() == 0 {
		t.Error("expected rendered output for a ServiceError")
	}
}

func TestReportResolveError_ClassifiesBareError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := &resolve.ResolutionFailedError{Module: "api", Err: errors.New("exit status 2")}
	reportResolveError(&buf, err, false)

	out := buf.String()
	if !strings.Contains(out, "api") {
		t.Errorf("expected the failing module in output, got:\n%s", out)
	}
}

func TestNewResolveCommand_Flags(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(&staticConfigProvider{cfg: config.DefaultConfig()})
	cmd := newResolveCommand(app, &rootFlagValues{})

	for _, name := range []string{"requirement-file", "search-dir", "pattern", "jobs", "watch"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("resolve should register the --%s flag", name)
		}
	}
	if flag := cmd.Flags().ShorthandLookup("r"); flag == nil || flag.Name != "requirement-file" {
		t.Error("-r should be shorthand for --requirement-file")
	}
	if flag := cmd.Flags().ShorthandLookup("p"); flag == nil || flag.Name != "pattern" {
		t.Error("-p should be shorthand for --pattern")
	}
}
