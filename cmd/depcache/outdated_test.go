// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/depcache/depcache/internal/config"
	"github.com/depcache/depcache/internal/pyenv"
	"github.com/depcache/depcache/pkg/types"
)

// fakePipEnv builds an Env whose every pip invocation prints the given
// payload, recording the argv of each call.
func fakePipEnv(payload string, calls *[][]string) *pyenv.Env {
	return pyenv.NewEnv("python3", pyenv.WithExecCommand(func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		if calls != nil {
			*calls = append(*calls, append([]string{name}, arg...))
		}
		return exec.CommandContext(ctx, "printf", "%s", payload)
	}))
}

func TestReportOutdated_FiltersToCachedPins(t *testing.T) {
	requireUnixTools(t)

	// pip reports three outdated packages; only Flask is covered by a
	// cached pin. The name comparison is canonical, so pip's casing must
	// not matter.
	payload := `[
  {"name": "Flask", "version": "2.3.2", "latest_version": "3.0.0"},
  {"name": "requests", "version": "2.31.0", "latest_version": "2.32.0"},
  {"name": "rich", "version": "13.0.0", "latest_version": "13.7.0"}
]`
	var calls [][]string
	env := fakePipEnv(payload, &calls)
	app, stdout, _ := newTestApp(&staticConfigProvider{cfg: config.DefaultConfig()})

	pins := []types.PackagePin{"flask==2.3.2", "celery==5.3.4"}
	if err := reportOutdated(context.Background(), app, env, pins); err != nil {
		t.Fatalf("reportOutdated() error = %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"Flask", "2.3.2", "3.0.0", "1 package(s) behind the index"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"requests", "rich"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("unpinned package %q should be filtered out, got:\n%s", unwanted, out)
		}
	}

	wantArgs := []string{"python3", "-m", "pip", "list", "--outdated", "--format=json"}
	if len(calls) != 1 || !slices.Equal(calls[0], wantArgs) {
		t.Errorf("pip invocation = %v, want %v", calls, wantArgs)
	}
}

func TestReportOutdated_AllCurrent(t *testing.T) {
	requireUnixTools(t)

	env := fakePipEnv("[]", nil)
	app, stdout, _ := newTestApp(&staticConfigProvider{cfg: config.DefaultConfig()})

	err := reportOutdated(context.Background(), app, env, []types.PackagePin{"flask==2.3.2"})
	if err != nil {
		t.Fatalf("reportOutdated() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "all cached packages are up to date") {
		t.Errorf("output should report everything current, got:\n%s", stdout.String())
	}
}

func TestRunOutdated_EmptyCacheIsAnError(t *testing.T) {
	t.Parallel()

	app, _, flags, _ := newCacheTestApp(t)
	err := runOutdated(context.Background(), outdatedParams{app: app, flags: flags})
	if err == nil {
		t.Fatal("expected error for an empty cache")
	}
	if !strings.Contains(err.Error(), "is empty") || !strings.Contains(err.Error(), "depcache resolve") {
		t.Errorf("error should point at resolve, got: %v", err)
	}
}
