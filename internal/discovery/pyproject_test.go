// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const shopPyproject = `[project]
name = "shop"
version = "1.0.0"
dependencies = [
    "flask>=2.0",
    "sqlalchemy==2.0.20",
]

[project.optional-dependencies]
dev = ["pytest>=7.0", "black==23.7.0"]
docs = ["sphinx>=7.0"]
empty = []
`

func TestDiscover_Pyproject(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "shop", "pyproject.toml"), shopPyproject)

	modules, diags, err := New("", []string{tmpDir}).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	// Core dependencies plus one module per non-empty optional group.
	want := []string{"shop", "shop[dev]", "shop[docs]"}
	if got := moduleNames(modules); !slices.Equal(got, want) {
		t.Fatalf("module names = %v, want %v", got, want)
	}

	if !slices.Equal(modules[0].Requirements, []string{"flask>=2.0", "sqlalchemy==2.0.20"}) {
		t.Errorf("shop requirements = %v", modules[0].Requirements)
	}
	if !slices.Equal(modules[1].Requirements, []string{"pytest>=7.0", "black==23.7.0"}) {
		t.Errorf("shop[dev] requirements = %v", modules[1].Requirements)
	}

	for _, m := range modules {
		if m.Source != SourcePyproject {
			t.Errorf("module %s source = %v, want %v", m.Name, m.Source, SourcePyproject)
		}
	}
}

func TestDiscover_PyprojectWithoutDependencies(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "tool", "pyproject.toml"), "[build-system]\nrequires = [\"setuptools\"]\n")

	modules, diags, err := New("", []string{tmpDir}).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("pyproject without [project].dependencies should add no modules, got %v", moduleNames(modules))
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}

func TestDiscover_PyprojectParseErrorSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "broken", "pyproject.toml"), "[project\ndependencies = not toml")
	writeFile(t, filepath.Join(tmpDir, "api", "requirements.txt"), "flask==2.3.2\n")

	modules, diags, err := New("", []string{tmpDir}).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	// The broken file is reported and skipped; discovery keeps going.
	if got := moduleNames(modules); !slices.Equal(got, []string{"api"}) {
		t.Errorf("module names = %v, want [api]", got)
	}
	if got := diagCodes(diags); !slices.Equal(got, []string{"pyproject_parse_skipped"}) {
		t.Errorf("diagnostic codes = %v, want [pyproject_parse_skipped]", got)
	}
}

func TestDiscover_PyprojectAndRequirementsMerge(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "api", "requirements.txt"), "gunicorn==21.2.0\n")
	writeFile(t, filepath.Join(tmpDir, "api", "pyproject.toml"), "[project]\ndependencies = [\"flask>=2.0\"]\n")

	modules, diags, err := New("", []string{tmpDir}).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("got %d modules, want 1 merged: %v", len(modules), moduleNames(modules))
	}

	reqs := modules[0].Requirements
	for _, want := range []string{"gunicorn==21.2.0", "flask>=2.0"} {
		if !slices.Contains(reqs, want) {
			t.Errorf("merged requirements missing %q: %v", want, reqs)
		}
	}
	if got := diagCodes(diags); !slices.Equal(got, []string{"duplicate_module_merged"}) {
		t.Errorf("diagnostic codes = %v, want [duplicate_module_merged]", got)
	}
}

func TestFromFiles_ExplicitPyproject(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "shop", "pyproject.toml")
	writeFile(t, path, shopPyproject)

	modules, _, err := New("", nil).FromFiles([]string{path})
	if err != nil {
		t.Fatalf("FromFiles() error = %v", err)
	}
	want := []string{"shop", "shop[dev]", "shop[docs]"}
	if got := moduleNames(modules); !slices.Equal(got, want) {
		t.Errorf("module names = %v, want %v", got, want)
	}
}

func TestFromFiles_BrokenPyprojectIsError(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pyproject.toml")
	writeFile(t, path, "[project\nnot toml")

	_, _, err := New("", nil).FromFiles([]string{path})
	if err == nil {
		t.Fatal("expected parse error for explicit pyproject")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("error should mention parsing, got: %v", err)
	}
}
