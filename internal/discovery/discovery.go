// SPDX-License-Identifier: MPL-2.0

// Package discovery finds per-module requirement sets on disk: plain
// requirements files matched by a configurable glob, plus PEP 621
// dependency tables in pyproject.toml files.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/depcache/depcache/pkg/types"
)

const (
	// DefaultPattern matches the usual requirements file spellings:
	// requirements.txt, requirements-api.txt, requirements_dev.txt.
	DefaultPattern = "requirements*.txt"

	// RootModuleName names the module for a plain requirements file
	// sitting directly in a search directory.
	RootModuleName types.ModuleName = "root"

	pyprojectFileName = "pyproject.toml"
)

// DefaultIgnores are directory patterns discovery never descends into.
var DefaultIgnores = []string{
	"**/.git",
	"**/.hg",
	"**/.tox",
	"**/.venv",
	"**/venv",
	"**/node_modules",
	"**/__pycache__",
	"**/site-packages",
}

const (
	// SourceRequirementsFile indicates the requirements came from a file
	// matched by the discovery pattern.
	SourceRequirementsFile Source = iota
	// SourcePyproject indicates the requirements came from a PEP 621
	// pyproject.toml dependency table.
	SourcePyproject
)

type (
	// Source represents the kind of file a module's requirements came from.
	Source int

	// Module is one discovered requirement set, named and ready for
	// canonicalization.
	Module struct {
		// Name is the module name derived from the file location.
		Name types.ModuleName
		// Path is the absolute path to the file the requirements came
		// from. When several files merged into one module this is the
		// first of them; the merge diagnostic names the rest.
		Path string
		// Source indicates the kind of file.
		Source Source
		// Requirements holds the raw requirement lines, comments and pip
		// directives already stripped.
		Requirements []string
	}

	// Discovery walks search directories for requirement files.
	Discovery struct {
		pattern    string
		searchDirs []string
		ignores    []string
		logger     *log.Logger
	}

	// Option customizes a Discovery.
	Option func(*Discovery)
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceRequirementsFile:
		return "requirements file"
	case SourcePyproject:
		return "pyproject.toml"
	default:
		return "unknown"
	}
}

// WithIgnores replaces the default ignore patterns.
func WithIgnores(patterns ...string) Option {
	return func(d *Discovery) {
		d.ignores = patterns
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Discovery) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Discovery. An empty pattern selects DefaultPattern; no
// search dirs selects the current directory.
func New(pattern string, searchDirs []string, opts ...Option) *Discovery {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if len(searchDirs) == 0 {
		searchDirs = []string{"."}
	}
	d := &Discovery{
		pattern:    pattern,
		searchDirs: searchDirs,
		ignores:    DefaultIgnores,
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "discovery"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover walks every search directory and returns the modules found,
// sorted by name. Unreadable or unparsable files are skipped and
// reported as diagnostics; only a broken pattern or an unresolvable
// search dir fails the whole discovery.
func (d *Discovery) Discover() ([]Module, []Diagnostic, error) {
	if !doublestar.ValidatePattern(d.pattern) {
		return nil, nil, fmt.Errorf("invalid requirements pattern %q", d.pattern)
	}

	var (
		modules []Module
		diags   []Diagnostic
	)
	byName := make(map[types.ModuleName]int)

	for _, dir := range d.searchDirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve search dir %q: %w", dir, err)
		}
		if _, err := os.Stat(root); os.IsNotExist(err) {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     "search_dir_missing",
				Message:  fmt.Sprintf("search directory %s does not exist, skipping", root),
				Path:     root,
			})
			continue
		}
		diags = append(diags, d.walk(root, &modules, byName)...)
	}

	slices.SortFunc(modules, func(a, b Module) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return modules, diags, nil
}

// FromFiles builds modules from explicitly named requirement files,
// bypassing the walk. Unlike the walk, a missing file here is a hard
// error: the caller asked for it by name.
func (d *Discovery) FromFiles(paths []string) ([]Module, []Diagnostic, error) {
	var (
		modules []Module
		diags   []Diagnostic
	)
	byName := make(map[types.ModuleName]int)

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve requirements file %q: %w", path, err)
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("requirements file %s: %w", path, err)
		}

		if filepath.Base(abs) == pyprojectFileName {
			mods, err := parsePyproject(abs, data)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			for _, m := range mods {
				d.merge(&modules, byName, m, &diags)
			}
			continue
		}

		d.merge(&modules, byName, Module{
			Name:         d.moduleNameFor(abs, ""),
			Path:         abs,
			Source:       SourceRequirementsFile,
			Requirements: d.parseLines(abs, string(data)),
		}, &diags)
	}

	slices.SortFunc(modules, func(a, b Module) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return modules, diags, nil
}

// walk scans one search root, appending modules and diagnostics.
func (d *Discovery) walk(root string, modules *[]Module, byName map[types.ModuleName]int) []Diagnostic {
	var diags []Diagnostic

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     "walk_entry_skipped",
				Message:  fmt.Sprintf("cannot read %s, skipping: %v", path, err),
				Path:     path,
				Cause:    err,
			})
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			// The root itself is never ignored: the user pointed at it.
			if path != root && d.ignored(rel) {
				return fs.SkipDir
			}
			return nil
		}

		switch {
		case entry.Name() == pyprojectFileName:
			mods, fileDiags := d.readPyproject(path)
			diags = append(diags, fileDiags...)
			for _, m := range mods {
				d.merge(modules, byName, m, &diags)
			}
		case d.matches(rel, entry.Name()):
			m, fileDiags := d.readRequirements(path, root)
			diags = append(diags, fileDiags...)
			if m != nil {
				d.merge(modules, byName, *m, &diags)
			}
		}
		return nil
	})
	if walkErr != nil {
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Code:     "search_dir_walk_failed",
			Message:  fmt.Sprintf("failed to walk search directory %s: %v", root, walkErr),
			Path:     root,
			Cause:    walkErr,
		})
	}
	return diags
}

func (d *Discovery) ignored(rel string) bool {
	for _, pattern := range d.ignores {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// matches tests a file against the discovery pattern. Patterns without
// a path separator match the base name wherever the file sits; patterns
// with one match the path relative to the search root.
func (d *Discovery) matches(rel, base string) bool {
	target := base
	if strings.Contains(d.pattern, "/") {
		target = rel
	}
	ok, err := doublestar.Match(d.pattern, target)
	return err == nil && ok
}

// readRequirements loads one requirements file into a module.
func (d *Discovery) readRequirements(path, root string) (*Module, []Diagnostic) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []Diagnostic{{
			Severity: SeverityWarning,
			Code:     "requirements_read_skipped",
			Message:  fmt.Sprintf("failed to read %s, skipping: %v", path, err),
			Path:     path,
			Cause:    err,
		}}
	}
	return &Module{
		Name:         d.moduleNameFor(path, root),
		Path:         path,
		Source:       SourceRequirementsFile,
		Requirements: d.parseLines(path, string(data)),
	}, nil
}

// moduleNameFor derives the module name from a requirements file path.
// A stem that encodes a name wins (requirements-api.txt and
// api-requirements.txt are both module "api"); a plain requirements
// file is named after its directory, or RootModuleName when it sits
// directly in the search root.
func (d *Discovery) moduleNameFor(path, root string) types.ModuleName {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if name, ok := stemModuleName(stem); ok {
		return types.ModuleName(name)
	}

	dir := filepath.Dir(path)
	if dir == root {
		return RootModuleName
	}
	return types.ModuleName(strings.ToLower(filepath.Base(dir)))
}

// stemModuleName extracts the module name a file stem encodes, if any.
func stemModuleName(stem string) (string, bool) {
	const marker = "requirements"
	switch {
	case stem == marker:
		return "", false
	case strings.HasPrefix(stem, marker):
		if name := strings.Trim(stem[len(marker):], "-_"); name != "" {
			return name, true
		}
		return "", false
	case strings.HasSuffix(stem, marker):
		if name := strings.Trim(stem[:len(stem)-len(marker)], "-_"); name != "" {
			return name, true
		}
		return "", false
	default:
		// Custom pattern matched something else entirely; the stem is
		// the best name available.
		return stem, true
	}
}

// parseLines extracts requirement lines from file content. Comments and
// blank lines are dropped; pip directives (-r, -e, --index-url, ...)
// configure pip rather than declare a dependency, so they are skipped.
func (d *Discovery) parseLines(path, content string) []string {
	var reqs []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			d.logger.Debug("skipping pip directive", "path", path, "line", line)
			continue
		}
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		reqs = append(reqs, line)
	}
	return reqs
}

// merge adds a module, folding requirements into an existing module of
// the same name. Two files mapping to one module is legal (a pyproject
// next to a requirements file, or sibling trees reusing a name); the
// merge is recorded as a diagnostic so it never happens silently.
func (d *Discovery) merge(modules *[]Module, byName map[types.ModuleName]int, m Module, diags *[]Diagnostic) {
	if ok, errs := m.Name.IsValid(); !ok {
		*diags = append(*diags, Diagnostic{
			Severity: SeverityWarning,
			Code:     "module_name_invalid",
			Message:  fmt.Sprintf("cannot derive a module name for %s, skipping: %v", m.Path, errs[0]),
			Path:     m.Path,
			Cause:    errs[0],
		})
		return
	}

	if i, ok := byName[m.Name]; ok {
		existing := &(*modules)[i]
		existing.Requirements = append(existing.Requirements, m.Requirements...)
		*diags = append(*diags, Diagnostic{
			Severity: SeverityWarning,
			Code:     "duplicate_module_merged",
			Message:  fmt.Sprintf("module %q is declared by both %s and %s; requirement sets merged", m.Name, existing.Path, m.Path),
			Path:     m.Path,
		})
		return
	}

	byName[m.Name] = len(*modules)
	*modules = append(*modules, m)
}
