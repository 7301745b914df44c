// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/depcache/depcache/pkg/types"
)

type (
	// pyprojectFile is the subset of PEP 621 metadata discovery reads.
	pyprojectFile struct {
		Project pyprojectProject `toml:"project"`
	}

	pyprojectProject struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	}
)

// readPyproject loads the PEP 621 dependency tables of one
// pyproject.toml, skipping the file with a diagnostic when it cannot be
// read or parsed.
func (d *Discovery) readPyproject(path string) ([]Module, []Diagnostic) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []Diagnostic{{
			Severity: SeverityWarning,
			Code:     "pyproject_read_skipped",
			Message:  fmt.Sprintf("failed to read %s, skipping: %v", path, err),
			Path:     path,
			Cause:    err,
		}}
	}

	modules, err := parsePyproject(path, data)
	if err != nil {
		return nil, []Diagnostic{{
			Severity: SeverityWarning,
			Code:     "pyproject_parse_skipped",
			Message:  fmt.Sprintf("failed to parse %s, skipping: %v", path, err),
			Path:     path,
			Cause:    err,
		}}
	}
	return modules, nil
}

// parsePyproject extracts modules from pyproject.toml content.
// [project].dependencies become the directory's module; each
// [project.optional-dependencies] group becomes its own
// "<module>[<group>]" module so optional extras are cached and
// invalidated independently of the core set.
func parsePyproject(path string, data []byte) ([]Module, error) {
	var file pyprojectFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	base := pyprojectModuleName(path)

	var modules []Module
	if len(file.Project.Dependencies) > 0 {
		modules = append(modules, Module{
			Name:         base,
			Path:         path,
			Source:       SourcePyproject,
			Requirements: slices.Clone(file.Project.Dependencies),
		})
	}

	for _, group := range slices.Sorted(maps.Keys(file.Project.OptionalDependencies)) {
		deps := file.Project.OptionalDependencies[group]
		if len(deps) == 0 {
			continue
		}
		modules = append(modules, Module{
			Name:         types.ModuleName(fmt.Sprintf("%s[%s]", base, strings.ToLower(group))),
			Path:         path,
			Source:       SourcePyproject,
			Requirements: slices.Clone(deps),
		})
	}
	return modules, nil
}

// pyprojectModuleName names a pyproject module after its directory.
func pyprojectModuleName(path string) types.ModuleName {
	return types.ModuleName(strings.ToLower(filepath.Base(filepath.Dir(path))))
}
