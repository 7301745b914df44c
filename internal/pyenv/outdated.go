// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/types"
)

// OutdatedPackage is one package pip reports a newer version for.
type OutdatedPackage struct {
	// Name is the package name as pip reports it.
	Name string

	// Current is the installed version.
	Current string

	// Latest is the newest version available on the index.
	Latest string
}

// HasNewer reports whether Latest is actually newer than Current. Python
// version strings are not quite semver; when either side fails to parse,
// pip's own verdict stands.
func (p OutdatedPackage) HasNewer() bool {
	current, err := semver.NewVersion(p.Current)
	if err != nil {
		return true
	}
	latest, err := semver.NewVersion(p.Latest)
	if err != nil {
		return true
	}
	return latest.GreaterThan(current)
}

// FilterToCached narrows pip's outdated list to packages some cached pin
// covers, sorted by name. Upgrades available for packages outside the
// cached resolution are none of this tool's business.
func FilterToCached(outdated []OutdatedPackage, pins []types.PackagePin) []OutdatedPackage {
	cached := make(map[string]bool, len(pins))
	for _, pin := range pins {
		name, _ := pin.Parts()
		if name == "" {
			continue
		}
		cached[requirement.CanonicalName(requirement.StripExtras(name))] = true
	}

	filtered := make([]OutdatedPackage, 0, len(outdated))
	for _, pkg := range outdated {
		if !cached[requirement.CanonicalName(pkg.Name)] {
			continue
		}
		if !pkg.HasNewer() {
			continue
		}
		filtered = append(filtered, pkg)
	}

	slices.SortFunc(filtered, func(a, b OutdatedPackage) int {
		return strings.Compare(a.Name, b.Name)
	})
	return filtered
}
