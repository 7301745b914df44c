// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"context"
	"slices"
	"strings"

	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/types"
)

type (
	// PackageState classifies one cached pin against the installed
	// environment.
	PackageState string

	// Finding is the verdict for one pinned package.
	Finding struct {
		// Pin is the cached pin the verdict is about.
		Pin types.PackagePin

		// Name is the canonical package name, extras stripped.
		Name string

		// Want is the pinned version.
		Want string

		// Got is the installed version, empty when missing.
		Got string

		// State is the classification.
		State PackageState
	}

	// Report is the result of validating a cached resolution against the
	// installed environment. It is read-only: validation never mutates the
	// cache or the environment.
	Report struct {
		// Findings holds one verdict per distinct pin, sorted by name.
		Findings []Finding

		// Extras lists installed canonical package names that no cached
		// pin covers, sorted.
		Extras []string
	}

	// Validator checks cached pins against a live environment.
	Validator struct {
		env *Env
	}
)

const (
	// StatePresent means the package is installed at the pinned version.
	StatePresent PackageState = "present"

	// StateMissing means the package is not installed at all.
	StateMissing PackageState = "missing"

	// StateVersionMismatch means the package is installed at a different
	// version than the cache pinned.
	StateVersionMismatch PackageState = "version-mismatch"
)

// NewValidator creates a Validator that reads the installed set from env.
func NewValidator(env *Env) *Validator {
	return &Validator{env: env}
}

// Check fetches the installed package set and validates pins against it.
func (v *Validator) Check(ctx context.Context, pins []types.PackagePin) (Report, error) {
	installed, err := v.env.InstalledPackages(ctx)
	if err != nil {
		return Report{}, err
	}
	return Validate(pins, installed), nil
}

// Validate classifies every distinct pin against the installed set. The
// installed map is keyed by canonical name, as returned by
// Env.InstalledPackages. Matching is by canonical name with extras
// stripped: passlib[bcrypt]==1.7.4 is present when passlib 1.7.4 is
// installed. Version comparison is exact.
func Validate(pins []types.PackagePin, installed map[string]string) Report {
	type pinKey struct {
		name string
		want string
	}

	var report Report
	covered := make(map[string]bool)
	seen := make(map[pinKey]bool)

	for _, pin := range pins {
		name, want := pin.Parts()
		if name == "" {
			// Hand-edited cache entry; report it as missing rather than
			// silently dropping it from the verdict.
			name = string(pin)
		}
		canonical := requirement.CanonicalName(requirement.StripExtras(name))

		key := pinKey{name: canonical, want: want}
		if seen[key] {
			continue
		}
		seen[key] = true
		covered[canonical] = true

		finding := Finding{
			Pin:  pin,
			Name: canonical,
			Want: want,
		}
		switch got, ok := installed[canonical]; {
		case !ok:
			finding.State = StateMissing
		case want != "" && got != want:
			finding.Got = got
			finding.State = StateVersionMismatch
		default:
			finding.Got = got
			finding.State = StatePresent
		}
		report.Findings = append(report.Findings, finding)
	}

	slices.SortFunc(report.Findings, func(a, b Finding) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Want, b.Want)
	})

	for name := range installed {
		if !covered[name] {
			report.Extras = append(report.Extras, name)
		}
	}
	slices.Sort(report.Extras)

	return report
}

// OK reports whether every pin is installed at its pinned version.
func (r Report) OK() bool {
	for _, f := range r.Findings {
		if f.State != StatePresent {
			return false
		}
	}
	return true
}

// Count returns how many findings carry the given state.
func (r Report) Count(state PackageState) int {
	n := 0
	for _, f := range r.Findings {
		if f.State == state {
			n++
		}
	}
	return n
}
