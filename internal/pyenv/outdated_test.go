// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"slices"
	"testing"

	"github.com/depcache/depcache/pkg/types"
)

func TestOutdatedPackage_HasNewer(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{name: "newer patch", current: "2.28.0", latest: "2.31.0", want: true},
		{name: "newer major", current: "1.7.4", latest: "2.0.0", want: true},
		{name: "same version", current: "2.31.0", latest: "2.31.0", want: false},
		{name: "latest older", current: "2.31.0", latest: "2.28.0", want: false},
		{name: "two-part versions", current: "24.0", latest: "24.1", want: true},
		// PEP 440 forms semver cannot parse: trust pip's verdict.
		{name: "post release", current: "1.0.0.post1", latest: "1.0.1", want: true},
		{name: "epoch marker", current: "1!2.0", latest: "1!2.1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := OutdatedPackage{Name: "pkg", Current: tt.current, Latest: tt.latest}
			if got := p.HasNewer(); got != tt.want {
				t.Errorf("HasNewer(%q -> %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestFilterToCached(t *testing.T) {
	outdated := []OutdatedPackage{
		{Name: "requests", Current: "2.28.0", Latest: "2.31.0"},
		{Name: "Flask", Current: "2.3.1", Latest: "2.3.2"},
		{Name: "blinker", Current: "1.6.0", Latest: "1.6.2"}, // not cached
		{Name: "celery", Current: "5.3.4", Latest: "5.3.4"},  // pip noise, nothing newer
	}
	pins := []types.PackagePin{
		"requests==2.28.0",
		"flask==2.3.1",
		"celery==5.3.4",
		"passlib[bcrypt]==1.7.4",
	}

	got := FilterToCached(outdated, pins)

	want := []OutdatedPackage{
		{Name: "Flask", Current: "2.3.1", Latest: "2.3.2"},
		{Name: "requests", Current: "2.28.0", Latest: "2.31.0"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("FilterToCached() = %v, want %v", got, want)
	}
}

func TestFilterToCached_ExtrasAndCaseFolded(t *testing.T) {
	outdated := []OutdatedPackage{
		{Name: "passlib", Current: "1.7.4", Latest: "1.7.5"},
		{Name: "ruamel.yaml", Current: "0.18.0", Latest: "0.18.5"},
	}
	pins := []types.PackagePin{
		"Passlib[bcrypt]==1.7.4",
		"ruamel-yaml==0.18.0",
	}

	got := FilterToCached(outdated, pins)
	if len(got) != 2 {
		t.Fatalf("got %d packages, want 2: %v", len(got), got)
	}
}

func TestFilterToCached_EmptyInputs(t *testing.T) {
	if got := FilterToCached(nil, []types.PackagePin{"flask==2.3.2"}); len(got) != 0 {
		t.Errorf("no outdated packages should filter to none, got %v", got)
	}
	if got := FilterToCached([]OutdatedPackage{{Name: "flask", Current: "1.0", Latest: "2.0"}}, nil); len(got) != 0 {
		t.Errorf("empty cache should filter to none, got %v", got)
	}
}
