// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPackagePin is the sentinel error wrapped by InvalidPackagePinError.
var ErrInvalidPackagePin = errors.New("invalid package pin")

type (
	// PackagePin is a fully-pinned package specifier in "name==version"
	// form, the shape resolvers emit and installers consume. Both sides
	// of the "==" must be non-empty.
	PackagePin string

	// InvalidPackagePinError is returned when a PackagePin value is not in
	// "name==version" form.
	InvalidPackagePinError struct {
		Value PackagePin
	}
)

// NewPackagePin builds a PackagePin from its parts.
func NewPackagePin(name, version string) PackagePin {
	return PackagePin(name + "==" + version)
}

// String returns the string representation of the PackagePin.
func (p PackagePin) String() string { return string(p) }

// Parts splits the pin into package name and version. Both are empty when
// the pin is malformed; use IsValid to distinguish.
func (p PackagePin) Parts() (name, version string) {
	name, version, ok := strings.Cut(string(p), "==")
	if !ok || name == "" || version == "" {
		return "", ""
	}
	return name, version
}

// IsValid returns whether the PackagePin is in "name==version" form with a
// non-empty name and version.
func (p PackagePin) IsValid() (bool, []error) {
	name, version, ok := strings.Cut(string(p), "==")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(version) == "" {
		return false, []error{&InvalidPackagePinError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPackagePinError.
func (e *InvalidPackagePinError) Error() string {
	return fmt.Sprintf("invalid package pin %q: must be in name==version form", e.Value)
}

// Unwrap returns ErrInvalidPackagePin for errors.Is() compatibility.
func (e *InvalidPackagePinError) Unwrap() error { return ErrInvalidPackagePin }
