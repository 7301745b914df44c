// SPDX-License-Identifier: MPL-2.0

// Package types defines cross-cutting value types shared by the engine
// packages (requirement, cache, resolve). These are foundation types that
// carry semantic meaning and validation but have no domain-specific
// dependencies.
//
// This package is a leaf dependency: it imports only the standard library.
// Domain packages import it; it never imports domain packages.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModuleName is the sentinel error wrapped by InvalidModuleNameError.
var ErrInvalidModuleName = errors.New("invalid module name")

type (
	// ModuleName identifies one named unit of a project that owns a
	// requirement set (e.g. "api", "worker", "root"). Module names key
	// cache entries, so a valid name must be non-empty, not
	// whitespace-only, and must not contain path separators that would
	// let a cache record escape the cache directory.
	ModuleName string

	// InvalidModuleNameError is returned when a ModuleName value is empty,
	// whitespace-only, or contains a path separator.
	InvalidModuleNameError struct {
		Value  ModuleName
		Reason string
	}
)

// String returns the string representation of the ModuleName.
func (m ModuleName) String() string { return string(m) }

// IsValid returns whether the ModuleName is valid.
// A valid name is non-empty, not whitespace-only, and free of path
// separators and NUL bytes.
func (m ModuleName) IsValid() (bool, []error) {
	s := string(m)
	switch {
	case strings.TrimSpace(s) == "":
		return false, []error{&InvalidModuleNameError{Value: m, Reason: "must be non-empty"}}
	case strings.ContainsAny(s, `/\`):
		return false, []error{&InvalidModuleNameError{Value: m, Reason: "must not contain path separators"}}
	case strings.ContainsRune(s, 0):
		return false, []error{&InvalidModuleNameError{Value: m, Reason: "must not contain NUL bytes"}}
	}
	return true, nil
}

// Error implements the error interface for InvalidModuleNameError.
func (e *InvalidModuleNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidModuleName for errors.Is() compatibility.
func (e *InvalidModuleNameError) Unwrap() error { return ErrInvalidModuleName }
