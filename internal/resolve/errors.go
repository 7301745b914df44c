// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"

	"github.com/depcache/depcache/pkg/types"
)

// ErrVersionConflict is the sentinel error wrapped by VersionConflictError.
var ErrVersionConflict = errors.New("version conflict")

type (
	// ResolutionFailedError reports that one module's resolution could not
	// be completed. Any instance fails the whole run.
	ResolutionFailedError struct {
		Module types.ModuleName
		Err    error
	}

	// VersionConflictError reports two modules pinning the same package to
	// different versions. The merged set is refused outright rather than
	// silently preferring either side.
	VersionConflictError struct {
		Package  string
		ModuleA  types.ModuleName
		VersionA string
		ModuleB  types.ModuleName
		VersionB string
	}
)

// Error implements the error interface for ResolutionFailedError.
func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("failed to resolve module %q: %v", e.Module, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResolutionFailedError) Unwrap() error { return e.Err }

// Error implements the error interface for VersionConflictError.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf(
		"conflicting pins for package %q: module %q wants %s, module %q wants %s",
		e.Package, e.ModuleA, e.VersionA, e.ModuleB, e.VersionB,
	)
}

// Unwrap returns ErrVersionConflict for errors.Is() compatibility.
func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }
