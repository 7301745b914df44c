// SPDX-License-Identifier: MPL-2.0

// Package cache persists resolved dependency sets per module. Each entry
// records the requirement fingerprint it was resolved from together with
// the exact package pins the resolver produced, so later runs can decide
// whether a module needs re-resolution without touching the network.
//
// The package offers two stores: a durable file-backed store whose entries
// are plain JSON documents a human can inspect and delete, and an
// in-memory store for tests.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/pkg/types"
)

type (
	// Entry is one module's cached resolution.
	Entry struct {
		// ModuleName identifies the module this entry belongs to.
		ModuleName types.ModuleName `json:"module_name"`

		// Fingerprint is the digest of the canonical requirement set the
		// resolution was computed from.
		Fingerprint fingerprint.Fingerprint `json:"fingerprint"`

		// ResolvedPackages are the exact pins produced by the resolver,
		// sorted by package name.
		ResolvedPackages []types.PackagePin `json:"resolved_packages"`

		// CreatedAt records when the resolution was cached. It is
		// informational only; staleness is decided by content, never age.
		CreatedAt time.Time `json:"created_at"`

		// ResolverIdentity tags the resolver and interpreter environment
		// that produced the pins. Entries written under a different
		// identity are stale regardless of fingerprint.
		ResolverIdentity string `json:"resolver_identity"`
	}

	// Store is the persistence contract shared by the file-backed and
	// in-memory caches. Get returns (nil, nil) when no entry exists for
	// the module; unreadable entries surface as *CorruptEntryError.
	Store interface {
		Get(ctx context.Context, module types.ModuleName) (*Entry, error)
		Put(ctx context.Context, entry Entry) error
		Delete(ctx context.Context, module types.ModuleName) error
		DeleteAll(ctx context.Context) error
		List(ctx context.Context) ([]Entry, error)
	}
)

// CorruptEntryError reports a cache entry that exists but cannot be used.
// Callers are expected to treat the module as uncached and re-resolve.
type CorruptEntryError struct {
	// Module is the module the entry was looked up for.
	Module types.ModuleName

	// Path is the file the entry was read from, when file-backed.
	Path string

	// Reason describes the defect when no underlying error exists.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *CorruptEntryError) Error() string {
	detail := e.Reason
	if e.Err != nil {
		detail = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("corrupt cache entry for module %q at %s: %s", e.Module, e.Path, detail)
	}
	return fmt.Sprintf("corrupt cache entry for module %q: %s", e.Module, detail)
}

func (e *CorruptEntryError) Unwrap() error {
	return e.Err
}

// validateEntry rejects entries that would be unreadable on the way back.
func validateEntry(entry Entry) error {
	if ok, errs := entry.ModuleName.IsValid(); !ok {
		return fmt.Errorf("invalid module name: %w", errs[0])
	}
	if entry.Fingerprint == "" {
		return fmt.Errorf("entry for module %q has no fingerprint", entry.ModuleName)
	}
	for _, pin := range entry.ResolvedPackages {
		if ok, errs := pin.IsValid(); !ok {
			return fmt.Errorf("entry for module %q: %w", entry.ModuleName, errs[0])
		}
	}
	return nil
}
