// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/depcache/depcache/pkg/types"
)

// MemStore is an in-memory Store used by tests and dry runs. It honors the
// same contract as FileStore, including copy-on-read so callers cannot
// mutate stored entries behind its back.
type MemStore struct {
	mu      sync.RWMutex
	entries map[types.ModuleName]Entry
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[types.ModuleName]Entry),
	}
}

// Get returns the entry for a module, or (nil, nil) when none exists.
func (s *MemStore) Get(_ context.Context, module types.ModuleName) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[module]
	if !ok {
		return nil, nil
	}
	entry.ResolvedPackages = slices.Clone(entry.ResolvedPackages)
	return &entry, nil
}

// Put stores the entry for entry.ModuleName, replacing any previous one.
func (s *MemStore) Put(_ context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return fmt.Errorf("refusing to cache entry: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ResolvedPackages = slices.Clone(entry.ResolvedPackages)
	slices.Sort(entry.ResolvedPackages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ModuleName] = entry
	return nil
}

// Delete removes a module's entry, silently succeeding when none exists.
func (s *MemStore) Delete(_ context.Context, module types.ModuleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, module)
	return nil
}

// DeleteAll removes every entry.
func (s *MemStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[types.ModuleName]Entry)
	return nil
}

// List returns every entry sorted by module name.
func (s *MemStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entry.ResolvedPackages = slices.Clone(entry.ResolvedPackages)
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(string(a.ModuleName), string(b.ModuleName))
	})
	return entries, nil
}
