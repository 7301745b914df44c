// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/depcache/depcache/pkg/platform"
	"github.com/depcache/depcache/pkg/types"
)

const (
	modulesDirName = "modules"
	entryExt       = ".json"
)

// FileStore is the durable cache. Every module gets its own JSON document
// under <root>/modules/, written atomically via temp file + rename so a
// reader never observes a half-written entry.
type FileStore struct {
	root   string
	logger *log.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at the given cache directory. The
// directory does not need to exist yet; it is created on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: root,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "cache",
		}),
	}
}

// Root returns the cache directory the store was created with.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) modulesDir() string {
	return filepath.Join(s.root, modulesDirName)
}

func (s *FileStore) entryPath(module types.ModuleName) string {
	return filepath.Join(s.modulesDir(), entryFileName(module))
}

// Get loads the entry for a module, or (nil, nil) when none exists.
func (s *FileStore) Get(_ context.Context, module types.ModuleName) (*Entry, error) {
	path := s.entryPath(module)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry, err := decodeEntry(module, path, data)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put writes the entry for entry.ModuleName, replacing any previous one.
func (s *FileStore) Put(_ context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return fmt.Errorf("refusing to cache entry: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ResolvedPackages = slices.Clone(entry.ResolvedPackages)
	slices.Sort(entry.ResolvedPackages)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.modulesDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write atomically using temp file + rename
	path := s.entryPath(entry.ModuleName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return fmt.Errorf("failed to rename cache entry: %w", err)
	}

	return nil
}

// Delete removes a module's entry. Removing a module that has no entry is
// not an error.
func (s *FileStore) Delete(_ context.Context, module types.ModuleName) error {
	err := os.Remove(s.entryPath(module))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteAll removes every entry, leaving unrelated files in the cache
// directory alone.
func (s *FileStore) DeleteAll(_ context.Context) error {
	dirEntries, err := os.ReadDir(s.modulesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, entryExt) && !strings.HasSuffix(name, entryExt+".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(s.modulesDir(), name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cache entry %s: %w", name, err)
		}
	}
	return nil
}

// List returns every readable entry sorted by module name. Corrupt entries
// are skipped with a warning so one bad file does not hide the rest.
func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.modulesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}

		path := filepath.Join(s.modulesDir(), de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}

		entry, err := decodeEntry("", path, data)
		if err != nil {
			s.logger.Warn("skipping corrupt cache entry", "path", path, "error", err)
			continue
		}
		entries = append(entries, *entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(string(a.ModuleName), string(b.ModuleName))
	})
	return entries, nil
}

// decodeEntry parses an on-disk entry and checks it is usable. The module
// argument is the name the entry was looked up under; pass "" when listing.
func decodeEntry(module types.ModuleName, path string, data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, &CorruptEntryError{Module: module, Path: path, Err: err}
	}
	if entry.ModuleName == "" || entry.Fingerprint == "" {
		return nil, &CorruptEntryError{
			Module: module,
			Path:   path,
			Reason: "missing module_name or fingerprint field",
		}
	}
	if module != "" && entry.ModuleName != module {
		return nil, &CorruptEntryError{
			Module: module,
			Path:   path,
			Reason: fmt.Sprintf("entry belongs to module %q", entry.ModuleName),
		}
	}
	return &entry, nil
}

// entryFileName maps a module name to a filesystem-safe file name. Names
// that survive sanitization unchanged map directly; anything that had to
// be rewritten gets a content-hash suffix so distinct modules never share
// a file, including on case-insensitive filesystems.
func entryFileName(module types.ModuleName) string {
	name := string(module)
	sanitized := sanitizeBaseName(name)
	if sanitized != name || sanitized == "" || platform.IsWindowsReservedName(sanitized) {
		h := sha256.Sum256([]byte(name))
		suffix := hex.EncodeToString(h[:])[:12]
		if sanitized == "" {
			return suffix + entryExt
		}
		return sanitized + "-" + suffix + entryExt
	}
	return sanitized + entryExt
}

func sanitizeBaseName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), ".-")
}
