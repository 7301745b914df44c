// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/discovery"
	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/internal/resolve"
	"github.com/depcache/depcache/pkg/types"
)

const (
	// sampleRequirements is a representative requirements.txt for
	// benchmarking parsing. It mixes plain pins, ranges, extras, markers,
	// comments, and messy casing to exercise every canonicalization branch.
	sampleRequirements = `
# web stack
Flask==2.3.2
requests>=2.28,<3
SQLAlchemy~=2.0
celery[redis]>=5.3
gunicorn==21.2.0  # wsgi server

# data
numpy>=1.24
pandas==2.1.4
Pillow>=10.0
python-dateutil>=2.8.2

# auth
passlib[bcrypt]==1.7.4
PyJWT>=2.8; python_version >= "3.8"
cryptography>=41.0
`

	// complexRequirements is a larger set for the heavier benchmarks.
	complexRequirements = sampleRequirements + `
boto3>=1.28
botocore>=1.31
click>=8.1
Jinja2==3.1.2
MarkupSafe>=2.1
itsdangerous>=2.1
Werkzeug>=2.3
redis>=5.0
kombu>=5.3
billiard>=4.1
vine>=5.0
amqp>=5.1
pytz>=2023.3
six>=1.16
urllib3>=1.26,<2
certifi>=2023.7
charset-normalizer>=3.2
idna>=3.4
`
)

// requirementLines splits a requirements document the way discovery does:
// blank lines and comments dropped, inline comments stripped.
func requirementLines(doc string) []string {
	var lines []string
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		lines = append(lines, line)
	}
	return lines
}

func canonicalize(b *testing.B, lines []string) []requirement.Canonical {
	b.Helper()
	reqs := make([]requirement.Canonical, 0, len(lines))
	for _, line := range lines {
		req, err := requirement.ParseAndCanonicalize(line)
		if err != nil {
			b.Fatalf("ParseAndCanonicalize(%q) failed: %v", line, err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// BenchmarkCanonicalize benchmarks requirement parsing and normalization.
// This exercises the hot path in internal/requirement/.
func BenchmarkCanonicalize(b *testing.B) {
	lines := requirementLines(complexRequirements)

	b.ResetTimer()
	for b.Loop() {
		for _, line := range lines {
			if _, err := requirement.ParseAndCanonicalize(line); err != nil {
				b.Fatalf("ParseAndCanonicalize failed: %v", err)
			}
		}
	}
}

// BenchmarkFingerprint benchmarks digesting a canonical requirement set.
// This exercises the hot path in internal/fingerprint/.
func BenchmarkFingerprint(b *testing.B) {
	reqs := canonicalize(b, requirementLines(complexRequirements))

	b.ResetTimer()
	for b.Loop() {
		_ = fingerprint.Compute(reqs)
	}
}

func benchmarkEntry(module string) cache.Entry {
	pins := make([]types.PackagePin, 0, 30)
	for i := range 30 {
		pins = append(pins, types.PackagePin(fmt.Sprintf("package-%02d==1.%d.0", i, i)))
	}
	return cache.Entry{
		ModuleName:       types.ModuleName(module),
		Fingerprint:      fingerprint.Fingerprint(strings.Repeat("ab", 32)),
		ResolvedPackages: pins,
		CreatedAt:        time.Now().UTC(),
		ResolverIdentity: "env-benchmark",
	}
}

// BenchmarkCacheStorePut benchmarks writing an entry to the file store.
func BenchmarkCacheStorePut(b *testing.B) {
	store := cache.NewFileStore(b.TempDir())
	entry := benchmarkEntry("api")
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		if err := store.Put(ctx, entry); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

// BenchmarkCacheStoreGet benchmarks reading an entry back from disk.
func BenchmarkCacheStoreGet(b *testing.B) {
	store := cache.NewFileStore(b.TempDir())
	ctx := context.Background()
	if err := store.Put(ctx, benchmarkEntry("api")); err != nil {
		b.Fatalf("Put failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		entry, err := store.Get(ctx, "api")
		if err != nil {
			b.Fatalf("Get failed: %v", err)
		}
		if entry == nil {
			b.Fatal("Get returned no entry")
		}
	}
}

// BenchmarkDiscovery benchmarks walking a project tree for requirements
// files. This exercises the hot path in internal/discovery/.
func BenchmarkDiscovery(b *testing.B) {
	tmpDir := b.TempDir()
	for _, module := range []string{"api", "worker", "scheduler", "reporting", "web"} {
		dir := filepath.Join(tmpDir, module)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.Fatalf("failed to create module dir: %v", err)
		}
		path := filepath.Join(dir, "requirements.txt")
		if err := os.WriteFile(path, []byte(sampleRequirements), 0o644); err != nil {
			b.Fatalf("failed to write requirements: %v", err)
		}
	}

	disc := discovery.New("", []string{tmpDir})

	b.ResetTimer()
	for b.Loop() {
		modules, _, err := disc.Discover()
		if err != nil {
			b.Fatalf("Discover failed: %v", err)
		}
		if len(modules) != 5 {
			b.Fatalf("discovered %d modules, want 5", len(modules))
		}
	}
}

// BenchmarkWarmResolve benchmarks a full orchestrator run where every
// module hits the cache: fingerprint, invalidation check, and merge, with
// the resolver never invoked. This is the steady-state path of repeated
// runs on an unchanged project.
func BenchmarkWarmResolve(b *testing.B) {
	ctx := context.Background()
	lines := requirementLines(sampleRequirements)

	inputs := make([]resolve.ModuleInput, 0, 8)
	for i := range 8 {
		inputs = append(inputs, resolve.ModuleInput{
			Module:       types.ModuleName(fmt.Sprintf("module-%d", i)),
			Requirements: lines,
		})
	}

	resolver := func(_ context.Context, _ types.ModuleName, reqs []requirement.Canonical) ([]types.PackagePin, error) {
		pins := make([]types.PackagePin, 0, len(reqs))
		for _, req := range reqs {
			pins = append(pins, types.PackagePin(req.Name+"==1.0.0"))
		}
		return pins, nil
	}

	orch, err := resolve.New(resolve.Options{
		Store:            cache.NewMemStore(),
		Resolver:         resolver,
		ResolverIdentity: "env-benchmark",
	})
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	// Warm the cache, then measure pure-hit runs.
	if _, err := orch.Run(ctx, inputs); err != nil {
		b.Fatalf("warmup Run failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		outcome, err := orch.Run(ctx, inputs)
		if err != nil {
			b.Fatalf("Run failed: %v", err)
		}
		if outcome.Reused != len(inputs) {
			b.Fatalf("Reused = %d, want %d", outcome.Reused, len(inputs))
		}
	}
}
