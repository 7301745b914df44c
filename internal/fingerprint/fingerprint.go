// SPDX-License-Identifier: MPL-2.0

// Package fingerprint computes deterministic content digests over
// canonicalized requirement sets. Fingerprint equality is the cache's
// definition of "this module's requirements are semantically unchanged":
// the digest is taken over a sorted serialization, so declaration order
// and formatting never influence it, while any real content change does.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/depcache/depcache/internal/requirement"
)

// shortLen is the number of hex characters shown for display tags.
const shortLen = 12

// Fingerprint is the hex-encoded SHA-256 digest of a module's canonical
// requirement set.
type Fingerprint string

// String returns the full hex digest.
func (f Fingerprint) String() string { return string(f) }

// Short returns a truncated digest for logs and table output.
func (f Fingerprint) Short() string {
	if len(f) <= shortLen {
		return string(f)
	}
	return string(f[:shortLen])
}

// Compute digests a module's canonical requirement set. The requirements
// are sorted by (name, extras, constraint) and serialized one per line, so
// Compute(S1) == Compute(S2) exactly when S1 and S2 are equal as sets.
// The input slice is not modified.
func Compute(reqs []requirement.Canonical) Fingerprint {
	sorted := slices.Clone(reqs)
	slices.SortFunc(sorted, requirement.Compare)
	sorted = slices.CompactFunc(sorted, requirement.Equal)

	h := sha256.New()
	for _, req := range sorted {
		h.Write([]byte(req.String()))
		h.Write([]byte{'\n'})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Combined digests the per-module fingerprints of a whole project into a
// single identity, used by cache inspection to summarize "the project as
// cached". Pairs are sorted by module name first, so map iteration order
// never leaks into the digest.
func Combined(byModule map[string]Fingerprint) Fingerprint {
	names := make([]string, 0, len(byModule))
	for name := range byModule {
		names = append(names, name)
	}
	slices.Sort(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte("module:" + name + ":" + string(byModule[name])))
		h.Write([]byte{'\n'})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// EnvironmentTag digests the identity of the tooling that produced a
// resolution: resolver version, interpreter version, and platform. The tag
// is stored on every cache entry; entries written under a different tag
// are stale even when their requirement fingerprints still match, so
// swapping interpreters or upgrading the resolver re-resolves everything.
func EnvironmentTag(resolverVersion, interpreterVersion, platform string) string {
	h := sha256.New()
	h.Write([]byte("resolver:" + resolverVersion))
	h.Write([]byte("interpreter:" + interpreterVersion))
	h.Write([]byte("platform:" + platform))
	return "env-" + hex.EncodeToString(h.Sum(nil))[:shortLen]
}

// Parse validates that s looks like a fingerprint produced by Compute: a
// 64-character lowercase hex string. It exists so cache records loaded
// from disk can be sanity-checked before comparison.
func Parse(s string) (Fingerprint, bool) {
	if len(s) != sha256.Size*2 {
		return "", false
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && (r < 'a' || r > 'f')
	}) >= 0 {
		return "", false
	}
	return Fingerprint(s), true
}
