// SPDX-License-Identifier: MPL-2.0

// Package resolve decides which modules need fresh dependency resolution
// and coordinates the resolver runs for the ones that do. Staleness is
// judged purely on content: requirement fingerprints and resolver
// identity, never timestamps or file modification times.
package resolve

type (
	// Status classifies a module's cache entry against its current
	// requirement fingerprint.
	Status string
)

const (
	// StatusHit means the cached resolution is current and can be reused.
	StatusHit Status = "hit"

	// StatusMiss means no usable cache entry exists for the module.
	StatusMiss Status = "miss"

	// StatusStale means an entry exists but was computed from different
	// requirements or under a different resolver identity.
	StatusStale Status = "stale"
)
