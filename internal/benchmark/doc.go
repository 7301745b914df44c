// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides comprehensive benchmarks for PGO profile generation.
// These benchmarks cover all hot paths in the depcache codebase:
//   - Requirement parsing and canonicalization
//   - Fingerprint computation over canonical requirement sets
//   - Cache store round trips
//   - Requirements file discovery
//   - Warm-cache resolution across many modules
//
// To generate a PGO profile, run:
//
//	go test -bench=. -cpuprofile=default.pgo ./internal/benchmark
package benchmark
