// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/types"
)

// defaultJobs bounds the resolver worker pool when Options.Jobs is unset.
const defaultJobs = 4

type (
	// ResolverFunc produces exact pins for one module's canonical
	// requirement set. The default implementation shells out to the
	// configured resolver; tests inject fakes.
	ResolverFunc func(ctx context.Context, module types.ModuleName, reqs []requirement.Canonical) ([]types.PackagePin, error)

	// ModuleInput is one discovered module with its raw requirement lines.
	ModuleInput struct {
		Module       types.ModuleName
		Requirements []string
	}

	// ModuleResult records how one module fared during a run.
	ModuleResult struct {
		Module       types.ModuleName
		Status       Status
		Fingerprint  fingerprint.Fingerprint
		Packages     []types.PackagePin
	}

	// Outcome is the aggregate result of an orchestrator run.
	Outcome struct {
		// Results holds one entry per input module, sorted by module name.
		Results []ModuleResult

		// Merged is the deduplicated union of every module's pins, with
		// package names canonicalized, sorted by pin.
		Merged []types.PackagePin

		// Reused counts modules whose cached resolution was kept.
		Reused int

		// Resolved counts modules that went through the resolver.
		Resolved int
	}

	// Options configures an Orchestrator. Store and Resolver are required;
	// everything else has a usable zero value.
	Options struct {
		Store    cache.Store
		Resolver ResolverFunc

		// ResolverIdentity tags new cache entries and invalidates entries
		// recorded under a different tag. Optional.
		ResolverIdentity string

		// Jobs bounds the resolver worker pool. Zero means defaultJobs.
		Jobs int

		// PreResolve runs before any cache check. A non-nil error aborts
		// the run before the resolver is consulted.
		PreResolve func(ctx context.Context, inputs []ModuleInput) error

		// PostResolve runs after the merged set is assembled, before
		// Install. It sees the full outcome.
		PostResolve func(ctx context.Context, outcome *Outcome) error

		// Install receives the merged pins once every module is resolved.
		// When it fails, the run returns both the outcome and the error:
		// the cache entries written during the run remain valid.
		Install func(ctx context.Context, pins []types.PackagePin) error

		// Logger replaces the orchestrator's own logger when non-nil.
		Logger *log.Logger
	}

	// Orchestrator drives a full resolution pass: fingerprint every
	// module, reuse what the cache already answers, resolve the rest on a
	// bounded worker pool, and merge the per-module pins into one set.
	Orchestrator struct {
		store       cache.Store
		resolver    ResolverFunc
		identity    string
		jobs        int
		invalidator *Invalidator
		preResolve  func(ctx context.Context, inputs []ModuleInput) error
		postResolve func(ctx context.Context, outcome *Outcome) error
		install     func(ctx context.Context, pins []types.PackagePin) error
		logger      *log.Logger
	}
)

// New creates an Orchestrator from options.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a cache store")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("orchestrator requires a resolver")
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = defaultJobs
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "resolve",
		})
	}

	return &Orchestrator{
		store:       opts.Store,
		resolver:    opts.Resolver,
		identity:    opts.ResolverIdentity,
		jobs:        jobs,
		invalidator: NewInvalidator(opts.Store, opts.ResolverIdentity),
		preResolve:  opts.PreResolve,
		postResolve: opts.PostResolve,
		install:     opts.Install,
		logger:      logger,
	}, nil
}

// fingerprinted is a module whose requirements passed canonicalization.
type fingerprinted struct {
	module      types.ModuleName
	reqs        []requirement.Canonical
	fingerprint fingerprint.Fingerprint
}

// Run executes one resolution pass over the given modules.
//
// A malformed requirement stops only the owning module's processing, but
// the run as a whole fails with every offending module named; nothing is
// resolved in that case. A resolver failure cancels the remaining workers
// and fails the run. Entries already written stay in the cache either
// way; a later run simply picks them up as hits.
func (o *Orchestrator) Run(ctx context.Context, inputs []ModuleInput) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if o.preResolve != nil {
		if err := o.preResolve(ctx, inputs); err != nil {
			return nil, fmt.Errorf("pre-resolve hook: %w", err)
		}
	}

	modules, err := o.fingerprintAll(inputs)
	if err != nil {
		return nil, err
	}

	outcome, err := o.resolveAll(ctx, modules)
	if err != nil {
		return nil, err
	}

	if err := mergePins(outcome); err != nil {
		return nil, err
	}

	o.logger.Info("resolution complete",
		"modules", len(outcome.Results),
		"reused", outcome.Reused,
		"resolved", outcome.Resolved,
		"packages", len(outcome.Merged))

	if o.postResolve != nil {
		if err := o.postResolve(ctx, outcome); err != nil {
			return nil, fmt.Errorf("post-resolve hook: %w", err)
		}
	}

	if o.install != nil {
		if err := o.install(ctx, outcome.Merged); err != nil {
			return outcome, fmt.Errorf("install: %w", err)
		}
	}

	return outcome, nil
}

// fingerprintAll canonicalizes and fingerprints every input module. All
// malformed modules are reported together rather than stopping at the
// first, so one fix-up pass can address everything.
func (o *Orchestrator) fingerprintAll(inputs []ModuleInput) ([]fingerprinted, error) {
	seen := make(map[types.ModuleName]bool, len(inputs))
	modules := make([]fingerprinted, 0, len(inputs))
	var failures []error

	for _, input := range inputs {
		if ok, errs := input.Module.IsValid(); !ok {
			failures = append(failures, &ResolutionFailedError{Module: input.Module, Err: errs[0]})
			continue
		}
		if seen[input.Module] {
			return nil, fmt.Errorf("module %q appears twice in the inputs", input.Module)
		}
		seen[input.Module] = true

		reqs := make([]requirement.Canonical, 0, len(input.Requirements))
		var moduleErr error
		for _, raw := range input.Requirements {
			canonical, err := requirement.ParseAndCanonicalize(raw)
			if err != nil {
				moduleErr = err
				break
			}
			reqs = append(reqs, canonical)
		}
		if moduleErr != nil {
			failures = append(failures, &ResolutionFailedError{Module: input.Module, Err: moduleErr})
			continue
		}

		modules = append(modules, fingerprinted{
			module:      input.Module,
			reqs:        reqs,
			fingerprint: fingerprint.Compute(reqs),
		})
	}

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return modules, nil
}

// resolveAll partitions modules into cache hits and work, runs the work on
// a bounded pool, and records fresh entries as they complete.
func (o *Orchestrator) resolveAll(ctx context.Context, modules []fingerprinted) (*Outcome, error) {
	outcome := &Outcome{
		Results: make([]ModuleResult, 0, len(modules)),
	}

	var toResolve []fingerprinted
	for _, m := range modules {
		status, entry, err := o.invalidator.Check(ctx, m.module, m.fingerprint)
		if err != nil {
			return nil, fmt.Errorf("checking cache for module %q: %w", m.module, err)
		}

		o.logger.Debug("cache check", "module", m.module, "status", status, "fingerprint", m.fingerprint.Short())

		if status == StatusHit {
			outcome.Reused++
			outcome.Results = append(outcome.Results, ModuleResult{
				Module:      m.module,
				Status:      StatusHit,
				Fingerprint: m.fingerprint,
				Packages:    entry.ResolvedPackages,
			})
			continue
		}

		toResolve = append(toResolve, m)
		outcome.Results = append(outcome.Results, ModuleResult{
			Module:      m.module,
			Status:      status,
			Fingerprint: m.fingerprint,
		})
	}

	if len(toResolve) > 0 {
		resolved, err := o.resolveModules(ctx, toResolve)
		if err != nil {
			return nil, err
		}
		for i := range outcome.Results {
			if pins, ok := resolved[outcome.Results[i].Module]; ok {
				outcome.Results[i].Packages = pins
				outcome.Resolved++
			}
		}
	}

	slices.SortFunc(outcome.Results, func(a, b ModuleResult) int {
		return strings.Compare(string(a.Module), string(b.Module))
	})
	return outcome, nil
}

// resolveModules runs the resolver for each module on an errgroup pool and
// writes the fresh entries to the store as they arrive.
func (o *Orchestrator) resolveModules(ctx context.Context, toResolve []fingerprinted) (map[types.ModuleName][]types.PackagePin, error) {
	resolved := make(map[types.ModuleName][]types.PackagePin, len(toResolve))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.jobs)

	for _, m := range toResolve {
		eg.Go(func() error {
			pins, err := o.resolver(ctx, m.module, m.reqs)
			if err != nil {
				return &ResolutionFailedError{Module: m.module, Err: err}
			}
			for _, pin := range pins {
				if ok, errs := pin.IsValid(); !ok {
					return &ResolutionFailedError{Module: m.module, Err: errs[0]}
				}
			}

			entry := cache.Entry{
				ModuleName:       m.module,
				Fingerprint:      m.fingerprint,
				ResolvedPackages: pins,
				CreatedAt:        time.Now().UTC(),
				ResolverIdentity: o.identity,
			}
			if err := o.store.Put(ctx, entry); err != nil {
				return &ResolutionFailedError{Module: m.module, Err: err}
			}

			o.logger.Debug("module resolved", "module", m.module, "packages", len(pins))

			mu.Lock()
			resolved[m.module] = pins
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// mergePins folds every module's pins into outcome.Merged, canonicalizing
// package names so spelling differences between resolver outputs cannot
// produce duplicate or falsely-distinct packages. Two modules pinning the
// same package to different versions is a hard error; every conflict in
// the set is reported, not just the first.
func mergePins(outcome *Outcome) error {
	type pinOrigin struct {
		module  types.ModuleName
		version string
	}

	merged := make(map[string]pinOrigin)
	var conflicts []error

	for _, result := range outcome.Results {
		for _, pin := range result.Packages {
			name, version := pin.Parts()
			if name == "" {
				return &ResolutionFailedError{
					Module: result.Module,
					Err:    fmt.Errorf("cached pin %q is not in name==version form", pin),
				}
			}
			canonical := requirement.CanonicalName(requirement.StripExtras(name))

			prev, ok := merged[canonical]
			if !ok {
				merged[canonical] = pinOrigin{module: result.Module, version: version}
				continue
			}
			if prev.version != version {
				conflicts = append(conflicts, &VersionConflictError{
					Package:  canonical,
					ModuleA:  prev.module,
					VersionA: prev.version,
					ModuleB:  result.Module,
					VersionB: version,
				})
			}
		}
	}

	if len(conflicts) > 0 {
		return errors.Join(conflicts...)
	}

	outcome.Merged = make([]types.PackagePin, 0, len(merged))
	for name, origin := range merged {
		outcome.Merged = append(outcome.Merged, types.NewPackagePin(name, origin.version))
	}
	slices.Sort(outcome.Merged)
	return nil
}
