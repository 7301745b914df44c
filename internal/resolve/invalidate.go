// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/fingerprint"
	"github.com/depcache/depcache/pkg/types"
)

// Invalidator is the single authority on whether a module's cached
// resolution may be reused. Nothing else in the codebase compares
// fingerprints or resolver identities.
type Invalidator struct {
	store            cache.Store
	resolverIdentity string
	logger           *log.Logger
}

// NewInvalidator creates an Invalidator that reads entries from store.
// resolverIdentity is the tag of the environment the caller will resolve
// with; entries recorded under any other tag are reported stale. An empty
// identity disables the identity check.
func NewInvalidator(store cache.Store, resolverIdentity string) *Invalidator {
	return &Invalidator{
		store:            store,
		resolverIdentity: resolverIdentity,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "resolve",
		}),
	}
}

// Check classifies the module against the fingerprint of its current
// requirement set. On a hit the cached entry is returned alongside the
// status so callers do not need a second store read. Corrupt entries are
// logged and reported as a miss; only store I/O failures return an error.
func (inv *Invalidator) Check(ctx context.Context, module types.ModuleName, fp fingerprint.Fingerprint) (Status, *cache.Entry, error) {
	entry, err := inv.store.Get(ctx, module)
	if err != nil {
		var corruptErr *cache.CorruptEntryError
		if errors.As(err, &corruptErr) {
			inv.logger.Warn("treating corrupt cache entry as miss", "module", module, "error", corruptErr)
			return StatusMiss, nil, nil
		}
		return "", nil, err
	}
	if entry == nil {
		return StatusMiss, nil, nil
	}

	if _, ok := fingerprint.Parse(string(entry.Fingerprint)); !ok {
		inv.logger.Warn("treating cache entry with unparsable fingerprint as miss", "module", module)
		return StatusMiss, nil, nil
	}

	if entry.Fingerprint != fp {
		return StatusStale, nil, nil
	}
	if inv.resolverIdentity != "" && entry.ResolverIdentity != inv.resolverIdentity {
		return StatusStale, nil, nil
	}
	return StatusHit, entry, nil
}
