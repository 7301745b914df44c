// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/depcache/depcache/pkg/types"
)

func TestMemStore_BasicOperations(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()

	if got, err := store.Get(ctx, "api"); err != nil || got != nil {
		t.Fatalf("Get on empty store = (%+v, %v), want (nil, nil)", got, err)
	}

	for _, module := range []string{"worker", "api"} {
		if err := store.Put(ctx, testEntry(module)); err != nil {
			t.Fatalf("Put(%s): %v", module, err)
		}
	}

	got, err := store.Get(ctx, "api")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ModuleName != "api" {
		t.Fatalf("Get = %+v, want api entry", got)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ModuleName != "api" || entries[1].ModuleName != "worker" {
		t.Errorf("List = %v, want sorted [api worker]", entries)
	}

	if err := store.Delete(ctx, "api"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "api"); err != nil {
		t.Errorf("second Delete: %v", err)
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	entries, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List after DeleteAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List after DeleteAll = %d entries, want 0", len(entries))
	}
}

func TestMemStore_RejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	if err := store.Put(context.Background(), Entry{ModuleName: "api"}); err == nil {
		t.Error("Put accepted entry without fingerprint")
	}
}

func TestMemStore_CallerCannotMutateStoredEntry(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("api")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := store.Get(ctx, "api")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.ResolvedPackages[0] = "tampered==0.0.0"

	second, err := store.Get(ctx, "api")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.ResolvedPackages[0] == "tampered==0.0.0" {
		t.Error("mutating a returned entry changed the stored copy")
	}
}

func TestMemStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	modules := []types.ModuleName{"api", "worker", "web", "jobs"}

	var wg sync.WaitGroup
	for _, module := range modules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := testEntry(string(module))
			if err := store.Put(ctx, entry); err != nil {
				t.Errorf("Put(%s): %v", module, err)
			}
			if _, err := store.Get(ctx, module); err != nil {
				t.Errorf("Get(%s): %v", module, err)
			}
			if _, err := store.List(ctx); err != nil {
				t.Errorf("List: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != len(modules) {
		t.Errorf("List = %d entries, want %d", len(entries), len(modules))
	}
}
