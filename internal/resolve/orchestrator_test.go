// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/depcache/depcache/internal/cache"
	"github.com/depcache/depcache/internal/requirement"
	"github.com/depcache/depcache/pkg/types"
)

// fakeResolver is a canned ResolverFunc that records which modules were
// resolved. Modules without canned pins get a unique default pin so
// unrelated modules never collide in the merged set.
type fakeResolver struct {
	mu          sync.Mutex
	calls       []types.ModuleName
	pins        map[types.ModuleName][]types.PackagePin
	errFor      map[types.ModuleName]error
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (f *fakeResolver) resolve(_ context.Context, module types.ModuleName, _ []requirement.Canonical) ([]types.PackagePin, error) {
	f.mu.Lock()
	f.calls = append(f.calls, module)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.errFor[module]; ok {
		return nil, err
	}
	if pins, ok := f.pins[module]; ok {
		return pins, nil
	}
	return []types.PackagePin{types.NewPackagePin("lib-"+string(module), "1.0.0")}, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeResolver) calledModules() []types.ModuleName {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.ModuleName, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestOrchestrator(t *testing.T, store cache.Store, resolver *fakeResolver, mutate func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		Store:            store,
		Resolver:         resolver.resolve,
		ResolverIdentity: "env-test0000",
	}
	if mutate != nil {
		mutate(&opts)
	}
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNew_RequiresStoreAndResolver(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Resolver: (&fakeResolver{}).resolve}); err == nil {
		t.Error("New accepted options without a store")
	}
	if _, err := New(Options{Store: cache.NewMemStore()}); err == nil {
		t.Error("New accepted options without a resolver")
	}
}

func TestOrchestrator_FirstRunResolvesEverything(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	outcome, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.3"}},
		{Module: "web", Requirements: []string{"django>=4.2"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Resolved != 3 || outcome.Reused != 0 {
		t.Errorf("Resolved/Reused = %d/%d, want 3/0", outcome.Resolved, outcome.Reused)
	}
	if resolver.callCount() != 3 {
		t.Errorf("resolver called %d times, want 3", resolver.callCount())
	}
	if len(outcome.Merged) != 3 {
		t.Errorf("Merged = %v, want 3 pins", outcome.Merged)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("store has %d entries, want 3", len(entries))
	}
	for _, entry := range entries {
		if entry.ResolverIdentity != "env-test0000" {
			t.Errorf("entry %s identity = %q, want env-test0000", entry.ModuleName, entry.ResolverIdentity)
		}
	}
}

func TestOrchestrator_SecondRunReusesEverything(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	inputs := []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0", "requests[security]==2.31.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.3"}},
	}

	if _, err := o.Run(context.Background(), inputs); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	outcome, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if resolver.callCount() != 2 {
		t.Errorf("resolver called %d times total, want 2 (second run fully cached)", resolver.callCount())
	}
	if outcome.Reused != 2 || outcome.Resolved != 0 {
		t.Errorf("Resolved/Reused = %d/%d, want 0/2", outcome.Resolved, outcome.Reused)
	}
	for _, result := range outcome.Results {
		if result.Status != StatusHit {
			t.Errorf("module %s status = %q, want %q", result.Module, result.Status, StatusHit)
		}
		if len(result.Packages) == 0 {
			t.Errorf("module %s hit carries no cached pins", result.Module)
		}
	}
}

func TestOrchestrator_ChangedModuleReResolvedAlone(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	if _, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.3"}},
		{Module: "web", Requirements: []string{"django>=4.2"}},
	}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	outcome, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.4"}},
		{Module: "web", Requirements: []string{"django>=4.2"}},
	})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if outcome.Reused != 2 || outcome.Resolved != 1 {
		t.Errorf("Resolved/Reused = %d/%d, want 1/2", outcome.Resolved, outcome.Reused)
	}

	called := resolver.calledModules()
	if len(called) != 4 || called[3] != "worker" {
		t.Errorf("resolver calls = %v, want only worker re-resolved on second run", called)
	}
}

func TestOrchestrator_FormattingChangesDoNotInvalidate(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	if _, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"Flask >= 2.0", "requests[ssl,security]==2.31.0"}},
	}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	outcome, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"requests[security, ssl] == 2.31.0", "flask>=2.0"}},
	})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if resolver.callCount() != 1 {
		t.Errorf("resolver called %d times, want 1 (reordered spelling must not invalidate)", resolver.callCount())
	}
	if outcome.Reused != 1 {
		t.Errorf("Reused = %d, want 1", outcome.Reused)
	}
}

func TestOrchestrator_MalformedRequirementFailsRun(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=>=5.3"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite malformed requirement")
	}

	var failedErr *ResolutionFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("error = %v, want *ResolutionFailedError", err)
	}
	if failedErr.Module != "worker" {
		t.Errorf("failed module = %q, want worker", failedErr.Module)
	}
	if !errors.Is(err, requirement.ErrMalformedRequirement) {
		t.Errorf("error chain does not include ErrMalformedRequirement: %v", err)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver called %d times, want 0 when the run fails up front", resolver.callCount())
	}
}

func TestOrchestrator_AllMalformedModulesReported(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"[broken"}},
		{Module: "worker", Requirements: []string{"celery@5.3"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite malformed requirements")
	}

	msg := err.Error()
	for _, module := range []string{"api", "worker"} {
		if !strings.Contains(msg, fmt.Sprintf("%q", module)) {
			t.Errorf("error %q does not name module %s", msg, module)
		}
	}
}

func TestOrchestrator_ResolverFailureAbortsRun(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{
		errFor: map[types.ModuleName]error{
			"worker": errors.New("index unreachable"),
		},
	}
	o := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.Jobs = 1
	})

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.3"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite resolver failure")
	}

	var failedErr *ResolutionFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("error = %v, want *ResolutionFailedError", err)
	}
	if failedErr.Module != "worker" {
		t.Errorf("failed module = %q, want worker", failedErr.Module)
	}

	// The module that resolved before the failure keeps its entry.
	entry, getErr := store.Get(context.Background(), "api")
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if entry == nil {
		t.Error("successfully resolved module lost its cache entry after a sibling failure")
	}
}

func TestOrchestrator_VersionConflictIsHardError(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{
		pins: map[types.ModuleName][]types.PackagePin{
			"api":    {"requests==2.31.0"},
			"worker": {"requests==2.28.0"},
		},
	}
	o := newTestOrchestrator(t, store, resolver, nil)

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"requests"}},
		{Module: "worker", Requirements: []string{"requests"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite cross-module version conflict")
	}
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict in chain", err)
	}

	var conflictErr *VersionConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("error = %v, want *VersionConflictError", err)
	}
	if conflictErr.Package != "requests" {
		t.Errorf("conflict package = %q, want requests", conflictErr.Package)
	}
	modules := []types.ModuleName{conflictErr.ModuleA, conflictErr.ModuleB}
	if !(modules[0] == "api" && modules[1] == "worker") && !(modules[0] == "worker" && modules[1] == "api") {
		t.Errorf("conflict names modules %v, want api and worker", modules)
	}
	versions := []string{conflictErr.VersionA, conflictErr.VersionB}
	for _, want := range []string{"2.31.0", "2.28.0"} {
		if versions[0] != want && versions[1] != want {
			t.Errorf("conflict versions %v missing %s", versions, want)
		}
	}
}

func TestOrchestrator_AgreeingPinsMergeToOne(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{
		pins: map[types.ModuleName][]types.PackagePin{
			"api":    {"requests==2.31.0", "Flask==2.3.2"},
			"worker": {"requests==2.31.0", "flask==2.3.2"},
		},
	}
	o := newTestOrchestrator(t, store, resolver, nil)

	outcome, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"requests", "flask"}},
		{Module: "worker", Requirements: []string{"requests", "flask"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []types.PackagePin{"flask==2.3.2", "requests==2.31.0"}
	if len(outcome.Merged) != len(want) {
		t.Fatalf("Merged = %v, want %v", outcome.Merged, want)
	}
	for i := range want {
		if outcome.Merged[i] != want[i] {
			t.Errorf("Merged[%d] = %q, want %q", i, outcome.Merged[i], want[i])
		}
	}
}

func TestOrchestrator_Hooks(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}

	var order []string
	var installed []types.PackagePin
	o := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.PreResolve = func(ctx context.Context, inputs []ModuleInput) error {
			order = append(order, "pre")
			return nil
		}
		opts.PostResolve = func(ctx context.Context, outcome *Outcome) error {
			order = append(order, "post")
			if outcome.Resolved != 1 {
				t.Errorf("post-resolve outcome Resolved = %d, want 1", outcome.Resolved)
			}
			return nil
		}
		opts.Install = func(ctx context.Context, pins []types.PackagePin) error {
			order = append(order, "install")
			installed = pins
			return nil
		}
	})

	if _, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"pre", "post", "install"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("hook order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if len(installed) != 1 {
		t.Errorf("install received %v, want the merged set", installed)
	}
}

func TestOrchestrator_PreResolveErrorAbortsRun(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.PreResolve = func(ctx context.Context, inputs []ModuleInput) error {
			return errors.New("hook says no")
		}
	})

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite failing pre-resolve hook")
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver called %d times after aborted pre-resolve, want 0", resolver.callCount())
	}
}

func TestOrchestrator_InstallFailureReturnsOutcome(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.Install = func(ctx context.Context, pins []types.PackagePin) error {
			return errors.New("pip exploded")
		}
	})

	outcome, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
	})
	if err == nil {
		t.Fatal("Run succeeded despite failing install")
	}
	if outcome == nil {
		t.Fatal("install failure dropped the outcome; resolution results must survive")
	}
	if outcome.Resolved != 1 {
		t.Errorf("outcome.Resolved = %d, want 1", outcome.Resolved)
	}
}

func TestOrchestrator_IdentityChangeInvalidatesEverything(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}

	inputs := []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "worker", Requirements: []string{"celery>=5.3"}},
	}

	oldEnv := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.ResolverIdentity = "env-python311"
	})
	if _, err := oldEnv.Run(context.Background(), inputs); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	newEnv := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.ResolverIdentity = "env-python312"
	})
	outcome, err := newEnv.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if outcome.Resolved != 2 || outcome.Reused != 0 {
		t.Errorf("Resolved/Reused = %d/%d, want 2/0 after interpreter change", outcome.Resolved, outcome.Reused)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, entry := range entries {
		if entry.ResolverIdentity != "env-python312" {
			t.Errorf("entry %s identity = %q, want env-python312", entry.ModuleName, entry.ResolverIdentity)
		}
	}
}

func TestOrchestrator_DuplicateModuleInputsRejected(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, store, resolver, nil)

	_, err := o.Run(context.Background(), []ModuleInput{
		{Module: "api", Requirements: []string{"flask>=2.0"}},
		{Module: "api", Requirements: []string{"django>=4.2"}},
	})
	if err == nil {
		t.Fatal("Run accepted duplicate module inputs")
	}
}

func TestOrchestrator_EmptyRequirementsModule(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{
		pins: map[types.ModuleName][]types.PackagePin{"empty": nil},
	}
	o := newTestOrchestrator(t, store, resolver, nil)

	inputs := []ModuleInput{{Module: "empty", Requirements: nil}}

	outcome, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Resolved != 1 {
		t.Errorf("Resolved = %d, want 1", outcome.Resolved)
	}
	if len(outcome.Merged) != 0 {
		t.Errorf("Merged = %v, want empty", outcome.Merged)
	}

	outcome, err = o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if outcome.Reused != 1 {
		t.Errorf("Reused = %d, want 1 (empty module caches like any other)", outcome.Reused)
	}
}

func TestOrchestrator_BoundedParallelism(t *testing.T) {
	t.Parallel()

	store := cache.NewMemStore()
	resolver := &fakeResolver{delay: 5 * time.Millisecond}
	o := newTestOrchestrator(t, store, resolver, func(opts *Options) {
		opts.Jobs = 2
	})

	var inputs []ModuleInput
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		inputs = append(inputs, ModuleInput{
			Module:       types.ModuleName(name),
			Requirements: []string{"flask>=2.0"},
		})
	}

	if _, err := o.Run(context.Background(), inputs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	resolver.mu.Lock()
	maxInFlight := resolver.maxInFlight
	resolver.mu.Unlock()
	if maxInFlight > 2 {
		t.Errorf("max in-flight resolver calls = %d, want at most 2", maxInFlight)
	}
}
