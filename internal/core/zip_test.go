package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// fakeZipSource serves zips from a map and counts lookups per key.
type fakeZipSource struct {
	mu    sync.Mutex
	zips  map[PlaceKey][]string
	err   error
	calls map[PlaceKey]int
}

func newFakeZipSource(zips map[PlaceKey][]string) *fakeZipSource {
	return &fakeZipSource{zips: zips, calls: make(map[PlaceKey]int)}
}

func (f *fakeZipSource) Lookup(ctx context.Context, key PlaceKey) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	return f.zips[key], nil
}

func (f *fakeZipSource) callsFor(key PlaceKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

var (
	hoboken   = NewPlaceKey("Hoboken", "NJ", "US")
	springfld = NewPlaceKey("Springfield", "IL", "US")
	nowhere   = NewPlaceKey("Nowhere", "ZZ", "US")
)

func testZipOptions() ZipResolverOptions {
	return ZipResolverOptions{
		Seed:          42,
		Timeout:       time.Second,
		MaxAttempts:   3,
		RetryInterval: time.Millisecond,
	}
}

func TestZipResolver_SingleCandidate(t *testing.T) {
	src := newFakeZipSource(map[PlaceKey][]string{hoboken: {"07030"}})
	r := NewZipResolver(src, testZipOptions())

	o := r.Resolve(context.Background(), hoboken)
	if o.Status != ZipFound || o.Zip != "07030" {
		t.Fatalf("Resolve = %+v, want found 07030", o)
	}
	if o.Ambiguous() {
		t.Error("single candidate reported as ambiguous")
	}
}

func TestZipResolver_NotFoundIsCached(t *testing.T) {
	src := newFakeZipSource(nil)
	r := NewZipResolver(src, testZipOptions())
	ctx := context.Background()

	first := r.Resolve(ctx, nowhere)
	second := r.Resolve(ctx, nowhere)

	if first.Status != ZipNotFound || first.Zip != "" {
		t.Errorf("first = %+v, want not found", first)
	}
	if second.Status != ZipNotFound || !second.Cached {
		t.Errorf("second = %+v, want cached not found", second)
	}
	if got := src.callsFor(nowhere); got != 1 {
		t.Errorf("lookups = %d, want 1", got)
	}
}

func TestZipResolver_AmbiguousIsConsistentWithinRun(t *testing.T) {
	candidates := []string{"62701", "62702", "62703", "62704", "62705"}
	src := newFakeZipSource(map[PlaceKey][]string{springfld: candidates})
	r := NewZipResolver(src, testZipOptions())
	ctx := context.Background()

	first := r.Resolve(ctx, springfld)
	if first.Status != ZipFound || !slices.Contains(candidates, first.Zip) {
		t.Fatalf("Resolve = %+v, want one of %v", first, candidates)
	}
	if !first.Ambiguous() || first.Candidates != len(candidates) {
		t.Errorf("Candidates = %d, want %d", first.Candidates, len(candidates))
	}

	for i := 0; i < 10; i++ {
		if o := r.Resolve(ctx, springfld); o.Zip != first.Zip {
			t.Fatalf("Resolve #%d = %q, want %q", i, o.Zip, first.Zip)
		}
	}
	if got := src.callsFor(springfld); got != 1 {
		t.Errorf("lookups = %d, want 1", got)
	}
}

func TestZipResolver_FixedSeedIsReproducible(t *testing.T) {
	candidates := []string{"62701", "62702", "62703", "62704", "62705"}
	reversed := slices.Clone(candidates)
	slices.Reverse(reversed)

	a := NewZipResolver(newFakeZipSource(map[PlaceKey][]string{springfld: candidates}), testZipOptions())
	b := NewZipResolver(newFakeZipSource(map[PlaceKey][]string{springfld: reversed}), testZipOptions())

	za := a.Resolve(context.Background(), springfld).Zip
	zb := b.Resolve(context.Background(), springfld).Zip
	if za != zb {
		t.Errorf("same seed picked %q and %q", za, zb)
	}
}

func TestZipResolver_LookupFailure(t *testing.T) {
	src := newFakeZipSource(nil)
	src.err = errors.New("connection refused")
	r := NewZipResolver(src, testZipOptions())

	o := r.Resolve(context.Background(), hoboken)
	if o.Status != ZipLookupFailed {
		t.Fatalf("Status = %s, want failed", o.Status)
	}
	if o.Zip != "" {
		t.Errorf("Zip = %q, want empty", o.Zip)
	}
	if o.Err == nil {
		t.Error("Err = nil, want lookup error")
	}
	if got := src.callsFor(hoboken); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	// Failures are cached for the rest of the run.
	if o := r.Resolve(context.Background(), hoboken); !o.Cached || o.Status != ZipLookupFailed {
		t.Errorf("second Resolve = %+v, want cached failure", o)
	}
}

func TestZipResolver_CancelledLookupNotCached(t *testing.T) {
	src := newFakeZipSource(map[PlaceKey][]string{hoboken: {"07030"}})
	src.err = errors.New("unavailable")
	r := NewZipResolver(src, testZipOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if o := r.Resolve(ctx, hoboken); o.Status != ZipLookupFailed {
		t.Fatalf("Status = %s, want failed", o.Status)
	}
	if _, ok := r.Cache().Get(hoboken); ok {
		t.Error("cancelled lookup was cached")
	}
}

func TestZipResolver_EmptyKey(t *testing.T) {
	src := newFakeZipSource(nil)
	r := NewZipResolver(src, testZipOptions())

	if o := r.Resolve(context.Background(), NewPlaceKey("", "NJ", "US")); o.Status != ZipNotFound {
		t.Errorf("Status = %s, want not_found", o.Status)
	}
	if len(src.calls) != 0 {
		t.Errorf("empty key triggered %d lookups", len(src.calls))
	}
}

func TestZipResolver_Prefetch(t *testing.T) {
	src := newFakeZipSource(map[PlaceKey][]string{
		hoboken:   {"07030"},
		springfld: {"62701", "62702"},
	})
	opts := testZipOptions()
	opts.Concurrency = 2
	r := NewZipResolver(src, opts)

	keys := []PlaceKey{hoboken, springfld, hoboken, nowhere, springfld, {}}
	if err := r.Prefetch(context.Background(), keys); err != nil {
		t.Fatalf("Prefetch error: %v", err)
	}

	for _, k := range []PlaceKey{hoboken, springfld, nowhere} {
		if got := src.callsFor(k); got != 1 {
			t.Errorf("lookups for %s = %d, want 1", k, got)
		}
		if o := r.Resolve(context.Background(), k); !o.Cached {
			t.Errorf("Resolve(%s) not served from cache", k)
		}
	}
	if got := r.Cache().Len(); got != 3 {
		t.Errorf("cache size = %d, want 3", got)
	}
}

func TestZipResolver_PrefetchKeysWithSlashes(t *testing.T) {
	left := PlaceKey{Country: "US", State: "a/b", City: "c"}
	right := PlaceKey{Country: "US", State: "a", City: "b/c"}
	src := newFakeZipSource(map[PlaceKey][]string{
		left:  {"11111"},
		right: {"22222"},
	})
	opts := testZipOptions()
	opts.Concurrency = 2
	r := NewZipResolver(src, opts)

	if err := r.Prefetch(context.Background(), []PlaceKey{left, right}); err != nil {
		t.Fatalf("Prefetch error: %v", err)
	}
	if got := r.Resolve(context.Background(), left).Zip; got != "11111" {
		t.Errorf("Resolve(left) = %q, want %q", got, "11111")
	}
	if got := r.Resolve(context.Background(), right).Zip; got != "22222" {
		t.Errorf("Resolve(right) = %q, want %q", got, "22222")
	}
	if src.callsFor(left) != 1 || src.callsFor(right) != 1 {
		t.Errorf("lookups = %d/%d, want 1/1", src.callsFor(left), src.callsFor(right))
	}
}

// outcomeRecorder keeps the zip lookup outcomes it is given.
type outcomeRecorder struct {
	NopRecorder
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) ZipLookup(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestZipResolver_RecordsOutcomes(t *testing.T) {
	src := newFakeZipSource(map[PlaceKey][]string{hoboken: {"07030"}})
	rec := &outcomeRecorder{}
	opts := testZipOptions()
	opts.Recorder = rec
	r := NewZipResolver(src, opts)

	ctx := context.Background()
	r.Resolve(ctx, hoboken)
	r.Resolve(ctx, hoboken)
	r.Resolve(ctx, nowhere)

	want := []string{"found", ZipCacheHit, "not_found"}
	if !slices.Equal(rec.outcomes, want) {
		t.Errorf("outcomes = %v, want %v", rec.outcomes, want)
	}

	failing := newFakeZipSource(nil)
	failing.err = errors.New("connection refused")
	opts.MaxAttempts = 1
	rec.outcomes = nil
	NewZipResolver(failing, opts).Resolve(ctx, hoboken)
	if !slices.Equal(rec.outcomes, []string{"failed"}) {
		t.Errorf("outcomes = %v, want [failed]", rec.outcomes)
	}
}

func TestDistinctZips(t *testing.T) {
	got := distinctZips([]string{" 07030", "07030", "", "07002"})
	want := []string{"07002", "07030"}
	if !slices.Equal(got, want) {
		t.Errorf("distinctZips = %v, want %v", got, want)
	}
}
