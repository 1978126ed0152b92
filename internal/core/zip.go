package core

// zip.go infers missing postal codes from city, state and country.
//
// Each distinct PlaceKey is looked up at most once per run. The result,
// including "not found", is cached so every row with the same key receives
// the same zip. Lookup failures are retried with backoff and then reported
// as a failed outcome; they are cached too so a dead backend is not hammered
// row after row.
//
// When a key has several candidate zips one is picked at random. The random
// stream is derived from the run seed and the key itself, so with a fixed
// seed the pick does not depend on lookup order or concurrency.

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ZipSource is the geographic lookup: all zip codes for a place.
// An empty result with a nil error means the place is unknown.
type ZipSource interface {
	Lookup(ctx context.Context, key PlaceKey) ([]string, error)
}

// ZipSourceFunc adapts a function to ZipSource.
type ZipSourceFunc func(ctx context.Context, key PlaceKey) ([]string, error)

func (f ZipSourceFunc) Lookup(ctx context.Context, key PlaceKey) ([]string, error) {
	return f(ctx, key)
}

// ZipStatus is the result class of a zip inference.
type ZipStatus int

const (
	ZipFound ZipStatus = iota
	ZipNotFound
	ZipLookupFailed
)

// ZipCacheHit is the lookup outcome reported to the Recorder when a key is
// served from the run cache. Source lookups report their ZipStatus.
const ZipCacheHit = "cache_hit"

func (s ZipStatus) String() string {
	switch s {
	case ZipFound:
		return "found"
	case ZipNotFound:
		return "not_found"
	case ZipLookupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ZipOutcome is the resolved zip for a PlaceKey.
type ZipOutcome struct {
	Zip        string
	Status     ZipStatus
	Candidates int   // distinct candidates returned by the source
	Cached     bool  // served from the run cache
	Err        error // last lookup error when Status is ZipLookupFailed
}

// Ambiguous reports whether the zip was picked among several candidates.
func (o ZipOutcome) Ambiguous() bool {
	return o.Candidates > 1
}

// ZipCache holds resolved outcomes for one run. Safe for concurrent use.
type ZipCache struct {
	mu      sync.RWMutex
	entries map[PlaceKey]ZipOutcome
}

// NewZipCache creates an empty cache.
func NewZipCache() *ZipCache {
	return &ZipCache{entries: make(map[PlaceKey]ZipOutcome)}
}

// Get returns the cached outcome for key.
func (c *ZipCache) Get(key PlaceKey) (ZipOutcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.entries[key]
	return o, ok
}

// Put stores an outcome. The first stored outcome for a key wins.
func (c *ZipCache) Put(key PlaceKey, o ZipOutcome) ZipOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = o
	return o
}

// Len returns the number of cached keys.
func (c *ZipCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ZipResolverOptions configures lookups.
type ZipResolverOptions struct {
	// Seed drives the tie-break between candidates. 0 draws a seed from
	// system entropy, so picks differ between runs.
	Seed uint64

	// Concurrency bounds parallel lookups during Prefetch.
	Concurrency int

	// Timeout bounds a single lookup attempt.
	Timeout time.Duration

	// MaxAttempts is the number of tries per key before giving up.
	MaxAttempts uint

	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration

	Recorder Recorder
}

const (
	defaultZipConcurrency   = 8
	defaultZipTimeout       = 5 * time.Second
	defaultZipMaxAttempts   = 3
	defaultZipRetryInterval = 200 * time.Millisecond
)

func (o ZipResolverOptions) withDefaults() ZipResolverOptions {
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultZipConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultZipTimeout
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = defaultZipMaxAttempts
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultZipRetryInterval
	}
	if o.Recorder == nil {
		o.Recorder = NopRecorder{}
	}
	return o
}

// ZipResolver infers zips for one run.
type ZipResolver struct {
	source ZipSource
	opts   ZipResolverOptions
	cache  *ZipCache
	group  singleflight.Group
}

// NewZipResolver creates a resolver with a fresh cache.
func NewZipResolver(source ZipSource, opts ZipResolverOptions) *ZipResolver {
	return &ZipResolver{
		source: source,
		opts:   opts.withDefaults(),
		cache:  NewZipCache(),
	}
}

// Cache returns the run cache.
func (r *ZipResolver) Cache() *ZipCache {
	return r.cache
}

// Resolve returns the zip for key, consulting the cache first.
// Keys without a city or state resolve to not found without a lookup.
func (r *ZipResolver) Resolve(ctx context.Context, key PlaceKey) ZipOutcome {
	if key.Empty() {
		return ZipOutcome{Status: ZipNotFound}
	}
	if o, ok := r.cache.Get(key); ok {
		r.opts.Recorder.ZipLookup(ZipCacheHit, 0)
		o.Cached = true
		return o
	}

	v, _, shared := r.group.Do(key.id(), func() (any, error) {
		if o, ok := r.cache.Get(key); ok {
			return o, nil
		}
		o := r.lookup(ctx, key)
		// A cancelled run must not poison the cache for the keys it was
		// still resolving.
		if o.Status == ZipLookupFailed && ctx.Err() != nil {
			return o, nil
		}
		return r.cache.Put(key, o), nil
	})
	o := v.(ZipOutcome)
	o.Cached = shared
	return o
}

func (r *ZipResolver) lookup(ctx context.Context, key PlaceKey) ZipOutcome {
	start := time.Now()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.opts.RetryInterval
	exp.Reset()

	op := func() ([]string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		zips, err := r.source.Lookup(attemptCtx, key)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return zips, err
	}

	zips, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(r.opts.MaxAttempts),
	)
	if err != nil {
		r.opts.Recorder.ZipLookup(ZipLookupFailed.String(), time.Since(start))
		return ZipOutcome{Status: ZipLookupFailed, Err: unwrapPermanent(err)}
	}

	candidates := distinctZips(zips)
	if len(candidates) == 0 {
		r.opts.Recorder.ZipLookup(ZipNotFound.String(), time.Since(start))
		return ZipOutcome{Status: ZipNotFound}
	}
	r.opts.Recorder.ZipLookup(ZipFound.String(), time.Since(start))
	return ZipOutcome{
		Zip:        r.pick(key, candidates),
		Status:     ZipFound,
		Candidates: len(candidates),
	}
}

// pick selects uniformly among sorted candidates using a stream seeded by
// the run seed and the key.
func (r *ZipResolver) pick(key PlaceKey, candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}
	rng := rand.New(rand.NewPCG(r.opts.Seed, xxhash.Sum64String(key.id())))
	return candidates[rng.IntN(len(candidates))]
}

// Prefetch resolves keys concurrently, bounded by the configured concurrency,
// so that a following Resolve for any of them is a cache hit. It returns only
// when the context is cancelled; lookup failures end up in the cache.
func (r *ZipResolver) Prefetch(ctx context.Context, keys []PlaceKey) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	seen := make(map[PlaceKey]struct{}, len(keys))
	for _, key := range keys {
		if key.Empty() {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := r.cache.Get(key); ok {
			continue
		}
		g.Go(func() error {
			r.Resolve(gctx, key)
			return gctx.Err()
		})
	}
	return g.Wait()
}

// distinctZips trims, drops empties and duplicates, and sorts so the pick
// does not depend on the order the source returned rows in.
func distinctZips(zips []string) []string {
	out := make([]string, 0, len(zips))
	for _, z := range zips {
		if z = strings.TrimSpace(z); z != "" {
			out = append(out, z)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func unwrapPermanent(err error) error {
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return pe.Unwrap()
	}
	return err
}
