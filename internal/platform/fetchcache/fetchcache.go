// Package fetchcache is a keyed cache of backend fetch results with
// per-kind revalidation. A fetch started before the key was replaced or
// invalidated does not overwrite the newer value.
package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached resource.
type Key struct {
	Kind   string
	ID     string
	Params string
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Kind + "/" + k.ID
	}
	return k.Kind + "/" + k.ID + "?" + k.Params
}

// Policy controls how entries of a kind age.
type Policy struct {
	// TTL after which an entry is revalidated on the next read.
	TTL time.Duration
	// Revalidate false keeps entries until they are replaced with Set or
	// removed with Invalidate.
	Revalidate bool
}

// StaleError is returned together with a previously cached value when
// revalidating that value failed.
type StaleError struct {
	Key Key
	Err error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("serving stale %s: %v", e.Key, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }

// IsStale reports whether err only signals that stale data was served.
func IsStale(err error) bool {
	var se *StaleError
	return errors.As(err, &se)
}

type entry struct {
	value     any
	fetchedAt time.Time
}

const (
	// DefaultFetchTimeout bounds a shared fetch once it no longer follows the
	// context of the caller that started it.
	DefaultFetchTimeout = 2 * time.Minute
	// DefaultMaxEntries is the entry count above which expired entries are
	// swept and the oldest ones evicted.
	DefaultMaxEntries = 10000
)

// Cache holds fetch results keyed by Key.
type Cache struct {
	mu           sync.Mutex
	entries      map[Key]*entry
	// gens holds a generation per key with a fetch in flight.
	gens         map[Key]uint64
	policies     map[string]Policy
	fallback     Policy
	group        singleflight.Group
	now          func() time.Time
	fetchTimeout time.Duration
	maxEntries   int
	logger       zerolog.Logger
}

// New creates a cache whose kinds revalidate after defaultTTL unless a
// policy is registered for them.
func New(logger zerolog.Logger, defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:      make(map[Key]*entry),
		gens:         make(map[Key]uint64),
		policies:     make(map[string]Policy),
		fallback:     Policy{TTL: defaultTTL, Revalidate: true},
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
		maxEntries:   DefaultMaxEntries,
		logger:       logger,
	}
}

// SetPolicy registers the policy of a kind.
func (c *Cache) SetPolicy(kind string, p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[kind] = p
}

func (c *Cache) policy(kind string) Policy {
	if p, ok := c.policies[kind]; ok {
		return p
	}
	return c.fallback
}

// Get returns the cached value of key, fetching it when absent or due for
// revalidation. Concurrent reads of the same key share one fetch. When a
// revalidation fails the stale value is returned with a *StaleError.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	var zero T
	if v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached %s has type %T", key, v)
	}
	return t, err
}

func (c *Cache) get(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	p := c.policy(key.Kind)
	if ok && (!p.Revalidate || c.now().Sub(cached.fetchedAt) < p.TTL) {
		c.mu.Unlock()
		return cached.value, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// Callers joining the flight must not see the first caller's
		// cancellation.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		c.mu.Lock()
		c.gens[key]++
		gen := c.gens[key]
		c.mu.Unlock()

		v, err := fetch(fctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		current := c.gens[key] == gen
		delete(c.gens, key)
		if err != nil {
			return nil, err
		}
		if current {
			c.entries[key] = &entry{value: v, fetchedAt: c.now()}
			c.evictLocked(key)
		} else {
			c.logger.Debug().Str("key", key.String()).Msg("discarding superseded fetch")
		}
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		if ok {
			c.logger.Warn().Err(res.Err).Str("key", key.String()).Msg("revalidation failed, serving stale value")
			return cached.value, &StaleError{Key: key, Err: res.Err}
		}
		return nil, res.Err
	}
	return res.Val, nil
}

// evictLocked keeps the cache within maxEntries: expired entries go first,
// then the oldest ones. keep is never evicted.
func (c *Cache) evictLocked(keep Key) {
	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if k == keep {
			continue
		}
		if p := c.policy(k.Kind); p.Revalidate && now.Sub(e.fetchedAt) >= p.TTL {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > c.maxEntries {
		var (
			oldest Key
			at     time.Time
			found  bool
		)
		for k, e := range c.entries {
			if k == keep {
				continue
			}
			if !found || e.fetchedAt.Before(at) {
				oldest, at, found = k, e.fetchedAt, true
			}
		}
		if !found {
			return
		}
		delete(c.entries, oldest)
	}
}

// Set replaces the value of key. A fetch of key already in flight will not
// overwrite it.
func (c *Cache) Set(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, inFlight := c.gens[key]; inFlight {
		c.gens[key]++
	}
	c.entries[key] = &entry{value: v, fetchedAt: c.now()}
	c.evictLocked(key)
}

// Peek returns the cached value of key without fetching.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops every entry of the given kind and id, whatever its
// params. In-flight fetches of those keys are discarded.
func (c *Cache) Invalidate(kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Kind == kind && k.ID == id {
			delete(c.entries, k)
		}
	}
	for k := range c.gens {
		if k.Kind == kind && k.ID == id {
			c.gens[k]++
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
