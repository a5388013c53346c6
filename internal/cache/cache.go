package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 2 * time.Minute
	DefaultComputeTimeout  = 5 * time.Second
)

// ComputeFunc produces the value for a missing key, it may do I/O
type ComputeFunc func(ctx context.Context) (any, error)

// Aside is a process-local read-through cache with per-entry expiry.
// Entries are only dropped on expiry, Delete or Flush; there is no capacity bound.
type Aside struct {
	store          *gocache.Cache
	defaultTTL     time.Duration
	computeTimeout time.Duration

	// ability to inject a clock (for unit testing expiry)
	NowFunc func() time.Time

	inFlight *singleflight.Group // nil unless WithSingleFlight
	hits     prometheus.Counter
	misses   prometheus.Counter
}

type item struct {
	value     any
	expiresAt time.Time
}

type Option func(*Aside)

func WithDefaultTTL(ttl time.Duration) Option {
	return func(a *Aside) {
		if ttl > 0 {
			a.defaultTTL = ttl
		}
	}
}

// WithComputeTimeout bounds every compute run by GetOrSet
func WithComputeTimeout(timeout time.Duration) Option {
	return func(a *Aside) {
		if timeout > 0 {
			a.computeTimeout = timeout
		}
	}
}

// WithSingleFlight makes concurrent misses on the same key share one compute call.
// Without it every caller that observes a miss runs compute on its own.
func WithSingleFlight() Option {
	return func(a *Aside) {
		a.inFlight = &singleflight.Group{}
	}
}

func WithMetrics(hits, misses prometheus.Counter) Option {
	return func(a *Aside) {
		a.hits = hits
		a.misses = misses
	}
}

func NewAside(cleanupInterval time.Duration, opts ...Option) *Aside {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	a := &Aside{
		defaultTTL:     DefaultTTL,
		computeTimeout: DefaultComputeTimeout,
		NowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.store = gocache.New(a.defaultTTL, cleanupInterval)

	return a
}

func (a *Aside) Get(key string) (any, bool) {
	cached, found := a.store.Get(key)
	if !found {
		return nil, false
	}

	it, ok := cached.(item)
	if !ok {
		return nil, false
	}
	if !a.NowFunc().Before(it.expiresAt) {
		a.store.Delete(key)
		return nil, false
	}

	return it.value, true
}

// Set stores value for ttl, a non-positive ttl means the default ttl
func (a *Aside) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	a.store.Set(key, item{
		value:     value,
		expiresAt: a.NowFunc().Add(ttl),
	}, ttl)
}

func (a *Aside) Delete(key string) {
	a.store.Delete(key)
}

// Flush drops all entries, maintenance only
func (a *Aside) Flush() {
	a.store.Flush()
}

func (a *Aside) ItemCount() int {
	return a.store.ItemCount()
}

// GetOrSet returns the cached value, or runs compute, caches its result for ttl and returns it.
// Compute errors are returned as they are and nothing is cached.
func (a *Aside) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (any, error) {
	if value, found := a.Get(key); found {
		a.observe(a.hits)
		return value, nil
	}
	a.observe(a.misses)

	if a.inFlight == nil {
		return a.computeAndSet(ctx, key, ttl, compute)
	}

	value, err, _ := a.inFlight.Do(key, func() (any, error) {
		return a.computeAndSet(ctx, key, ttl, compute)
	})
	return value, err
}

func (a *Aside) computeAndSet(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (any, error) {
	computeCtx, cancel := context.WithTimeout(ctx, a.computeTimeout)
	defer cancel()

	value, err := compute(computeCtx)
	if err != nil {
		return nil, err
	}

	a.Set(key, value, ttl)
	return value, nil
}

func (a *Aside) observe(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// GetOrSetTyped is GetOrSet for callers that know the value type of the key
func GetOrSetTyped[T any](
	ctx context.Context,
	a *Aside,
	key string,
	ttl time.Duration,
	compute func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	value, err := a.GetOrSet(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for key %s has unexpected type %T", key, value)
	}
	return typed, nil
}
