package dataset

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Cache keys.
const (
	EnvironmentKey = "environment"
	GrowthKey      = "growth"
)

// Cache memoizes loaded datasets for the life of a process. Only successful
// loads are stored, so a dataset dropped into place after a failed render is
// picked up by the next one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu  sync.Mutex
	val any
	ok  bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]*cacheEntry{}}
}

// Get returns the value stored under key, calling load the first time.
// Concurrent callers for the same key wait for a single load.
func (c *Cache) Get(key string, load func() (any, error)) (any, error) {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ok {
		return e.val, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	e.val, e.ok = v, true
	return v, nil
}

// Reset drops every cached dataset.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = map[string]*cacheEntry{}
	c.mu.Unlock()
}

// Loader pairs a Source with a Cache.
type Loader struct {
	src   Source
	cache *Cache
}

// NewLoader returns a loader; a nil cache gets a private one.
func NewLoader(src Source, cache *Cache) *Loader {
	if cache == nil {
		cache = NewCache()
	}
	return &Loader{src: src, cache: cache}
}

// Source returns the loader's source.
func (l *Loader) Source() Source { return l.src }

// Reset drops the memoized datasets so the next call reads the files again.
func (l *Loader) Reset() { l.cache.Reset() }

// Environment returns the memoized environment dataset.
func (l *Loader) Environment() (*Environment, error) {
	v, err := l.cache.Get(EnvironmentKey, func() (any, error) { return LoadEnvironment(l.src) })
	if err != nil {
		return nil, err
	}
	return v.(*Environment), nil
}

// Growth returns the memoized growth dataset.
func (l *Loader) Growth() (*Growth, error) {
	v, err := l.cache.Get(GrowthKey, func() (any, error) { return LoadGrowth(l.src) })
	if err != nil {
		return nil, err
	}
	return v.(*Growth), nil
}

// Preload loads both datasets concurrently and returns the first failure.
func (l *Loader) Preload() error {
	p := pool.New().WithErrors().WithFirstError()
	p.Go(func() error {
		_, err := l.Environment()
		return err
	})
	p.Go(func() error {
		_, err := l.Growth()
		return err
	})
	return p.Wait()
}
