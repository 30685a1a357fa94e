// Package cache implements a two-tier query cache. The parsed-query
// tier memoizes Parse (source text to AST) so repeated executions of the
// same query text skip the lexer/parser entirely; the result tier
// memoizes Execute (query plus active node to a result) with a TTL and
// per-entry included-path tracking, so a file edit can invalidate exactly
// the result entries that actually read it instead of the whole tier.
// golang.org/x/sync/singleflight collapses concurrent duplicate
// executions of the same query onto one in-flight computation.
package cache

import (
	"regexp"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	ParsedHits    int64
	ParsedMisses  int64
	ResultHits    int64
	ResultMisses  int64
	Evictions     int64
	Invalidations int64
}

type resultEntry struct {
	value         any
	includedPaths []string
	expiresAt     time.Time
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	mu      sync.Mutex
	parsed  *lru
	results *lru
	clock   clock.Clock
	ttl     time.Duration
	sf      singleflight.Group

	parsedHits, parsedMisses   atomic.Int64
	resultHits, resultMisses   atomic.Int64
	evictions, invalidations   atomic.Int64
}

// New builds a cache with the given tier capacities and result TTL. A nil
// clk defaults to the real clock.
func New(parsedCapacity, resultCapacity int, ttl time.Duration, clk clock.Clock) *QueryCache {
	if clk == nil {
		clk = clock.New()
	}
	return &QueryCache{
		parsed:  newLRU(parsedCapacity),
		results: newLRU(resultCapacity),
		clock:   clk,
		ttl:     ttl,
	}
}

// GetParsed returns a cached parse result for src, if present.
func (c *QueryCache) GetParsed(src string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.parsed.get(src)
	if ok {
		c.parsedHits.Inc()
	} else {
		c.parsedMisses.Inc()
	}
	return v, ok
}

// PutParsed stores a parse result for src.
func (c *QueryCache) PutParsed(src string, query any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parsed.put(src, query) {
		c.evictions.Inc()
	}
}

// GetResult returns a cached, still-live result for key.
func (c *QueryCache) GetResult(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.results.get(key)
	if !ok {
		c.resultMisses.Inc()
		return nil, false
	}
	entry := v.(*resultEntry)
	if c.clock.Now().After(entry.expiresAt) {
		c.results.remove(key)
		c.resultMisses.Inc()
		return nil, false
	}
	c.resultHits.Inc()
	return entry.value, true
}

// PutResult stores a computed result under key, tagged with every file
// path that contributed to it so a later edit can invalidate it precisely.
func (c *QueryCache) PutResult(key string, value any, includedPaths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &resultEntry{value: value, includedPaths: includedPaths, expiresAt: c.clock.Now().Add(c.ttl)}
	if c.results.put(key, entry) {
		c.evictions.Inc()
	}
}

// ExecuteCached is the common path: return a live cached result for key,
// or run compute exactly once across concurrent callers and cache its
// result with the paths it reports having read.
func (c *QueryCache) ExecuteCached(key string, compute func() (value any, includedPaths []string, err error)) (any, error) {
	if v, ok := c.GetResult(key); ok {
		return v, nil
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := c.GetResult(key); ok {
			return v, nil
		}
		value, paths, err := compute()
		if err != nil {
			return nil, err
		}
		c.PutResult(key, value, paths)
		return value, nil
	})
	return v, err
}

// InvalidateFile drops every result entry that read path.
func (c *QueryCache) InvalidateFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.results.keys() {
		v, ok := c.results.get(key)
		if !ok {
			continue
		}
		entry := v.(*resultEntry)
		for _, p := range entry.includedPaths {
			if p == path {
				c.results.remove(key)
				c.invalidations.Inc()
				break
			}
		}
	}
}

// InvalidatePattern drops every result entry that read a path matching
// the regular expression pattern. An invalid pattern matches nothing.
func (c *QueryCache) InvalidatePattern(pattern string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.results.keys() {
		v, ok := c.results.get(key)
		if !ok {
			continue
		}
		entry := v.(*resultEntry)
		for _, p := range entry.includedPaths {
			if re.MatchString(p) {
				c.results.remove(key)
				c.invalidations.Inc()
				break
			}
		}
	}
}

// InvalidateAllResults clears the result tier but keeps parsed ASTs.
func (c *QueryCache) InvalidateAllResults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations.Add(int64(c.results.len()))
	c.results.clear()
}

// Clear empties both tiers.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parsed.clear()
	c.results.clear()
}

// GetStats returns a snapshot of the counters.
func (c *QueryCache) GetStats() Stats {
	return Stats{
		ParsedHits:    c.parsedHits.Load(),
		ParsedMisses:  c.parsedMisses.Load(),
		ResultHits:    c.resultHits.Load(),
		ResultMisses:  c.resultMisses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
