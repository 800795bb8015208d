// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppdev/cmd/logger"
	"golang.org/x/sync/singleflight"
)

// CacheStatusHeader tells how the cache handled a response.
const CacheStatusHeader = "X-Cache-Status"

const (
	StatusHit    = "HIT"
	StatusMiss   = "MISS"
	StatusBypass = "BYPASS"
)

// Entry is one stored response. Entries are replaced, never mutated.
type Entry struct {
	Key       string
	Response  *Response
	CreatedAt time.Time
	TTL       time.Duration
}

// Live reports whether the entry may still be served at now.
func (e *Entry) Live(now time.Time) bool {
	return now.Before(e.CreatedAt.Add(e.TTL))
}

// CacheStats counts cache outcomes since the cache was created.
type CacheStats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Bypasses uint64 `json:"bypasses"`
	Fetches  uint64 `json:"fetches"`
	Entries  int    `json:"entries"`
}

// Cache memoizes upstream GET and HEAD responses for a fixed TTL. Concurrent
// misses for one key share a single upstream call.
type Cache struct {
	fetch Fetcher
	ttl   time.Duration
	now   func() time.Time
	log   logger.MultiLogger
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry
	stats   CacheStats
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithCacheLogger sets the cache logger.
func WithCacheLogger(l logger.MultiLogger) CacheOption {
	return func(c *Cache) { c.log = l }
}

// NewCache returns an empty cache in front of fetch.
func NewCache(fetch Fetcher, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		fetch:   fetch,
		ttl:     ttl,
		now:     time.Now,
		log:     proxyLog.New("component", "cache"),
		entries: map[string]*Entry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cacheable reports whether responses to method may be memoized.
func Cacheable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// CacheKey is the method, escaped path and raw query of r. Headers are not
// part of the key.
func CacheKey(r *http.Request) string {
	key := strings.ToUpper(r.Method) + " " + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	return key
}

// TTL returns the lifetime of new entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Do returns the response for r, from the cache when a live entry exists.
func (c *Cache) Do(ctx context.Context, r *http.Request) (*Response, error) {
	resp, _, err := c.do(ctx, r)
	return resp, err
}

func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, status, err := c.do(r.Context(), r)
	if err != nil {
		badGateway(w, r, err)
		return
	}
	w.Header().Set(CacheStatusHeader, status)
	resp.Write(w, r)
}

type flight struct {
	resp *Response
	hit  bool
}

func (c *Cache) do(ctx context.Context, r *http.Request) (*Response, string, error) {
	if !Cacheable(r.Method) {
		c.count(func(s *CacheStats) { s.Bypasses++; s.Fetches++ })
		resp, err := c.fetch.Fetch(ctx, r)
		return resp, StatusBypass, err
	}

	key := CacheKey(r)
	if resp := c.lookup(key); resp != nil {
		c.count(func(s *CacheStats) { s.Hits++ })
		return resp, StatusHit, nil
	}

	// The fetch outlives any single caller, so one client going away does not
	// fail the others waiting on the same key.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if resp := c.lookup(key); resp != nil {
			return flight{resp: resp, hit: true}, nil
		}
		c.count(func(s *CacheStats) { s.Fetches++ })
		resp, err := c.fetch.Fetch(fetchCtx, r)
		if err != nil {
			c.log.Warn("Fetch failed, nothing cached", "key", key, "error", err)
			return nil, err
		}
		if resp.OK() {
			c.store(key, resp)
		}
		return flight{resp: resp}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.count(func(s *CacheStats) { s.Misses++ })
			return nil, StatusMiss, res.Err
		}
		f := res.Val.(flight)
		if f.hit {
			c.count(func(s *CacheStats) { s.Hits++ })
			return f.resp, StatusHit, nil
		}
		c.count(func(s *CacheStats) { s.Misses++ })
		return f.resp, StatusMiss, nil
	case <-ctx.Done():
		return nil, StatusMiss, ctx.Err()
	}
}

func (c *Cache) lookup(key string) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if !e.Live(c.now()) {
		delete(c.entries, key)
		return nil
	}
	return e.Response
}

func (c *Cache) store(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{Key: key, Response: resp, CreatedAt: c.now(), TTL: c.ttl}
	c.log.Debug("Stored", "key", key, "status", resp.StatusCode, "bytes", len(resp.Body))
}

func (c *Cache) count(f func(*CacheStats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

// Entry returns the live entry for key, if any.
func (c *Cache) Entry(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.Live(c.now()) {
		return nil, false
	}
	return e, true
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Purge drops every entry. Flights already running still deliver to their
// waiters and may store their result afterwards.
func (c *Cache) Purge() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = map[string]*Entry{}
	c.mu.Unlock()
	c.log.Debug("Purged", "entries", n)
}
