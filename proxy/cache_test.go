package proxy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppdev/cmd/proxy"
	"github.com/stretchr/testify/assert"
)

// countingFetcher answers with the request path and counts upstream calls.
// When gate is set every call blocks on it.
type countingFetcher struct {
	calls   int32
	gate    chan struct{}
	started chan struct{}
	status  int
	err     error
}

func (f *countingFetcher) Fetch(ctx context.Context, r *http.Request) (*proxy.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	h.Set("Content-Type", "text/plain")
	return &proxy.Response{StatusCode: status, Header: h, Body: []byte(r.Method + " " + r.URL.RequestURI())}, nil
}

func (f *countingFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheSingleFlight(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := proxy.NewCache(f, time.Minute)

	const n = 20
	results := make([]*proxy.Response, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/api/users?id=1", nil))
			a.Nil(err)
			results[i] = resp
		}(i)
	}

	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	a.Equal(1, f.Calls())
	for _, resp := range results {
		a.Same(results[0], resp)
	}
	a.Equal("GET /api/users?id=1", string(results[0].Body))

	stats := c.Stats()
	a.Equal(uint64(1), stats.Fetches)
	a.Equal(uint64(n), stats.Hits+stats.Misses)
	a.Equal(1, stats.Entries)
}

func TestCacheTTL(t *testing.T) {
	a := assert.New(t)
	clk := &clock{now: time.Unix(1700000000, 0)}
	f := &countingFetcher{}
	c := proxy.NewCache(f, 10*time.Minute, proxy.WithClock(clk.Now))
	req := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/data", nil) }

	first, err := c.Do(context.Background(), req())
	a.Nil(err)

	clk.Advance(9 * time.Minute)
	second, err := c.Do(context.Background(), req())
	a.Nil(err)
	a.Same(first, second)
	a.Equal(1, f.Calls())

	clk.Advance(time.Minute)
	third, err := c.Do(context.Background(), req())
	a.Nil(err)
	a.NotSame(first, third)
	a.Equal(2, f.Calls())

	e, ok := c.Entry("GET /data")
	if a.True(ok) {
		a.Equal(clk.Now(), e.CreatedAt)
		a.Equal(10*time.Minute, e.TTL)
	}
}

func TestCacheBypassesNonIdempotentMethods(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{}
	c := proxy.NewCache(f, time.Minute)

	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := httptest.NewRecorder()
		c.ServeHTTP(w, httptest.NewRequest(method, "/api/test", nil))
		a.Equal(http.StatusOK, w.Code)
		a.Equal(proxy.StatusBypass, w.Header().Get(proxy.CacheStatusHeader))
	}
	a.Equal(5, f.Calls())
	a.Equal(0, c.Stats().Entries)
	a.Equal(uint64(5), c.Stats().Bypasses)
}

func TestCacheStatusHeader(t *testing.T) {
	a := assert.New(t)
	c := proxy.NewCache(&countingFetcher{}, time.Minute)

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	a.Equal(proxy.StatusMiss, w.Header().Get(proxy.CacheStatusHeader))
	a.Equal("GET /", w.Body.String())

	w = httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	a.Equal(proxy.StatusHit, w.Header().Get(proxy.CacheStatusHeader))
	a.Equal("text/plain", w.Header().Get("Content-Type"))
	a.Equal("GET /", w.Body.String())
}

func TestCacheHeadHasNoBody(t *testing.T) {
	a := assert.New(t)
	c := proxy.NewCache(&countingFetcher{}, time.Minute)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/x", nil))
	a.Equal(http.StatusOK, w.Code)
	a.Empty(w.Body.String())
}

func TestCacheKey(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{}
	c := proxy.NewCache(f, time.Minute)

	r1 := httptest.NewRequest(http.MethodGet, "/api/search?q=hello%20world&filter=name", nil)
	r2 := httptest.NewRequest(http.MethodGet, "/api/search?q=hello%20world&filter=name", nil)
	r2.Header.Set("Accept", "application/json")
	r3 := httptest.NewRequest(http.MethodGet, "/api/search?q=other", nil)

	a.Equal("GET /api/search?q=hello%20world&filter=name", proxy.CacheKey(r1))
	a.Equal(proxy.CacheKey(r1), proxy.CacheKey(r2))

	for _, r := range []*http.Request{r1, r2, r3} {
		_, err := c.Do(context.Background(), r)
		a.Nil(err)
	}
	a.Equal(2, f.Calls())
}

func TestCacheKeyKeepsEscapes(t *testing.T) {
	a := assert.New(t)
	escaped := httptest.NewRequest(http.MethodGet, "/files/a%2Fb", nil)
	plain := httptest.NewRequest(http.MethodGet, "/files/a/b", nil)
	a.Equal("GET /files/a%2Fb", proxy.CacheKey(escaped))
	a.Equal("GET /files/a/b", proxy.CacheKey(plain))
}

func TestCacheFetchErrorNotStored(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{err: errors.New("connection refused")}
	c := proxy.NewCache(f, time.Minute)

	_, err := c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/api", nil))
	a.EqualError(err, "connection refused")
	a.Equal(0, c.Stats().Entries)

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api", nil))
	a.Equal(http.StatusBadGateway, w.Code)
	a.Contains(w.Body.String(), "connection refused")
	a.Equal(2, f.Calls())
}

func TestCacheNon2xxNotStored(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{status: http.StatusNotFound}
	c := proxy.NewCache(f, time.Minute)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
		a.Equal(http.StatusNotFound, w.Code)
		a.Equal("GET /missing", w.Body.String())
	}
	a.Equal(2, f.Calls())
	a.Equal(0, c.Stats().Entries)
}

// A waiter that goes away does not cancel the shared fetch. Its result is
// still stored for later callers.
func TestCacheCancelledWaiter(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := proxy.NewCache(f, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, httptest.NewRequest(http.MethodGet, "/slow", nil))
		errc <- err
	}()

	<-f.started
	cancel()
	a.ErrorIs(<-errc, context.Canceled)

	close(f.gate)
	a.Eventually(func() bool { return c.Stats().Entries == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	a.Nil(err)
	a.Equal("GET /slow", string(resp.Body))
	a.Equal(1, f.Calls())
}

func TestCachePurge(t *testing.T) {
	a := assert.New(t)
	f := &countingFetcher{}
	c := proxy.NewCache(f, time.Minute)

	_, _ = c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/a", nil))
	_, _ = c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/b", nil))
	a.Equal(2, c.Stats().Entries)

	c.Purge()
	a.Equal(0, c.Stats().Entries)
	_, _ = c.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/a", nil))
	a.Equal(3, f.Calls())
}
