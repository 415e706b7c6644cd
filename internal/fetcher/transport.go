package fetcher

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TransportOptions configures the memoizing transport.
type TransportOptions struct {
	// Inner is the underlying RoundTripper; http.DefaultTransport when nil.
	Inner http.RoundTripper
	// MaxRetries bounds attempts per call on 429/5xx/transport errors.
	MaxRetries int
	// RequestsPerSec is the per-host rate; 0 means 10.
	RequestsPerSec float64
}

// cachedResponse holds one memoized successful response.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// MemoTransport is the single choke point for outbound API calls. Identical
// calls — same method, URL (query params included), headers, and body —
// return the previously fetched response without a new network call. The
// cache has no expiry within a process; only successful (2xx) responses are
// stored, so transient failures stay retryable. Construct a fresh transport
// per process or per test for an isolated cache.
type MemoTransport struct {
	inner      http.RoundTripper
	maxRetries int
	perSec     rate.Limit

	mu       sync.Mutex
	cache    map[string]*cachedResponse
	limiters map[string]*rate.Limiter

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoTransport creates a memoizing transport with an empty cache.
func NewMemoTransport(opts TransportOptions) *MemoTransport {
	inner := opts.Inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = 3
	}
	perSec := rate.Limit(opts.RequestsPerSec)
	if perSec == 0 {
		perSec = 10
	}
	return &MemoTransport{
		inner:      inner,
		maxRetries: retries,
		perSec:     perSec,
		cache:      make(map[string]*cachedResponse),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Client returns an http.Client routed through the transport.
func (t *MemoTransport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: t}
}

// Stats returns cache hit and miss counts.
func (t *MemoTransport) Stats() (hits, misses int64) {
	return t.hits.Load(), t.misses.Load()
}

// RoundTrip implements http.RoundTripper.
func (t *MemoTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody, err := requestBody(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read request body")
	}
	key := cacheKey(req, reqBody)

	t.mu.Lock()
	cached, ok := t.cache[key]
	t.mu.Unlock()
	if ok {
		t.hits.Add(1)
		zap.L().Debug("fetch cache hit",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
		)
		return cached.response(req), nil
	}
	t.misses.Add(1)

	resp, err := t.doWithRetry(req, reqBody)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "fetcher: read response body")
		}
		entry := &cachedResponse{
			status: resp.StatusCode,
			header: resp.Header.Clone(),
			body:   body,
		}
		t.mu.Lock()
		t.cache[key] = entry
		t.mu.Unlock()
		return entry.response(req), nil
	}

	return resp, nil
}

func (t *MemoTransport) doWithRetry(req *http.Request, body []byte) (*http.Response, error) {
	ctx := req.Context()

	var lastErr error
	for attempt := range t.maxRetries {
		if err := t.limiterFor(req.URL.Host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := t.inner.RoundTrip(attemptReq)
		if err != nil {
			lastErr = err
			zap.L().Debug("fetch attempt failed",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if !sleepBackoff(ctx, attempt) {
				return nil, eris.Wrap(ctx.Err(), "fetcher: cancelled")
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: http %d from %s", resp.StatusCode, req.URL.String())
			if !sleepBackoff(ctx, attempt) {
				return nil, eris.Wrap(ctx.Err(), "fetcher: cancelled")
			}
			continue
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "fetcher: all retries exhausted")
}

func (t *MemoTransport) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[host]
	if !ok {
		lim = rate.NewLimiter(t.perSec, int(math.Max(float64(t.perSec), 1)))
		t.limiters[host] = lim
	}
	return lim
}

// sleepBackoff waits with exponential backoff and jitter; false on cancel.
func sleepBackoff(ctx context.Context, attempt int) bool {
	base := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// requestBody snapshots the request body so it can be replayed across
// retries and cache-key hashing. Returns nil for body-less requests.
func requestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// cacheKey builds the full call signature: method, URL with query, sorted
// headers, and body.
func cacheKey(req *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte('\n')
	b.WriteString(req.URL.String())
	b.WriteByte('\n')

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(req.Header.Values(name), ","))
		b.WriteByte(';')
	}
	b.WriteByte('\n')
	b.Write(body)
	return b.String()
}

// response materializes a fresh http.Response from the cached entry.
func (c *cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(c.status),
		StatusCode:    c.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        c.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(c.body)),
		ContentLength: int64(len(c.body)),
		Request:       req,
	}
}
