// Package broker is the shared HTTP request layer beneath all adapters. It
// provides response caching, per-host rate limiting, and bounded retries so
// the adapters themselves stay simple synchronous functions.
package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxBodyBytes = 2 << 20

// HostPolicy tunes caching, rate limiting, and retries for one host.
type HostPolicy struct {
	RateLimitRPS float64
	TTL          time.Duration
	NegativeTTL  time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

// DefaultHostPolicy is applied to hosts without an explicit policy.
func DefaultHostPolicy() HostPolicy {
	return HostPolicy{
		RateLimitRPS: 1,
		TTL:          24 * time.Hour,
		NegativeTTL:  time.Hour,
		MaxAttempts:  3,
		BaseDelay:    400 * time.Millisecond,
		MaxDelay:     6 * time.Second,
	}
}

// Options customizes a single request.
type Options struct {
	Headers map[string]string
	// TTLOverride replaces the host's cache TTL when positive.
	TTLOverride time.Duration
	// Adapter names the calling adapter for stats and logging.
	Adapter string
}

// RequestError is a retrieval failure after caching, rate limiting, and
// retries have all had their say. Status is 0 for pure transport failures.
type RequestError struct {
	Adapter string
	URL     string
	Status  int
	Cause   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed url=%s status=%d: %v",
		e.Adapter, Redact(e.URL), e.Status, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.status) }

var errCachedFailure = errors.New("cached failure")

// Counters tracks per-adapter request outcomes.
type Counters struct {
	Requests  int `json:"requests"`
	CacheHits int `json:"cache_hits"`
	Retries   int `json:"retries"`
	Failures  int `json:"failures"`
}

// Broker issues GET requests through the cache, rate limiters, and retry
// policy. Safe for use from a single goroutine per run; the stats map is
// still guarded since adapters share one Broker.
type Broker struct {
	client   *http.Client
	cache    *Cache
	limiters *hostLimiters
	policies map[string]HostPolicy
	logger   *slog.Logger

	mu    sync.Mutex
	stats map[string]*Counters
}

// New creates a Broker. The cache may be nil, in which case every request
// goes to the network.
func New(cache *Cache, policies map[string]HostPolicy, logger *slog.Logger) *Broker {
	return &Broker{
		client:   &http.Client{Timeout: 25 * time.Second},
		cache:    cache,
		limiters: newHostLimiters(),
		policies: policies,
		logger:   logger.With(slog.String("component", "broker")),
		stats:    make(map[string]*Counters),
	}
}

// Get fetches a URL, serving from cache when possible. Non-2xx responses are
// negative-cached and replayed as the same *RequestError until they expire.
func (b *Broker) Get(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	host := hostOf(rawURL)
	pol := b.policy(host)
	key := cacheKey(rawURL)

	if cached, ok := b.cacheGet(key); ok {
		b.count(opts.Adapter, func(c *Counters) { c.CacheHits++ })
		if cached.Status >= 200 && cached.Status <= 299 {
			b.logger.Debug("cache hit", slog.String("url", Redact(rawURL)))
			return cached.Body, nil
		}
		b.logger.Debug("negative cache hit",
			slog.String("url", Redact(rawURL)), slog.Int("status", cached.Status))
		return nil, &RequestError{
			Adapter: opts.Adapter,
			URL:     rawURL,
			Status:  cached.Status,
			Cause:   errCachedFailure,
		}
	}

	backoff := retry.NewExponential(pol.BaseDelay)
	backoff = retry.WithCappedDuration(pol.MaxDelay, backoff)
	backoff = retry.WithJitterPercent(40, backoff)
	maxRetries := pol.MaxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff = retry.WithMaxRetries(uint64(maxRetries), backoff)

	var body []byte
	var status int

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := b.limiters.wait(ctx, host, pol.RateLimitRPS); err != nil {
			return err
		}
		b.count(opts.Adapter, func(c *Counters) { c.Requests++ })

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			b.count(opts.Adapter, func(c *Counters) { c.Retries++ })
			b.logger.Debug("transport error, will retry",
				slog.String("url", Redact(rawURL)), slog.Any("error", err))
			return retry.RetryableError(err)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			b.count(opts.Adapter, func(c *Counters) { c.Retries++ })
			return retry.RetryableError(err)
		}

		status = resp.StatusCode
		body = data

		if status == http.StatusTooManyRequests || status >= 500 {
			b.count(opts.Adapter, func(c *Counters) { c.Retries++ })
			b.logger.Debug("retryable status",
				slog.String("url", Redact(rawURL)), slog.Int("status", status))
			return retry.RetryableError(&statusError{status: status})
		}
		return nil
	})

	if err != nil {
		b.count(opts.Adapter, func(c *Counters) { c.Failures++ })
		var se *statusError
		if errors.As(err, &se) {
			// Retry budget exhausted on a retryable status; negative-cache it.
			b.cachePut(key, rawURL, se.status, body, pol.NegativeTTL)
			return nil, &RequestError{Adapter: opts.Adapter, URL: rawURL, Status: se.status, Cause: err}
		}
		return nil, &RequestError{Adapter: opts.Adapter, URL: rawURL, Cause: err}
	}

	if status >= 200 && status <= 299 {
		ttl := pol.TTL
		if opts.TTLOverride > 0 {
			ttl = opts.TTLOverride
		}
		b.cachePut(key, rawURL, status, body, ttl)
		return body, nil
	}

	// Terminal non-2xx (e.g. 404): negative-cache and fail.
	b.count(opts.Adapter, func(c *Counters) { c.Failures++ })
	b.cachePut(key, rawURL, status, body, pol.NegativeTTL)
	return nil, &RequestError{
		Adapter: opts.Adapter,
		URL:     rawURL,
		Status:  status,
		Cause:   &statusError{status: status},
	}
}

// Stats returns a snapshot of per-adapter counters.
func (b *Broker) Stats() map[string]Counters {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Counters, len(b.stats))
	for k, v := range b.stats {
		out[k] = *v
	}
	return out
}

func (b *Broker) policy(host string) HostPolicy {
	if pol, ok := b.policies[host]; ok {
		return pol
	}
	return DefaultHostPolicy()
}

func (b *Broker) count(adapter string, fn func(*Counters)) {
	if adapter == "" {
		adapter = "unknown"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.stats[adapter]
	if !ok {
		c = &Counters{}
		b.stats[adapter] = c
	}
	fn(c)
}

func (b *Broker) cacheGet(key string) (*CachedResponse, bool) {
	if b.cache == nil {
		return nil, false
	}
	resp, ok, err := b.cache.Get(key)
	if err != nil {
		b.logger.Warn("cache read failed", slog.Any("error", err))
		return nil, false
	}
	return resp, ok
}

func (b *Broker) cachePut(key, rawURL string, status int, body []byte, ttl time.Duration) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Put(key, Redact(rawURL), status, body, ttl); err != nil {
		b.logger.Warn("cache write failed", slog.Any("error", err))
	}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
