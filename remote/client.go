// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"
	// UserAgent is sent with every request.
	UserAgent = "repo-ingest-tool/1.0"
	// DefaultMaxAttempts is the retry budget of a single Fetch.
	DefaultMaxAttempts = 6
	// DefaultMaxConcurrency caps open connections to the API host.
	DefaultMaxConcurrency = 15

	baseBackoff      = time.Second
	maxBackoff       = 30 * time.Second
	maxRateLimitWait = 60 * time.Second

	clientTimeout         = 180 * time.Second
	dialTimeout           = 30 * time.Second
	responseHeaderTimeout = 60 * time.Second
)

// Sleeper blocks for d, returning early with ctx's error if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client is a GitHub REST client that retries transient failures and waits
// out rate limits. It is safe for concurrent use; a retry sleep only blocks
// the goroutine that issued the request.
type Client struct {
	gh      *github.Client
	http    *http.Client
	limiter *rate.Limiter
	sleep   Sleeper
	now     func() time.Time
	logger  *slog.Logger

	token             string
	baseURL           string
	maxConcurrency    int
	requestsPerSecond float64
	maxAttempts       int
	rateLimitAttempts int
}

// Option configures a Client.
type Option func(*Client) error

// WithToken sets the API credential sent as a bearer token.
// An empty token means anonymous access.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = strings.TrimSpace(token)
		return nil
	}
}

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise host or a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return fmt.Errorf("%w: empty base URL", ErrInvalidOption)
		}
		c.baseURL = baseURL
		return nil
	}
}

// WithMaxConcurrency caps simultaneous connections to the API host.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("%w: max concurrency must be at least 1, got %d", ErrInvalidOption, n)
		}
		c.maxConcurrency = n
		return nil
	}
}

// WithRequestsPerSecond paces outgoing requests. Zero disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) error {
		if rps < 0 {
			return fmt.Errorf("%w: requests per second cannot be negative", ErrInvalidOption)
		}
		c.requestsPerSecond = rps
		return nil
	}
}

// WithMaxAttempts sets the retry budget of each request.
func WithMaxAttempts(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidOption, n)
		}
		c.maxAttempts = n
		return nil
	}
}

// WithRateLimitAttempts gives rate-limited attempts a budget of their own.
// Zero, the default, makes them share the main budget.
func WithRateLimitAttempts(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("%w: rate limit attempts cannot be negative", ErrInvalidOption)
		}
		c.rateLimitAttempts = n
		return nil
	}
}

// WithSleeper replaces the sleep used between attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) error {
		if s == nil {
			s = sleepContext
		}
		c.sleep = s
		return nil
	}
}

// WithClock replaces the clock used to interpret rate-limit reset times.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		if now == nil {
			now = time.Now
		}
		c.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		sleep:          sleepContext,
		now:            time.Now,
		logger:         slog.Default(),
		baseURL:        DefaultBaseURL,
		maxConcurrency: DefaultMaxConcurrency,
		maxAttempts:    DefaultMaxAttempts,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "remote")

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
		ResponseHeaderTimeout: responseHeaderTimeout,
		MaxConnsPerHost:       c.maxConcurrency,
		MaxIdleConnsPerHost:   c.maxConcurrency,
		IdleConnTimeout:       90 * time.Second,
	}
	if c.token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token}),
			Base:   transport,
		}
	}
	c.http = &http.Client{Transport: transport, Timeout: clientTimeout}

	base, err := url.Parse(strings.TrimRight(c.baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %w", ErrInvalidOption, err)
	}
	c.gh = github.NewClient(c.http)
	c.gh.BaseURL = base
	c.gh.UserAgent = UserAgent

	if c.requestsPerSecond > 0 {
		burst := int(math.Max(1, math.Ceil(c.requestsPerSecond)))
		c.limiter = rate.NewLimiter(rate.Limit(c.requestsPerSecond), burst)
	}

	return c, nil
}

// Fetch GETs path (relative to the API root) with the given query parameters
// and decodes the JSON body into v. v may be nil to discard the body.
//
// A 404 returns ErrResourceNotFound at once. Rate-limited responses wait for
// the advertised reset, capped at a minute. Every other failure waits with
// exponential backoff. When the budget runs out the last cause is returned
// wrapped in ErrRequestFailed.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values, v any) error {
	target := strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var (
		lastErr  error
		attempts int
		limited  int
	)
	for {
		err := c.attempt(ctx, target, v)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrResourceNotFound) {
			return err
		}
		if errors.Is(err, errUnusableResponse) {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		lastErr = err

		var (
			delay     time.Duration
			exhausted bool
			rl        *rateLimitError
		)
		isLimited := errors.As(err, &rl)
		if isLimited && c.rateLimitAttempts > 0 {
			limited++
			delay = rl.wait
			exhausted = limited >= c.rateLimitAttempts
		} else {
			attempts++
			if isLimited {
				delay = rl.wait
			} else {
				delay = backoff(attempts)
			}
			exhausted = attempts >= c.maxAttempts
		}

		c.logger.Debug("request attempt failed", "path", target, "attempt", attempts+limited, "delay", delay, "err", err)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, sleepErr)
		}
		if exhausted {
			break
		}
	}

	c.logger.Warn("request failed after retries", "path", target, "err", lastErr)
	return fmt.Errorf("%w: %w", ErrRequestFailed, lastErr)
}

// attempt issues one request. A nil error means v was populated.
func (c *Client) attempt(ctx context.Context, target string, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := c.gh.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", errUnusableResponse, err)
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// A body cut short is a transport failure and is retried
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", target, err)
		}
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("%w: decoding %s: %w", errUnusableResponse, target, err)
		}
		return nil
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrResourceNotFound, target)
	}

	cause := github.CheckResponse(resp)
	if cause == nil {
		cause = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if wait, ok := c.rateLimitWait(resp.Header); ok {
			return &rateLimitError{status: resp.StatusCode, wait: wait, cause: cause}
		}
	}
	return fmt.Errorf("status %d: %w", resp.StatusCode, cause)
}

// rateLimitWait reads the wait advertised by a rate-limited response.
// X-RateLimit-Reset is an epoch second; Retry-After is a delay in seconds.
func (c *Client) rateLimitWait(h http.Header) (time.Duration, bool) {
	if reset := h.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			secs := max(0, epoch-c.now().Unix()) + 1
			return min(time.Duration(secs)*time.Second, maxRateLimitWait), true
		}
	}
	if after := h.Get("Retry-After"); after != "" {
		if secs, err := strconv.ParseInt(after, 10, 64); err == nil {
			return min(time.Duration(max(1, secs))*time.Second, maxRateLimitWait), true
		}
	}
	return 0, false
}

// backoff returns the wait after the given failed attempt: 1s doubling, capped at 30s.
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		return maxBackoff
	}
	return min(baseBackoff<<(attempt-1), maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
