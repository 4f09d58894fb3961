package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/session"
)

const (
	// DefaultRetryAfter is used when a 429 response carries no usable Retry-After
	DefaultRetryAfter = 60 * time.Second

	defaultTransportRetries = 3
)

// PageHandler consumes the page fetched from pageURL and returns the next
// page URL, "" when done
type PageHandler func(pageURL string, body []byte) (next string, err error)

// EntityPageHandler is a PageHandler bound to the entity being drained
type EntityPageHandler func(id int64, pageURL string, body []byte) (next string, err error)

// Fetcher issues sequential GET requests against the helpdesk API. A 429
// is waited out and the request resent exactly once; any other non-2xx
// status is fatal.
type Fetcher struct {
	client           *http.Client
	throttle         RateLimiter
	sleep            func(context.Context, time.Duration) error
	now              func() time.Time
	transportRetries uint64
	newBackOff       func() backoff.BackOff
	log              *logger.Logger
}

type FetcherOption func(*Fetcher)

// WithThrottle sets the limiter applied between per-entity requests
func WithThrottle(rl RateLimiter) FetcherOption {
	return func(f *Fetcher) { f.throttle = rl }
}

// WithSleep replaces the Retry-After wait
func WithSleep(sleep func(context.Context, time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// WithTransportRetries bounds resends after transport errors. Zero disables them.
func WithTransportRetries(n uint64, newBackOff func() backoff.BackOff) FetcherOption {
	return func(f *Fetcher) {
		f.transportRetries = n
		if newBackOff != nil {
			f.newBackOff = newBackOff
		}
	}
}

func WithFetcherLogger(log *logger.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher creates a fetcher on an authenticated client
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:           client,
		sleep:            sleepWithContext,
		now:              time.Now,
		transportRetries: defaultTransportRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Discard()
	}
	return f
}

// GetJSON fetches one URL and decodes the body into v
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewMalformedError(url, err)
	}
	return nil
}

// FollowCursor walks a cursor-paginated collection from startURL, handing
// each page to handle in server order. The next URL is used verbatim.
func (f *Fetcher) FollowCursor(ctx context.Context, startURL string, handle PageHandler) error {
	return f.follow(ctx, startURL, handle, false)
}

// ForEachEntity drains the pages of each id in order. Entities are never
// interleaved and requests are spaced by the throttle.
func (f *Fetcher) ForEachEntity(ctx context.Context, ids []int64, urlFor func(id int64) string, handle EntityPageHandler) error {
	for _, id := range ids {
		err := f.follow(ctx, urlFor(id), func(pageURL string, body []byte) (string, error) {
			return handle(id, pageURL, body)
		}, true)
		if err != nil {
			return fmt.Errorf("entity %d: %w", id, err)
		}
	}
	return nil
}

func (f *Fetcher) follow(ctx context.Context, url string, handle PageHandler, throttled bool) error {
	seen := make(map[string]struct{})
	for url != "" {
		if _, ok := seen[url]; ok {
			return fmt.Errorf("pagination cursor did not advance: %s", url)
		}
		seen[url] = struct{}{}

		if throttled && f.throttle != nil {
			if err := f.throttle.Wait(ctx); err != nil {
				return err
			}
		}

		body, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		next, err := handle(url, body)
		if err != nil {
			return err
		}
		url = next
	}
	return nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusTooManyRequests {
		wait := retryAfter(resp.header, f.now())
		rateLimitWaits.WithLabelValues("retry_after").Inc()
		f.log.WithField("url", url).WithField("wait", wait.String()).Warn("rate limited, retrying once")
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
		resp, err = f.do(ctx, url)
		if err != nil {
			return nil, err
		}
	}

	if resp.status < 200 || resp.status > 299 {
		f.log.WithField("url", url).WithField("status", resp.status).Error("request failed")
		return nil, apperrors.NewStatusError(resp.status, url)
	}
	return resp.body, nil
}

// do performs one logical request, resending only on transport errors
func (f *Fetcher) do(ctx context.Context, url string) (*response, error) {
	var out *response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("failed to read response body: %w", err)
		}

		requestsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
		out = &response{status: resp.StatusCode, header: resp.Header, body: body}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.transportRetries), ctx)
	notify := func(err error, wait time.Duration) {
		transportRetries.Inc()
		f.log.WithError(err).WithField("url", url).WithField("wait", wait.String()).Warn("transport error, retrying")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

// retryAfter reads Retry-After as delta seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}
