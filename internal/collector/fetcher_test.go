package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/session"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "seconds", header: "2", want: 2 * time.Second},
		{name: "zero", header: "0", want: 0},
		{name: "absent", header: "", want: DefaultRetryAfter},
		{name: "negative", header: "-5", want: DefaultRetryAfter},
		{name: "garbage", header: "soon", want: DefaultRetryAfter},
		{name: "http date", header: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past date", header: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, retryAfter(h, now))
		})
	}
}

func TestFixedRateLimiterSpacing(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var slept []time.Duration

	rl := NewRateLimiter(time.Second).(*fixedRateLimiter)
	rl.now = func() time.Time { return clock }
	rl.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept, "first call passes, later calls are spaced")

	clock = clock.Add(5 * time.Second)
	require.NoError(t, rl.Wait(ctx))
	assert.Len(t, slept, 2, "no wait once the interval has elapsed")
}

func TestFixedRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0).(*fixedRateLimiter)
	rl.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("unexpected sleep %v", d)
		return nil
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
}

func TestFixedRateLimiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewRateLimiter(time.Second).Wait(ctx), context.Canceled)
}

func TestFollowCursorStalled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	pages := 0
	err := f.FollowCursor(context.Background(), srv.URL+"/page", func(_ string, body []byte) (string, error) {
		pages++
		return srv.URL + "/page", nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
	assert.Equal(t, 1, pages)
}

func TestFollowCursorHandlerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	boom := errors.New("boom")
	err := NewFetcher(srv.Client()).FollowCursor(context.Background(), srv.URL, func(string, []byte) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachEntityPassesPageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	var seen []string
	err := NewFetcher(srv.Client()).ForEachEntity(context.Background(), []int64{7},
		func(id int64) string { return fmt.Sprintf("%s/items/%d", srv.URL, id) },
		func(id int64, pageURL string, body []byte) (string, error) {
			seen = append(seen, pageURL)
			if len(seen) == 1 {
				return srv.URL + "/items/7?page=2", nil
			}
			return "", nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/items/7", srv.URL + "/items/7?page=2"}, seen)
}

type flakyTransport struct {
	failures int
	calls    int
	next     http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	if t.calls <= t.failures {
		return nil, errors.New("connection reset by peer")
	}
	return t.next.RoundTrip(req)
}

func TestFetcherRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 3}`)
	}))
	defer srv.Close()

	rt := &flakyTransport{failures: 2, next: http.DefaultTransport}
	f := NewFetcher(&http.Client{Transport: rt},
		WithTransportRetries(3, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)

	before := testutil.ToFloat64(transportRetries)
	var out searchCountResponse
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, 3, rt.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(transportRetries)-before)
}

func TestFetcherTransportRetriesExhausted(t *testing.T) {
	rt := &flakyTransport{failures: 10, next: http.DefaultTransport}
	f := NewFetcher(&http.Client{Transport: rt},
		WithTransportRetries(2, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)

	_, err := f.get(context.Background(), "http://helpdesk.invalid/api")
	require.Error(t, err)
	assert.Equal(t, 3, rt.calls)
}

func TestFetcherClosedSessionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	sess, err := session.Open(context.Background(), srv.URL, session.Credentials{
		Email: "agent@example.com",
		Token: session.NewSecret("abc"),
	})
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	f := NewFetcher(sess.Client(),
		WithTransportRetries(3, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	before := testutil.ToFloat64(transportRetries)
	_, err = f.get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.Equal(t, before, testutil.ToFloat64(transportRetries))
}

func TestFetcherCountsStatusClasses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	ok := testutil.ToFloat64(requestsTotal.WithLabelValues("2xx"))
	limited := testutil.ToFloat64(requestsTotal.WithLabelValues("4xx"))
	waits := testutil.ToFloat64(rateLimitWaits.WithLabelValues("retry_after"))

	f := NewFetcher(srv.Client(), WithSleep(func(context.Context, time.Duration) error { return nil }))
	_, err := f.get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(requestsTotal.WithLabelValues("2xx"))-ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(requestsTotal.WithLabelValues("4xx"))-limited)
	assert.Equal(t, float64(1), testutil.ToFloat64(rateLimitWaits.WithLabelValues("retry_after"))-waits)
}

func TestRegisterMetricsTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "other", statusClass(0))
}
