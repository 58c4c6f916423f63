package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(h *Health, name string, n int) {
	for _, c := range h.checks {
		if c.Name == name {
			for range n {
				c.run(context.Background())
			}
		}
	}
}

func serve(fn http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Add(Check{Name: "goroutines", Func: passing})
	h.Add(Check{Name: "db", Func: failing("connection refused")})

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	// Below the failure threshold the check still passes.
	runN(h, "db", 2)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code)

	runN(h, "db", 1)
	w = serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	var down atomic.Bool
	h := New()
	h.Add(Check{
		Name:             "catalog",
		Kind:             Readiness,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Func: func(context.Context) error {
			if down.Load() {
				return errors.New("pool closed")
			}
			return nil
		},
	})

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)

	down.Store(true)
	runN(h, "catalog", 1)
	assert.False(t, h.IsReady())

	// Recovery needs two consecutive successes.
	down.Store(false)
	runN(h, "catalog", 1)
	assert.False(t, h.IsReady())
	runN(h, "catalog", 1)
	assert.True(t, h.IsReady())

	// Liveness ignores readiness checks.
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code)
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Add(Check{Name: "count", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(30 * time.Millisecond)
	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(1<<20)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	err := PingCheck("postgres", func(context.Context) error { return errors.New("refused") })(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
	assert.NoError(t, PingCheck("redis", passing)(ctx))

	var zero time.Time
	assert.Error(t, FreshnessCheck("slug index", time.Minute, func() time.Time { return zero })(ctx))
	assert.Error(t, FreshnessCheck("slug index", time.Minute, func() time.Time { return time.Now().Add(-time.Hour) })(ctx))
	assert.NoError(t, FreshnessCheck("slug index", time.Minute, time.Now)(ctx))
}
