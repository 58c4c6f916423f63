package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// PingCheck wraps a dependency's ping, e.g. pgxpool.Pool.Ping.
func PingCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.Wrapf(err, "ping %s", name)
		}
		return nil
	}
}

// FreshnessCheck fails when last reports a time older than maxAge, or zero.
func FreshnessCheck(what string, maxAge time.Duration, last func() time.Time) CheckFunc {
	return func(context.Context) error {
		t := last()
		if t.IsZero() {
			return errors.Errorf("%s never refreshed", what)
		}
		if age := time.Since(t); age > maxAge {
			return errors.Errorf("%s is %s old", what, age.Truncate(time.Second))
		}
		return nil
	}
}
