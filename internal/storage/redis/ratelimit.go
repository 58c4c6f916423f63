package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

var _ httpmiddleware.Limiter = (*RateLimiter)(nil)

// RateLimiter is a fixed window limiter shared by every API replica.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	size   time.Duration
}

// NewRateLimiter allows limit requests per key in each window of size.
func NewRateLimiter(client redis.Cmdable, limit int, size time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, size: size}
}

// Take implements httpmiddleware.Limiter.
func (l *RateLimiter) Take(ctx context.Context, key string, now time.Time) (httpmiddleware.Quota, error) {
	start := now.Truncate(l.size)
	k := "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.size)
		return nil
	}); err != nil {
		return httpmiddleware.Quota{}, errors.Wrap(err, "redis incr")
	}

	used := int(incr.Val())
	return httpmiddleware.Quota{
		Limit:     l.limit,
		Remaining: max(l.limit-used, 0),
		ResetAt:   start.Add(l.size),
		Allowed:   used <= l.limit,
	}, nil
}
