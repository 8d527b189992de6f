package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces requests per host. A zero interval disables pacing.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // host -> limiter
	log      *logrus.Entry
}

// NewRateLimiter allows one request per interval to each host
func NewRateLimiter(interval time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		log:      log,
	}
}

// Wait blocks until a request to host is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil || rl.interval <= 0 {
		return ctx.Err()
	}
	lim := rl.limiter(host)

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		rl.log.WithFields(logrus.Fields{"host": host, "waited": waited}).Debug("Rate limit delayed request")
	}
	return nil
}

func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(rl.interval), 1)
		rl.limiters[host] = lim
	}
	return lim
}
